// Package mix builds the final episode audio: narration sandwiched
// between faded intro and outro music beds.
package mix

import (
	"context"
	"fmt"
)

// Source names the tracks a composer works from. All references are
// fetchable URLs; the composer decides what it actually needs.
type Source struct {
	NarrationURL  string
	IntroMusicURL string
	OutroMusicURL string
}

// Composer produces the final encoded episode audio from a source set.
// Implementations differ in where the mixing happens, not in what the
// result sounds like.
type Composer interface {
	// Compose returns the encoded audio bytes for the episode.
	Compose(ctx context.Context, src Source) ([]byte, error)

	// Name identifies the composer in logs and error messages.
	Name() string
}

// Fetcher retrieves the bytes behind a track URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CompositionError wraps a failure inside a composition attempt with
// the stage that produced it.
type CompositionError struct {
	Stage string
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed at %s: %v", e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}
