// Package pipeline drives episode audio post-production: raw audio
// capture, the layered enhancement attempt, and status finalization.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"podpress/internal/episode"
	"podpress/internal/mix"
	"podpress/internal/storage"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// RecordStore is the episode persistence surface the processor needs.
type RecordStore interface {
	Get(ctx context.Context, id string) (*types.Episode, error)
	BeginProcessing(ctx context.Context, id string) error
	CompleteProcessing(ctx context.Context, id, processedURL string) error
	FailProcessing(ctx context.Context, id, message string) error
	SetStatus(ctx context.Context, id string, status types.EpisodeStatus) error
	SetRawAudio(ctx context.Context, id, rawURL string) error
}

// MusicResolver resolves the music beds used during composition. Both
// beds are resolved in one call so a missing asset can swap the shared
// default in for both of them.
type MusicResolver interface {
	MusicBeds(ctx context.Context) (intro, outro string, err error)
}

// Processor runs the post-production state machine for one episode at a
// time. Composers are ordered fallback tiers: the first one to succeed
// wins, and exhausting all of them records a processing error without
// losing the raw audio.
type Processor struct {
	store     RecordStore
	blobs     storage.Adapter
	library   MusicResolver
	fetcher   mix.Fetcher
	composers []mix.Composer
	log       *logger.Logger
}

// NewProcessor wires a processor from its collaborators.
func NewProcessor(store RecordStore, blobs storage.Adapter, library MusicResolver, fetcher mix.Fetcher, composers []mix.Composer, log *logger.Logger) *Processor {
	return &Processor{
		store:     store,
		blobs:     blobs,
		library:   library,
		fetcher:   fetcher,
		composers: composers,
		log:       log,
	}
}

// ProcessEpisodeAudio runs the full enhancement flow for an episode and
// returns the processed audio URL. It is idempotent: once an episode
// has processed audio, repeat calls return the existing URL without
// touching the codec, the remote service, or storage.
func (p *Processor) ProcessEpisodeAudio(ctx context.Context, episodeID string) (string, error) {
	log := p.log.With(zap.String("episode_id", episodeID))

	ep, err := p.store.Get(ctx, episodeID)
	if err != nil {
		return "", err
	}
	if ep.ProcessedAudioURL != "" {
		log.Info("episode already processed, returning existing output")
		return ep.ProcessedAudioURL, nil
	}
	if ep.AudioURL == "" && ep.RawAudioURL == "" {
		return "", fmt.Errorf("episode %s has no narration audio to process", episodeID)
	}

	// Claim the processing slot before any network call so a crash
	// leaves an inspectable state and concurrent duplicates lose the
	// race instead of double-submitting remote jobs.
	if err := p.store.BeginProcessing(ctx, episodeID); err != nil {
		if errors.Is(err, episode.ErrAlreadyProcessing) {
			return "", fmt.Errorf("episode %s: %w", episodeID, err)
		}
		return "", fmt.Errorf("failed to begin processing: %w", err)
	}
	if err := p.store.SetStatus(ctx, episodeID, types.EpisodeProcessingAudio); err != nil {
		return "", fmt.Errorf("failed to update episode status: %w", err)
	}

	narrationURL, err := p.ensureRawAudio(ctx, ep)
	if err != nil {
		return "", p.fail(ctx, episodeID, log, fmt.Errorf("failed to capture raw audio: %w", err))
	}

	src, err := p.buildSource(ctx, ep, narrationURL)
	if err != nil {
		return "", p.fail(ctx, episodeID, log, err)
	}

	data, err := p.compose(ctx, log, src)
	if err != nil {
		return "", p.fail(ctx, episodeID, log, err)
	}

	path := fmt.Sprintf("processed/processed_%s_%d.wav", episodeID, time.Now().Unix())
	url, err := p.blobs.Upload(ctx, path, data, detectContentType(data))
	if err != nil {
		return "", p.fail(ctx, episodeID, log, fmt.Errorf("failed to upload processed audio: %w", err))
	}

	if err := p.store.CompleteProcessing(ctx, episodeID, url); err != nil {
		return "", fmt.Errorf("failed to record processed audio: %w", err)
	}
	log.Info("episode processing completed", zap.String("processed_url", url))
	return url, nil
}

// ensureRawAudio makes sure our own bucket holds a copy of the
// narration and returns the URL composers should work from.
func (p *Processor) ensureRawAudio(ctx context.Context, ep *types.Episode) (string, error) {
	if ep.RawAudioURL != "" {
		return ep.RawAudioURL, nil
	}

	data, err := p.fetcher.Fetch(ctx, ep.AudioURL)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("raw/raw_podcast_%s_%d.wav", ep.ID, time.Now().Unix())
	url, err := p.blobs.Upload(ctx, path, data, detectContentType(data))
	if err != nil {
		return "", err
	}
	if err := p.store.SetRawAudio(ctx, ep.ID, url); err != nil {
		return "", err
	}
	ep.RawAudioURL = url
	return url, nil
}

// buildSource picks the music beds: the episode's own background track
// when it has one, otherwise the configured library assets.
func (p *Processor) buildSource(ctx context.Context, ep *types.Episode, narrationURL string) (mix.Source, error) {
	src := mix.Source{NarrationURL: narrationURL}

	if ep.BackgroundMusicURL != "" {
		src.IntroMusicURL = ep.BackgroundMusicURL
		src.OutroMusicURL = ep.BackgroundMusicURL
		return src, nil
	}

	intro, outro, err := p.library.MusicBeds(ctx)
	if err != nil {
		return mix.Source{}, fmt.Errorf("failed to resolve music beds: %w", err)
	}
	src.IntroMusicURL = intro
	src.OutroMusicURL = outro
	return src, nil
}

// compose walks the fallback tiers in order and returns the first
// successful result.
func (p *Processor) compose(ctx context.Context, log *logger.Logger, src mix.Source) ([]byte, error) {
	var lastErr error
	for _, composer := range p.composers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := composer.Compose(ctx, src)
		if err == nil {
			log.Info("composition succeeded", zap.String("composer", composer.Name()))
			return data, nil
		}
		log.Warn("composition tier failed",
			zap.String("composer", composer.Name()),
			zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no composers configured")
	}
	return nil, fmt.Errorf("all composition tiers failed: %w", lastErr)
}

// fail records the terminal processing error. The store advances the
// episode's overall status to completed when raw audio exists, so the
// episode stays playable through its unenhanced narration.
func (p *Processor) fail(ctx context.Context, episodeID string, log *logger.Logger, cause error) error {
	log.Error("episode processing failed", zap.Error(cause))
	if err := p.store.FailProcessing(ctx, episodeID, cause.Error()); err != nil {
		log.Error("failed to record processing error", zap.Error(err))
		return fmt.Errorf("%v (additionally failed to persist the error: %w)", cause, err)
	}
	return cause
}

func detectContentType(data []byte) string {
	if bytes.HasPrefix(data, []byte("RIFF")) {
		return "audio/wav"
	}
	return "audio/mpeg"
}
