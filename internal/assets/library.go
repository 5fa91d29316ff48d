// Package assets resolves named music assets to fetchable URLs.
package assets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"podpress/internal/storage"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// ErrAssetMissing means a named asset is not present in the music
// bucket. Callers recover by substituting the default background track.
var ErrAssetMissing = errors.New("music asset not found")

// Library resolves the intro, outro, and default background tracks
// stored in the music bucket.
type Library struct {
	store storage.Adapter
	cfg   types.AssetsConfig
	log   *logger.Logger
}

// NewLibrary creates an asset library backed by the given store.
func NewLibrary(store storage.Adapter, cfg types.AssetsConfig, log *logger.Logger) *Library {
	return &Library{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Resolve returns the public URL of a named asset, or ErrAssetMissing.
func (l *Library) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty asset name", ErrAssetMissing)
	}
	exists, err := l.store.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to check asset %s: %w", name, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrAssetMissing, name)
	}
	return l.store.PublicURL(name), nil
}

// MusicBeds resolves the intro and outro beds together. When either
// named asset is missing, the shared default background substitutes for
// both beds so the episode keeps one consistent sound. An absent named
// asset is recoverable; an absent default is not.
func (l *Library) MusicBeds(ctx context.Context) (string, string, error) {
	intro, introErr := l.Resolve(ctx, l.cfg.IntroMusic)
	outro, outroErr := l.Resolve(ctx, l.cfg.OutroMusic)
	if introErr == nil && outroErr == nil {
		return intro, outro, nil
	}
	for _, err := range []error{introErr, outroErr} {
		if err != nil && !errors.Is(err, ErrAssetMissing) {
			return "", "", err
		}
	}

	l.log.Warn("music asset missing, substituting default background for both beds",
		zap.String("intro", l.cfg.IntroMusic),
		zap.String("outro", l.cfg.OutroMusic),
		zap.String("default", l.cfg.DefaultBackground))

	def, err := l.Resolve(ctx, l.cfg.DefaultBackground)
	if err != nil {
		return "", "", fmt.Errorf("default background unavailable: %w", err)
	}
	return def, def, nil
}
