package mix

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"podpress/internal/audio"
	"podpress/internal/wav"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// Local composes the episode entirely with in-process sample math.
// It never touches the network beyond fetching the source tracks, so it
// serves as the self-contained fallback when remote enhancement is
// unavailable.
type Local struct {
	fetcher Fetcher
	cfg     types.AudioConfig
	log     *logger.Logger
}

// NewLocal creates a local composer with the given mixing parameters.
func NewLocal(fetcher Fetcher, cfg types.AudioConfig, log *logger.Logger) *Local {
	return &Local{
		fetcher: fetcher,
		cfg:     cfg,
		log:     log,
	}
}

func (l *Local) Name() string {
	return "local"
}

// Compose builds intro + narration-over-music + outro from the source
// tracks and returns the encoded result. The intro music URL doubles as
// the music bed; the outro track is ignored because the local path cuts
// both bookends from the same bed.
func (l *Local) Compose(ctx context.Context, src Source) ([]byte, error) {
	narrationBytes, err := l.fetcher.Fetch(ctx, src.NarrationURL)
	if err != nil {
		return nil, &CompositionError{Stage: "fetch narration", Err: err}
	}
	musicBytes, err := l.fetcher.Fetch(ctx, src.IntroMusicURL)
	if err != nil {
		return nil, &CompositionError{Stage: "fetch music", Err: err}
	}

	narration, err := wav.Decode(narrationBytes)
	if err != nil {
		return nil, &CompositionError{Stage: "decode narration", Err: err}
	}
	music, err := wav.Decode(musicBytes)
	if err != nil {
		return nil, &CompositionError{Stage: "decode music", Err: err}
	}

	result, err := l.composeBuffers(narration, music)
	if err != nil {
		return nil, err
	}

	encoded, err := wav.Encode(result)
	if err != nil {
		return nil, &CompositionError{Stage: "encode", Err: err}
	}

	l.log.Info("composed episode locally",
		zap.Int("duration_ms", int(result.DurationMs())),
		zap.Int("channels", result.NumChannels()))
	return encoded, nil
}

func (l *Local) composeBuffers(narration, music *audio.Buffer) (*audio.Buffer, error) {
	if music.NumSamples() == 0 {
		return nil, &CompositionError{Stage: "mix", Err: fmt.Errorf("music bed is empty")}
	}

	intro := audio.ExtractSegment(music, 0, l.cfg.IntroDurationMs)
	audio.FadeOut(intro, l.cfg.FadeOutMs)

	// The outro is cut from the tail of the bed, or looped up when the
	// bed is shorter than the outro window.
	musicMs := int(music.DurationMs())
	var outro *audio.Buffer
	if musicMs < l.cfg.OutroDurationMs {
		outro = audio.LoopToLength(music, l.cfg.OutroDurationMs)
	} else {
		outro = audio.ExtractSegment(music, musicMs-l.cfg.OutroDurationMs, l.cfg.OutroDurationMs)
	}
	audio.FadeIn(outro, l.cfg.FadeInMs)

	// Loop the bed under the full narration so it never runs out.
	narrationMs := int(narration.DurationMs())
	bed := music
	if musicMs < narrationMs {
		bed = audio.LoopToLength(music, narrationMs)
	}
	body := audio.Mix(narration, bed, 1.0, audio.DBToAmplitude(l.cfg.MusicVolumeDb))

	return audio.Merge([]*audio.Buffer{intro, body, outro}), nil
}
