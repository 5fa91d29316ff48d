package enhance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"podpress/internal/mix"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

const (
	// silenceDb is the envelope floor used where a bed fades out
	// completely. Effectively inaudible without sending -Inf on the wire.
	silenceDb = -60.0

	// shortNarrationMarginMs pads the intro+outro window when deciding
	// whether a narration is long enough for the three-track timeline.
	shortNarrationMarginMs = 10000
)

var errNarrationTooShort = errors.New("narration too short for three-track timeline")

// Remote composes the episode by driving the enhancement service: it
// expresses the intro/narration/outro structure as a timeline of
// gain-envelope segments and lets the service render it. On any
// protocol failure it retries once with a plain single-track
// enhancement job before giving up.
type Remote struct {
	client *Client
	cfg    types.AudioConfig
	log    *logger.Logger
}

// NewRemote creates a remote composer on top of an enhancement client.
func NewRemote(client *Client, cfg types.AudioConfig, log *logger.Logger) *Remote {
	return &Remote{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

func (r *Remote) Name() string {
	return "remote"
}

// Compose runs the preferred timeline mix, falling back to a
// single-track enhancement when the mix cannot be used. It returns an
// error only when both tiers fail.
func (r *Remote) Compose(ctx context.Context, src mix.Source) ([]byte, error) {
	token, err := r.client.AcquireToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with enhancement service: %w", err)
	}

	data, mixErr := r.composeTimeline(ctx, token, src)
	if mixErr == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, mixErr
	}
	if errors.Is(mixErr, errNarrationTooShort) {
		r.log.Info("narration too short for full timeline, using single-track enhancement")
	} else {
		r.log.Warn("timeline mix failed, falling back to single-track enhancement",
			zap.Error(mixErr))
	}

	data, enhErr := r.enhanceSingleTrack(ctx, token, src.NarrationURL)
	if enhErr != nil {
		return nil, fmt.Errorf("single-track enhancement failed after mix attempt (%v): %w", mixErr, enhErr)
	}
	return data, nil
}

// composeTimeline runs the full three-track flow: register the tracks,
// measure the narration, submit the mix, wait, download.
func (r *Remote) composeTimeline(ctx context.Context, token string, src mix.Source) ([]byte, error) {
	narration, err := r.client.CreateInput(ctx, token, src.NarrationURL, "narration")
	if err != nil {
		return nil, err
	}
	intro, err := r.client.CreateInput(ctx, token, src.IntroMusicURL, "intro_music")
	if err != nil {
		return nil, err
	}
	outro, err := r.client.CreateInput(ctx, token, src.OutroMusicURL, "outro_music")
	if err != nil {
		return nil, err
	}
	output, err := r.client.CreateOutput(ctx, token, "episode")
	if err != nil {
		return nil, err
	}

	narrationMs, err := r.client.AnalyzeDuration(ctx, token, narration)
	if err != nil {
		return nil, err
	}
	if narrationMs < r.cfg.IntroDurationMs+r.cfg.OutroDurationMs+shortNarrationMarginMs {
		return nil, fmt.Errorf("%w: %dms", errNarrationTooShort, narrationMs)
	}

	segments := r.buildTimeline(narration, intro, outro, narrationMs)
	jobID, err := r.client.SubmitMixJob(ctx, token, segments, output)
	if err != nil {
		return nil, err
	}
	r.log.Info("submitted timeline mix job",
		zap.String("job_id", jobID),
		zap.Int("narration_ms", narrationMs))

	if err := r.client.PollJob(ctx, token, jobID); err != nil {
		return nil, err
	}
	return r.client.Download(ctx, token, output)
}

// buildTimeline lays out the three tracks. The intro bed sits under the
// narration's opening and fades to silence; the outro bed rises from
// silence under the narration's close and holds to the end.
func (r *Remote) buildTimeline(narration, intro, outro string, narrationMs int) []Segment {
	introMs := r.cfg.IntroDurationMs
	outroMs := r.cfg.OutroDurationMs

	return []Segment{
		{
			Source:        intro,
			StartMs:       0,
			DurationMs:    introMs,
			DestinationMs: 0,
			Envelope: envelope(
				GainPoint{OffsetMs: 0, GainDb: r.cfg.MusicVolumeDb},
				GainPoint{OffsetMs: introMs - r.cfg.FadeOutMs, GainDb: r.cfg.MusicVolumeDb},
				GainPoint{OffsetMs: introMs, GainDb: silenceDb},
			),
		},
		{
			Source:        narration,
			StartMs:       0,
			DurationMs:    narrationMs,
			DestinationMs: 0,
			Envelope: []GainPoint{
				{OffsetMs: 0, GainDb: 0},
			},
		},
		{
			Source:        outro,
			StartMs:       0,
			DurationMs:    outroMs,
			DestinationMs: narrationMs - outroMs,
			Envelope: envelope(
				GainPoint{OffsetMs: 0, GainDb: silenceDb},
				GainPoint{OffsetMs: r.cfg.FadeInMs, GainDb: r.cfg.MusicVolumeDb},
				GainPoint{OffsetMs: outroMs, GainDb: r.cfg.MusicVolumeDb},
			),
		},
	}
}

// envelope drops control points that do not advance past the previous
// offset, keeping offsets strictly increasing even when a fade spans
// the whole bed.
func envelope(points ...GainPoint) []GainPoint {
	out := make([]GainPoint, 0, len(points))
	out = append(out, points[0])
	for _, p := range points[1:] {
		if p.OffsetMs > out[len(out)-1].OffsetMs {
			out = append(out, p)
		}
	}
	return out
}

// enhanceSingleTrack registers the narration alone and runs a speech
// enhancement job over it.
func (r *Remote) enhanceSingleTrack(ctx context.Context, token, narrationURL string) ([]byte, error) {
	input, err := r.client.CreateInput(ctx, token, narrationURL, "narration")
	if err != nil {
		return nil, err
	}
	output, err := r.client.CreateOutput(ctx, token, "episode_enhanced")
	if err != nil {
		return nil, err
	}

	jobID, err := r.client.SubmitEnhanceJob(ctx, token, input, output)
	if err != nil {
		return nil, err
	}
	r.log.Info("submitted single-track enhancement job", zap.String("job_id", jobID))

	if err := r.client.PollJob(ctx, token, jobID); err != nil {
		return nil, err
	}
	return r.client.Download(ctx, token, output)
}
