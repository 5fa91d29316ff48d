package audio

import "math"

// Buffer holds decoded audio as per-channel sample slices. Samples are
// float64 in [-1, 1]; the format's silence point is 0. Buffers are owned
// by a single pipeline invocation and never shared between episodes.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewSilence returns a buffer of the given shape filled with silence
func NewSilence(channels, samples, sampleRate int) *Buffer {
	chs := make([][]float64, channels)
	for c := range chs {
		chs[c] = make([]float64, samples)
	}
	return &Buffer{Channels: chs, SampleRate: sampleRate}
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// NumSamples returns the per-channel sample count
func (b *Buffer) NumSamples() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// DurationMs returns the buffer duration in milliseconds
func (b *Buffer) DurationMs() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.NumSamples()) / float64(b.SampleRate) * 1000
}

// Clone returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	chs := make([][]float64, len(b.Channels))
	for c, ch := range b.Channels {
		chs[c] = make([]float64, len(ch))
		copy(chs[c], ch)
	}
	return &Buffer{Channels: chs, SampleRate: b.SampleRate}
}

// SamplesForMs converts a millisecond duration to a sample count
func SamplesForMs(ms int, sampleRate int) int {
	return int(math.Round(float64(ms) * float64(sampleRate) / 1000))
}

// DBToAmplitude converts decibels to a linear amplitude multiplier
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// ScaleVolume returns a copy of b with every sample multiplied by factor
// and clamped to the valid range. The input is never mutated.
func ScaleVolume(b *Buffer, factor float64) *Buffer {
	out := NewSilence(b.NumChannels(), b.NumSamples(), b.SampleRate)
	for c, ch := range b.Channels {
		for i, s := range ch {
			out.Channels[c][i] = clamp(s * factor)
		}
	}
	return out
}

// Mix sums two buffers with per-track gains. The result spans the longer
// of the two inputs; the shorter input contributes silence past its end.
// Each output sample is clamped to the valid range.
func Mix(primary, secondary *Buffer, primaryGain, secondaryGain float64) *Buffer {
	numSamples := primary.NumSamples()
	if secondary.NumSamples() > numSamples {
		numSamples = secondary.NumSamples()
	}
	numChannels := primary.NumChannels()
	if secondary.NumChannels() > numChannels {
		numChannels = secondary.NumChannels()
	}

	out := NewSilence(numChannels, numSamples, primary.SampleRate)
	for c := 0; c < numChannels; c++ {
		pch := channelOrFirst(primary, c)
		sch := channelOrFirst(secondary, c)
		for i := 0; i < numSamples; i++ {
			var v float64
			if pch != nil && i < len(pch) {
				v += pch[i] * primaryGain
			}
			if sch != nil && i < len(sch) {
				v += sch[i] * secondaryGain
			}
			out.Channels[c][i] = clamp(v)
		}
	}
	return out
}

// ExtractSegment returns exactly durationMs worth of samples starting at
// startTimeMs. Reads past the end of the source yield silence, so callers
// never need bounds checks.
func ExtractSegment(b *Buffer, startTimeMs, durationMs int) *Buffer {
	startSample := SamplesForMs(startTimeMs, b.SampleRate)
	numSamples := SamplesForMs(durationMs, b.SampleRate)

	out := NewSilence(b.NumChannels(), numSamples, b.SampleRate)
	for c, ch := range b.Channels {
		for i := 0; i < numSamples; i++ {
			if startSample+i < len(ch) {
				out.Channels[c][i] = ch[startSample+i]
			}
		}
	}
	return out
}

// FadeIn applies a linear 0→1 gain ramp over the first durationMs of b,
// in place. Samples outside the window are unchanged.
func FadeIn(b *Buffer, durationMs int) {
	fadeSamples := SamplesForMs(durationMs, b.SampleRate)
	for _, ch := range b.Channels {
		n := fadeSamples
		if n > len(ch) {
			n = len(ch)
		}
		for i := 0; i < n; i++ {
			ch[i] *= float64(i) / float64(fadeSamples)
		}
	}
}

// FadeOut applies a linear 1→0 gain ramp over the last durationMs of b,
// in place. Samples outside the window are unchanged.
func FadeOut(b *Buffer, durationMs int) {
	fadeSamples := SamplesForMs(durationMs, b.SampleRate)
	for _, ch := range b.Channels {
		for i := 0; i < fadeSamples; i++ {
			idx := len(ch) - fadeSamples + i
			if idx >= 0 && idx < len(ch) {
				ch[idx] *= float64(fadeSamples-i) / float64(fadeSamples)
			}
		}
	}
}

// LoopToLength builds a buffer of exactly targetDurationMs by repeating
// the source with wraparound indexing
func LoopToLength(b *Buffer, targetDurationMs int) *Buffer {
	targetSamples := SamplesForMs(targetDurationMs, b.SampleRate)
	out := NewSilence(b.NumChannels(), targetSamples, b.SampleRate)
	if b.NumSamples() == 0 {
		return out
	}
	for c, ch := range b.Channels {
		for i := 0; i < targetSamples; i++ {
			out.Channels[c][i] = ch[i%len(ch)]
		}
	}
	return out
}

// Merge concatenates segments along the time axis. The result carries the
// maximum channel count among inputs; mono sources are replicated across
// the missing channels.
func Merge(segments []*Buffer) *Buffer {
	totalSamples := 0
	numChannels := 0
	sampleRate := 0
	for _, seg := range segments {
		if seg == nil || seg.NumSamples() == 0 {
			continue
		}
		totalSamples += seg.NumSamples()
		if seg.NumChannels() > numChannels {
			numChannels = seg.NumChannels()
		}
		if sampleRate == 0 {
			sampleRate = seg.SampleRate
		}
	}

	out := NewSilence(numChannels, totalSamples, sampleRate)
	pos := 0
	for _, seg := range segments {
		if seg == nil || seg.NumSamples() == 0 {
			continue
		}
		n := seg.NumSamples()
		for c := 0; c < numChannels; c++ {
			src := channelOrFirst(seg, c)
			copy(out.Channels[c][pos:pos+n], src)
		}
		pos += n
	}
	return out
}

// channelOrFirst returns channel c, falling back to channel 0 for mono
// sources placed on wider timelines. Nil when the buffer has no channels.
func channelOrFirst(b *Buffer, c int) []float64 {
	if len(b.Channels) == 0 {
		return nil
	}
	if c < len(b.Channels) {
		return b.Channels[c]
	}
	return b.Channels[0]
}
