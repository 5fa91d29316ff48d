// Package wav implements the uncompressed PCM container used as the
// pipeline's intermediate format. Encoding always emits 16-bit little
// endian PCM; decoding additionally accepts 8-bit unsigned streams
// (samples centered at 128), so encode/decode of the pipeline's own
// output round-trips exactly.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"podpress/internal/audio"
)

// ErrDecode marks a stream that could not be parsed as a WAV container
var ErrDecode = errors.New("wav: decode failed")

// ErrEncode marks a buffer that cannot be encoded
var ErrEncode = errors.New("wav: encode failed")

const (
	formatPCM     = 1
	bitsPerSample = 16
	headerSize    = 44
)

type header struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// Decode parses a WAV stream into per-channel sample buffers
func Decode(data []byte) (*audio.Buffer, error) {
	r := bytes.NewReader(data)

	var chunkID [4]byte
	if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
		return nil, fmt.Errorf("%w: read RIFF header: %v", ErrDecode, err)
	}
	if string(chunkID[:]) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF marker", ErrDecode)
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil { // skip chunk size
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
		return nil, fmt.Errorf("%w: read format: %v", ErrDecode, err)
	}
	if string(chunkID[:]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing WAVE marker", ErrDecode)
	}

	var hdr header
	var pcm []byte
	fmtFound := false

	// Walk chunks until the data chunk is found.
	for {
		var id [4]byte
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: read chunk id: %v", ErrDecode, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: read chunk size: %v", ErrDecode, err)
		}

		switch string(id[:]) {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small (%d bytes)", ErrDecode, size)
			}
			var byteRate uint32
			var blockAlign uint16
			fields := []any{
				&hdr.audioFormat, &hdr.numChannels, &hdr.sampleRate,
				&byteRate, &blockAlign, &hdr.bitsPerSample,
			}
			for _, f := range fields {
				if err := binary.Read(r, binary.LittleEndian, f); err != nil {
					return nil, fmt.Errorf("%w: read fmt chunk: %v", ErrDecode, err)
				}
			}
			if size > 16 {
				if _, err := r.Seek(int64(size-16), io.SeekCurrent); err != nil {
					return nil, fmt.Errorf("%w: skip fmt extension: %v", ErrDecode, err)
				}
			}
			fmtFound = true
		case "data":
			if !fmtFound {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrDecode)
			}
			pcm = make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, fmt.Errorf("%w: read sample data: %v", ErrDecode, err)
			}
		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("%w: skip chunk %q: %v", ErrDecode, id, err)
			}
		}
		if pcm != nil {
			break
		}
	}

	if pcm == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrDecode)
	}
	if hdr.audioFormat != formatPCM {
		return nil, fmt.Errorf("%w: unsupported audio format %d", ErrDecode, hdr.audioFormat)
	}
	if hdr.numChannels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrDecode)
	}

	switch hdr.bitsPerSample {
	case 16:
		return deinterleave16(pcm, hdr), nil
	case 8:
		return deinterleave8(pcm, hdr), nil
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, hdr.bitsPerSample)
	}
}

func deinterleave16(pcm []byte, hdr header) *audio.Buffer {
	channels := int(hdr.numChannels)
	numSamples := len(pcm) / 2 / channels
	buf := audio.NewSilence(channels, numSamples, int(hdr.sampleRate))
	for i := 0; i < numSamples; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			s := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			if s < 0 {
				buf.Channels[c][i] = float64(s) / 0x8000
			} else {
				buf.Channels[c][i] = float64(s) / 0x7FFF
			}
		}
	}
	return buf
}

// deinterleave8 handles 8-bit unsigned PCM, where samples sit in [0,255]
// with silence at the midpoint 128 rather than zero.
func deinterleave8(pcm []byte, hdr header) *audio.Buffer {
	channels := int(hdr.numChannels)
	numSamples := len(pcm) / channels
	buf := audio.NewSilence(channels, numSamples, int(hdr.sampleRate))
	for i := 0; i < numSamples; i++ {
		for c := 0; c < channels; c++ {
			buf.Channels[c][i] = (float64(pcm[i*channels+c]) - 128) / 128
		}
	}
	return buf
}

// Encode writes the buffer as a 16-bit PCM WAV file. Samples are clamped
// from the float domain before quantization, so any valid buffer encodes
// deterministically.
func Encode(b *audio.Buffer) ([]byte, error) {
	if b == nil || b.NumChannels() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrEncode)
	}
	if b.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEncode, b.SampleRate)
	}

	numChannels := b.NumChannels()
	numSamples := b.NumSamples()
	dataSize := numSamples * numChannels * (bitsPerSample / 8)
	byteRate := b.SampleRate * numChannels * (bitsPerSample / 8)
	blockAlign := numChannels * (bitsPerSample / 8)

	out := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))
	out.WriteString("RIFF")
	binary.Write(out, binary.LittleEndian, uint32(headerSize+dataSize-8))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(out, binary.LittleEndian, uint32(16))
	binary.Write(out, binary.LittleEndian, uint16(formatPCM))
	binary.Write(out, binary.LittleEndian, uint16(numChannels))
	binary.Write(out, binary.LittleEndian, uint32(b.SampleRate))
	binary.Write(out, binary.LittleEndian, uint32(byteRate))
	binary.Write(out, binary.LittleEndian, uint16(blockAlign))
	binary.Write(out, binary.LittleEndian, uint16(bitsPerSample))

	out.WriteString("data")
	binary.Write(out, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		for c := 0; c < numChannels; c++ {
			s := math.Max(-1, math.Min(1, b.Channels[c][i]))
			var q int16
			if s < 0 {
				q = int16(math.Round(s * 0x8000))
			} else {
				q = int16(math.Round(s * 0x7FFF))
			}
			binary.Write(out, binary.LittleEndian, q)
		}
	}

	return out.Bytes(), nil
}
