// Package audio provides the in-memory PCM buffer used by the effects
// pipeline, together with the DSP, noise and codec providers it calls.
//
// Buffers are values: every operation returns a new Buffer and never
// mutates the receiver's samples.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Limits on buffer formats.
const (
	MAX_SAMPLE_RATE = 192000
	MAX_CHANNELS    = 8
)

var (
	// ErrInvalidFormat indicates a sample rate or channel count out of range.
	ErrInvalidFormat = errors.New("invalid audio format")
	// ErrSampleCount indicates samples that do not divide into whole frames.
	ErrSampleCount = errors.New("sample count is not a multiple of channels")
)

// Buffer is interleaved float PCM in [-1, 1] at a fixed rate and channel count.
type Buffer struct {
	samples    []float64
	sampleRate int
	channels   int
}

// NewBuffer copies samples into a new Buffer.
func NewBuffer(samples []float64, sampleRate, channels int) (Buffer, error) {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return Buffer{}, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}

	if channels <= 0 || channels > MAX_CHANNELS {
		return Buffer{}, fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}

	if len(samples)%channels != 0 {
		return Buffer{}, fmt.Errorf("%w: %d samples, %d channels", ErrSampleCount, len(samples), channels)
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)

	return Buffer{samples: owned, sampleRate: sampleRate, channels: channels}, nil
}

// Silence returns a zeroed buffer of the given frame count.
func Silence(frames, sampleRate, channels int) Buffer {
	return Buffer{
		samples:    make([]float64, frames*channels),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// wrap adopts samples without copying; callers must not retain them.
func wrap(samples []float64, sampleRate, channels int) Buffer {
	return Buffer{samples: samples, sampleRate: sampleRate, channels: channels}
}

// SampleRate returns frames per second.
func (b Buffer) SampleRate() int { return b.sampleRate }

// Channels returns the channel count.
func (b Buffer) Channels() int { return b.channels }

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.channels == 0 {
		return 0
	}

	return len(b.samples) / b.channels
}

// IsEmpty reports whether the buffer has no frames.
func (b Buffer) IsEmpty() bool { return b.Frames() == 0 }

// Duration returns the playing time of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}

	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// Seconds returns the playing time in seconds.
func (b Buffer) Seconds() float64 {
	if b.sampleRate == 0 {
		return 0
	}

	return float64(b.Frames()) / float64(b.sampleRate)
}

// Samples returns a copy of the interleaved samples.
func (b Buffer) Samples() []float64 {
	out := make([]float64, len(b.samples))
	copy(out, b.samples)

	return out
}

// SameFormat reports whether two buffers share rate and channel count.
func (b Buffer) SameFormat(other Buffer) bool {
	return b.sampleRate == other.sampleRate && b.channels == other.channels
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float64 {
	peak := 0.0

	for _, sample := range b.samples {
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}

	return peak
}

// DBFS returns the RMS level relative to full scale; silence is -Inf.
func (b Buffer) DBFS() float64 {
	if len(b.samples) == 0 {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, sample := range b.samples {
		sum += sample * sample
	}

	rms := math.Sqrt(sum / float64(len(b.samples)))
	if rms == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(rms)
}

// Slice returns frames [start, end), clamped to the buffer.
func (b Buffer) Slice(start, end int) Buffer {
	frames := b.Frames()
	start = min(max(start, 0), frames)
	end = min(max(end, start), frames)

	out := make([]float64, (end-start)*b.channels)
	copy(out, b.samples[start*b.channels:end*b.channels])

	return wrap(out, b.sampleRate, b.channels)
}

// Reverse returns the buffer played backwards, keeping channel order per frame.
func (b Buffer) Reverse() Buffer {
	frames := b.Frames()
	out := make([]float64, len(b.samples))

	for frame := range frames {
		src := (frames - 1 - frame) * b.channels
		copy(out[frame*b.channels:(frame+1)*b.channels], b.samples[src:src+b.channels])
	}

	return wrap(out, b.sampleRate, b.channels)
}

// Gain returns the buffer shifted by db decibels. Samples may exceed full scale.
func (b Buffer) Gain(db float64) Buffer {
	return b.Scale(DBToRatio(db))
}

// Scale multiplies every sample by factor.
func (b Buffer) Scale(factor float64) Buffer {
	out := make([]float64, len(b.samples))
	for i, sample := range b.samples {
		out[i] = sample * factor
	}

	return wrap(out, b.sampleRate, b.channels)
}

// Append concatenates other after b. other is conformed to b's format first.
func (b Buffer) Append(other Buffer) (Buffer, error) {
	if b.channels == 0 {
		return other.clone(), nil
	}

	conformed, err := other.Conform(b.sampleRate, b.channels)
	if err != nil {
		return Buffer{}, err
	}

	out := make([]float64, 0, len(b.samples)+len(conformed.samples))
	out = append(out, b.samples...)
	out = append(out, conformed.samples...)

	return wrap(out, b.sampleRate, b.channels), nil
}

// Overlay mixes other onto b additively, saturating at full scale. The
// result keeps b's length; other is conformed to b's format first.
func (b Buffer) Overlay(other Buffer) (Buffer, error) {
	if b.channels == 0 {
		return b, nil
	}

	conformed, err := other.Conform(b.sampleRate, b.channels)
	if err != nil {
		return Buffer{}, err
	}

	out := make([]float64, len(b.samples))
	copy(out, b.samples)

	for i := 0; i < len(out) && i < len(conformed.samples); i++ {
		out[i] = clamp(out[i] + conformed.samples[i])
	}

	return wrap(out, b.sampleRate, b.channels), nil
}

func (b Buffer) clone() Buffer {
	return wrap(b.Samples(), b.sampleRate, b.channels)
}

// DBToRatio converts decibels to an amplitude ratio.
func DBToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// RatioToDB converts an amplitude ratio to decibels.
func RatioToDB(ratio float64) float64 {
	return 20 * math.Log10(ratio)
}

func clamp(sample float64) float64 {
	return min(max(sample, -1), 1)
}
