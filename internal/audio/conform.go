package audio

import (
	"fmt"
	"math"

	resampler "github.com/tphakala/go-audio-resampler"
)

// RESAMPLE_QUALITY is the preset used when an asset's rate differs from
// the clip's.
const RESAMPLE_QUALITY = resampler.QualityHigh

// Conform returns the buffer converted to sampleRate and channels. Channel
// changes average down to mono or duplicate up from mono; rate changes go
// through a polyphase resampler and keep the duration.
func (b Buffer) Conform(sampleRate, channels int) (Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return Buffer{}, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidFormat, sampleRate, channels)
	}

	if b.channels == channels && b.sampleRate == sampleRate {
		return b.clone(), nil
	}

	out := b
	if out.channels != channels {
		out = out.remix(channels)
	}

	if out.sampleRate != sampleRate {
		resampled, err := out.resample(sampleRate)
		if err != nil {
			return Buffer{}, err
		}

		out = resampled
	}

	return out, nil
}

func (b Buffer) remix(channels int) Buffer {
	frames := b.Frames()
	out := make([]float64, frames*channels)

	for frame := range frames {
		src := b.samples[frame*b.channels : (frame+1)*b.channels]
		dst := out[frame*channels : (frame+1)*channels]

		if channels == 1 {
			sum := 0.0
			for _, sample := range src {
				sum += sample
			}

			dst[0] = sum / float64(b.channels)

			continue
		}

		for ch := range dst {
			dst[ch] = src[ch%b.channels]
		}
	}

	return wrap(out, b.sampleRate, channels)
}

// resample converts each channel separately. The output is cut or padded
// to the frame count the rate ratio implies, so the resampler's flush
// tail never changes the duration.
func (b Buffer) resample(sampleRate int) (Buffer, error) {
	frames := b.Frames()
	outFrames := int(math.Round(float64(frames) * float64(sampleRate) / float64(b.sampleRate)))
	out := make([]float64, outFrames*b.channels)

	if frames == 0 {
		return wrap(out, sampleRate, b.channels), nil
	}

	channel := make([]float64, frames)

	for ch := range b.channels {
		for frame := range frames {
			channel[frame] = b.samples[frame*b.channels+ch]
		}

		converted, err := resampler.ResampleMono(channel, float64(b.sampleRate), float64(sampleRate), RESAMPLE_QUALITY)
		if err != nil {
			return Buffer{}, fmt.Errorf("failed to resample %d Hz to %d Hz: %w", b.sampleRate, sampleRate, err)
		}

		for frame := 0; frame < outFrames && frame < len(converted); frame++ {
			out[frame*b.channels+ch] = clamp(converted[frame])
		}
	}

	return wrap(out, sampleRate, b.channels), nil
}
