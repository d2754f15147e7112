// Package effects implements the radio post-processing chain applied to
// every synthesized clip.
//
// The stage order is fixed: filter pass, silence trim, click framing,
// noise overlay, normalize, gain. Framing follows trimming so clicks are
// never trimmed as silence, and precedes the overlay so noise spans the
// clicks.
package effects

import (
	"errors"
	"fmt"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/params"
)

var (
	// ErrEmptyInput indicates a zero-length buffer entering the chain.
	ErrEmptyInput = errors.New("input audio is empty")
	// ErrClickUnavailable indicates an enabled click with no loaded asset.
	ErrClickUnavailable = errors.New("enabled click asset is not loaded")
)

// Pipeline runs the chain over a DSP provider and noise generator.
type Pipeline struct {
	dsp   audio.DSP
	noise audio.NoiseGenerator
}

// New returns a Pipeline.
func New(dsp audio.DSP, noise audio.NoiseGenerator) *Pipeline {
	return &Pipeline{dsp: dsp, noise: noise}
}

// Process turns raw speech into the final clip for cfg.
func (p *Pipeline) Process(raw audio.Buffer, cfg params.ResolvedConfig, clicks params.Clicks) (audio.Buffer, error) {
	if raw.IsEmpty() {
		return audio.Buffer{}, ErrEmptyInput
	}

	if cfg.ClickIn && clicks.In == nil {
		return audio.Buffer{}, fmt.Errorf("%w: %s", ErrClickUnavailable, params.CLICK_IN)
	}

	if cfg.ClickOut && clicks.Out == nil {
		return audio.Buffer{}, fmt.Errorf("%w: %s", ErrClickUnavailable, params.CLICK_OUT)
	}

	buf := p.FilterPass(raw, cfg)
	buf = p.TrimSilence(buf)

	framed, err := p.FrameClicks(buf, cfg, clicks)
	if err != nil {
		return audio.Buffer{}, err
	}

	noisy, err := p.OverlayNoise(framed, cfg)
	if err != nil {
		return audio.Buffer{}, err
	}

	return p.dsp.Normalize(noisy).Gain(float64(cfg.Volume)), nil
}

// FilterPass runs nfilter rounds of high-pass, low-pass and normalize. A
// negative cutoff skips that filter.
func (p *Pipeline) FilterPass(buf audio.Buffer, cfg params.ResolvedConfig) audio.Buffer {
	for range cfg.NFilter {
		if cfg.HighPassEnabled() {
			buf = p.dsp.HighPass(buf, float64(cfg.HighPass))
		}

		if cfg.LowPassEnabled() {
			buf = p.dsp.LowPass(buf, float64(cfg.LowPass))
		}

		buf = p.dsp.Normalize(buf)
	}

	return buf
}

// TrimSilence strips leading silence, then trailing silence by running the
// same detector over the reversed buffer.
func (p *Pipeline) TrimSilence(buf audio.Buffer) audio.Buffer {
	lead := p.dsp.DetectLeadingSilence(buf)
	buf = buf.Slice(lead, buf.Frames())

	reversed := buf.Reverse()
	tail := p.dsp.DetectLeadingSilence(reversed)

	return reversed.Slice(tail, reversed.Frames()).Reverse()
}

// FrameClicks prepends and appends the enabled clicks without crossfade.
// Clicks are conformed to the speech format.
func (p *Pipeline) FrameClicks(buf audio.Buffer, cfg params.ResolvedConfig, clicks params.Clicks) (audio.Buffer, error) {
	if cfg.ClickIn && clicks.In != nil {
		in, err := clicks.In.Conform(buf.SampleRate(), buf.Channels())
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("failed to conform %s click: %w", params.CLICK_IN, err)
		}

		buf, err = in.Append(buf)
		if err != nil {
			return audio.Buffer{}, err
		}
	}

	if cfg.ClickOut && clicks.Out != nil {
		framed, err := buf.Append(*clicks.Out)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("failed to conform %s click: %w", params.CLICK_OUT, err)
		}

		buf = framed
	}

	return buf, nil
}

// OverlayNoise mixes white noise spanning the whole buffer when enabled.
func (p *Pipeline) OverlayNoise(buf audio.Buffer, cfg params.ResolvedConfig) (audio.Buffer, error) {
	if !cfg.Noise.Enabled || buf.IsEmpty() {
		return buf, nil
	}

	noise := p.noise.WhiteNoise(buf.Frames(), buf.SampleRate(), buf.Channels(), float64(cfg.Noise.DB))

	return buf.Overlay(noise)
}
