// Package params resolves sparse item records into fully-defined clip
// configurations and owns the click assets shared across a batch.
package params

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/book-expert/radio-tts-service/internal/item"
)

// Default values used when neither the record nor the caller sets a field.
const (
	DEFAULT_VOICE         = "en-US-Standard-A"
	DEFAULT_VOLUME        = 0
	DEFAULT_NFILTER       = 3
	DEFAULT_HIGHPASS      = 4000
	DEFAULT_LOWPASS       = 3000
	DEFAULT_VOICE_PATTERN = `^[a-z]{2,3}-[A-Z]{2}-\S+$`
	languageCodeLength    = 5
)

var (
	// ErrInvalidVoice indicates a voice identifier the oracle cannot accept.
	ErrInvalidVoice = errors.New("invalid voice identifier")
	// ErrNegativeFilterCount indicates nfilter below zero.
	ErrNegativeFilterCount = errors.New("nfilter must be non-negative")
	// ErrZeroLowPass indicates a 0 Hz low-pass cutoff.
	ErrZeroLowPass = errors.New("lowpass must be above 0 Hz; use a negative value to disable it")
)

// Defaults is the immutable default table a Resolver falls back to.
type Defaults struct {
	Voice    string
	Volume   int
	NFilter  int
	HighPass int
	LowPass  int
}

// NewDefaults returns the built-in default table.
func NewDefaults() Defaults {
	return Defaults{
		Voice:    DEFAULT_VOICE,
		Volume:   DEFAULT_VOLUME,
		NFilter:  DEFAULT_NFILTER,
		HighPass: DEFAULT_HIGHPASS,
		LowPass:  DEFAULT_LOWPASS,
	}
}

// NoiseLevel is the white-noise overlay setting. Disabled means no overlay.
type NoiseLevel struct {
	Enabled bool
	DB      int
}

// ResolvedConfig is the complete parameter set for one clip.
type ResolvedConfig struct {
	Text         string
	Filename     string
	Subtitle     item.Optional[string]
	Voice        string
	LanguageCode string
	Volume       int
	NFilter      int
	HighPass     int
	LowPass      int
	Noise        NoiseLevel
	ClickIn      bool
	ClickOut     bool
	Emphasis     item.Optional[string]
	Rate         item.Optional[string]
	Pitch        item.Optional[string]
}

// HighPassEnabled reports whether the filter pass applies a high-pass.
func (c ResolvedConfig) HighPassEnabled() bool { return c.HighPass >= 0 }

// LowPassEnabled reports whether the filter pass applies a low-pass.
func (c ResolvedConfig) LowPassEnabled() bool { return c.LowPass >= 0 }

// Resolver applies record values over a Defaults table.
type Resolver struct {
	defaults      Defaults
	voiceOverride item.Optional[string]
	noiseOverride item.Optional[int]
	voicePattern  *regexp.Regexp
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithVoiceOverride makes voice win over every record's voice field.
func WithVoiceOverride(voice string) Option {
	return func(r *Resolver) {
		if voice != "" {
			r.voiceOverride = item.Some(voice)
		}
	}
}

// WithNoiseOverride turns the noise overlay on at db for every item,
// replacing whatever the record sets.
func WithNoiseOverride(db int) Option {
	return func(r *Resolver) {
		r.noiseOverride = item.Some(db)
	}
}

// WithVoicePattern replaces the regular expression voices must match.
func WithVoicePattern(pattern *regexp.Regexp) Option {
	return func(r *Resolver) {
		if pattern != nil {
			r.voicePattern = pattern
		}
	}
}

// NewResolver builds a Resolver over defaults.
func NewResolver(defaults Defaults, opts ...Option) *Resolver {
	resolver := &Resolver{
		defaults:     defaults,
		voicePattern: regexp.MustCompile(DEFAULT_VOICE_PATTERN),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}

	return resolver
}

// Defaults returns the resolver's default table.
func (r *Resolver) Defaults() Defaults {
	return r.defaults
}

// Resolve projects a record onto a complete configuration. It never fails
// and never modifies record; use Validate to reject unusable values.
//
// Voice precedence: override, then record, then default. Noise follows the
// same order but has no default, so it stays disabled unless the override or
// the record sets it. Clicks stay disabled unless the record sets them.
func (r *Resolver) Resolve(record item.Record) ResolvedConfig {
	voice := record.Voice.OrElse(r.defaults.Voice)
	if override, ok := r.voiceOverride.Get(); ok {
		voice = override
	}

	resolved := ResolvedConfig{
		Text:         record.Text,
		Filename:     record.Filename,
		Subtitle:     record.Subtitle,
		Voice:        voice,
		LanguageCode: languageCode(voice),
		Volume:       record.Volume.OrElse(r.defaults.Volume),
		NFilter:      record.NFilter.OrElse(r.defaults.NFilter),
		HighPass:     record.HighPass.OrElse(r.defaults.HighPass),
		LowPass:      record.LowPass.OrElse(r.defaults.LowPass),
		ClickIn:      record.ClickIn.OrElse(false),
		ClickOut:     record.ClickOut.OrElse(false),
		Emphasis:     record.Emphasis,
		Rate:         record.Rate,
		Pitch:        record.Pitch,
	}

	if noise, ok := record.Noise.Get(); ok {
		resolved.Noise = NoiseLevel{Enabled: true, DB: noise}
	}

	if override, ok := r.noiseOverride.Get(); ok {
		resolved.Noise = NoiseLevel{Enabled: true, DB: override}
	}

	return resolved
}

// Validate rejects configurations that would hard-fail downstream. A bad
// voice is an error rather than a silent fallback to the default voice.
func (r *Resolver) Validate(cfg ResolvedConfig) error {
	if !r.voicePattern.MatchString(cfg.Voice) {
		return fmt.Errorf("%w: %q does not match %s", ErrInvalidVoice, cfg.Voice, r.voicePattern)
	}

	if cfg.NFilter < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeFilterCount, cfg.NFilter)
	}

	if cfg.LowPass == 0 {
		return ErrZeroLowPass
	}

	return nil
}

func languageCode(voice string) string {
	if len(voice) < languageCodeLength {
		return voice
	}

	return voice[:languageCodeLength]
}
