package orchestrator

import (
	"regexp"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/effects"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/params"
	"github.com/book-expert/radio-tts-service/internal/tts/text"
)

// Tencent voices are numeric voice types as well as locale names.
const tencentVoicePattern = `^([a-z]{2,3}-[A-Z]{2}-\S+|\d+)$`

// Overrides are run-wide values that win over every item's own fields.
type Overrides struct {
	// Voice is ignored when empty.
	Voice string
	// Noise turns the noise overlay on at this level for every item.
	Noise item.Optional[int]
}

func (o Overrides) resolverOptions() []params.Option {
	opts := []params.Option{params.WithVoiceOverride(o.Voice)}

	if noise, ok := o.Noise.Get(); ok {
		opts = append(opts, params.WithNoiseOverride(noise))
	}

	return opts
}

// FromConfig wires an Orchestrator from configuration with run-wide overrides.
func FromConfig(cfg config.Config, synth core.Synthesizer, overrides Overrides, log *logger.Logger) *Orchestrator {
	resolverOpts := overrides.resolverOptions()
	if cfg.Oracle.Provider == config.PROVIDER_TENCENT {
		resolverOpts = append(resolverOpts, params.WithVoicePattern(regexp.MustCompile(tencentVoicePattern)))
	}

	resolver := params.NewResolver(params.Defaults{
		Voice:    cfg.Defaults.Voice,
		Volume:   cfg.Defaults.Volume,
		NFilter:  cfg.Defaults.NFilter,
		HighPass: cfg.Defaults.HighPass,
		LowPass:  cfg.Defaults.LowPass,
	}, resolverOpts...)

	processor := audio.NewProcessor(
		audio.WithHeadroom(cfg.Effects.HeadroomDB),
		audio.WithSilenceThreshold(cfg.Effects.SilenceThreshold),
		audio.WithSilenceChunk(time.Duration(cfg.Effects.SilenceChunkMS)*time.Millisecond),
		audio.WithFilterOrder(cfg.Effects.FilterOrder),
	)

	pipeline := effects.New(processor, audio.NewWhiteNoise(cfg.Effects.NoiseSeed))

	clicks := params.ClickSettings{
		Dir:         cfg.Effects.ClickDir,
		InFile:      cfg.Effects.ClickIn,
		OutFile:     cfg.Effects.ClickOut,
		ReductionDB: cfg.Effects.ClickReductionDB,
	}

	opts := Options{
		Workers:     cfg.Batch.Workers,
		ItemTimeout: time.Duration(cfg.Batch.ItemTimeoutSeconds) * time.Second,
		Encoding:    cfg.Oracle.AudioEncoding,
	}

	if cfg.Batch.NormalizeText {
		opts.Normalizer = text.NewNormalizer()
	}

	return New(resolver, synth, pipeline, audio.FileLoader{}, clicks, log, opts)
}
