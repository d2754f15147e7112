// Package orchestrator drives items through resolve, markup, synthesis,
// effects and export, one item at a time or as a bounded parallel batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/effects"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/params"
	"github.com/book-expert/radio-tts-service/internal/report"
	"github.com/book-expert/radio-tts-service/internal/ssml"
	"github.com/book-expert/radio-tts-service/internal/tts/text"
)

const (
	DEFAULT_WORKERS      = 1
	DEFAULT_ITEM_TIMEOUT = 120 * time.Second
	DEFAULT_ENCODING     = "MP3"
)

const (
	logFmtItemStart    = "Processing item %s: voice=%s volume=%d nfilter=%d highpass=%d lowpass=%d noise=%s clickin=%t clickout=%t"
	logFmtItemMarkup   = "Markup for %s: %s"
	logFmtItemDone     = "Exported %s to %s (%.2fs)"
	logFmtItemFailed   = "Item %s failed at %s: %v"
	logFmtBatchStart   = "Starting batch of %d items with %d workers"
	logFmtBatchDone    = "Batch finished: %d items, %d failed"
	logFmtBatchStopped = "Batch stopped before item %s: %v"
)

// ErrNothingToSpeak is returned when an item's text is blank after normalization.
var ErrNothingToSpeak = errors.New("text is empty after normalization")

// Options tunes batch behavior.
type Options struct {
	Workers     int
	ItemTimeout time.Duration
	Encoding    string
	Normalizer  *text.Normalizer
}

// Orchestrator runs items through the full clip pipeline.
type Orchestrator struct {
	resolver *params.Resolver
	synth    core.Synthesizer
	pipeline *effects.Pipeline
	loader   audio.Loader
	clicks   params.ClickSettings
	log      *logger.Logger
	opts     Options
}

// New creates an Orchestrator. Zero options take the defaults.
func New(
	resolver *params.Resolver,
	synth core.Synthesizer,
	pipeline *effects.Pipeline,
	loader audio.Loader,
	clicks params.ClickSettings,
	log *logger.Logger,
	opts Options,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DEFAULT_WORKERS
	}

	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DEFAULT_ITEM_TIMEOUT
	}

	if opts.Encoding == "" {
		opts.Encoding = DEFAULT_ENCODING
	}

	return &Orchestrator{
		resolver: resolver,
		synth:    synth,
		pipeline: pipeline,
		loader:   loader,
		clicks:   clicks,
		log:      log,
		opts:     opts,
	}
}

// NewClickCache returns a click cache over the orchestrator's assets.
func (o *Orchestrator) NewClickCache() *params.ClickCache {
	return params.NewClickCache(o.loader, o.clicks)
}

// ProcessItem produces and exports one clip. The returned row always
// carries the resolved parameters; Err is a *core.StageError on failure.
func (o *Orchestrator) ProcessItem(
	ctx context.Context,
	record item.Record,
	clicks *params.ClickCache,
	exporter core.Exporter,
) report.Row {
	cfg := o.resolver.Resolve(record)
	row := report.Row{Config: cfg}

	fail := func(stage core.Stage, err error) report.Row {
		row.Err = core.NewStageError(cfg.Filename, stage, err)
		o.log.Error(logFmtItemFailed, cfg.Filename, stage, err)

		return row
	}

	recordErr := record.Validate()
	if recordErr != nil {
		return fail(core.STAGE_RESOLVE, recordErr)
	}

	o.log.Info(logFmtItemStart, cfg.Filename, cfg.Voice, cfg.Volume, cfg.NFilter,
		cfg.HighPass, cfg.LowPass, noiseLabel(cfg.Noise), cfg.ClickIn, cfg.ClickOut)

	validateErr := o.resolver.Validate(cfg)
	if validateErr != nil {
		return fail(core.STAGE_VALIDATE, validateErr)
	}

	framing, clickErr := clicks.ForConfig(cfg)
	if clickErr != nil {
		return fail(core.STAGE_CLICKS, clickErr)
	}

	speech := cfg.Text
	if o.opts.Normalizer != nil {
		speech = o.opts.Normalizer.Normalize(speech)
	}

	if strings.TrimSpace(speech) == "" {
		return fail(core.STAGE_MARKUP, ErrNothingToSpeak)
	}

	markup := ssml.Build(speech, ssml.Style{Emphasis: cfg.Emphasis, Rate: cfg.Rate, Pitch: cfg.Pitch})
	o.log.Info(logFmtItemMarkup, cfg.Filename, markup)

	encoded, synthErr := o.synth.Synthesize(ctx, core.SynthesisRequest{
		Markup:       markup,
		Text:         ssml.PlainText(markup),
		Voice:        cfg.Voice,
		LanguageCode: cfg.LanguageCode,
		Encoding:     o.opts.Encoding,
	})
	if synthErr != nil {
		return fail(core.STAGE_SYNTHESIZE, synthErr)
	}

	raw, decodeErr := audio.Decode(encoded)
	if decodeErr != nil {
		return fail(core.STAGE_DECODE, decodeErr)
	}

	clip, effectsErr := o.pipeline.Process(raw, cfg, framing)
	if effectsErr != nil {
		return fail(core.STAGE_EFFECTS, effectsErr)
	}

	location, exportErr := exporter.Export(ctx, clip, cfg.Filename)
	if exportErr != nil {
		return fail(core.STAGE_EXPORT, exportErr)
	}

	row.Location = location
	row.DurationSeconds = clip.Seconds()
	o.log.Info(logFmtItemDone, cfg.Filename, location, row.DurationSeconds)

	return row
}

// ProcessBatch runs records through a bounded worker pool with one click
// cache for the whole batch. A failed item never stops the others. Rows
// are returned in input order. Once ctx is done no further items start;
// those left are reported as failed at the queue stage.
func (o *Orchestrator) ProcessBatch(ctx context.Context, records []item.Record, exporter core.Exporter) []report.Row {
	rows := make([]report.Row, len(records))
	clicks := o.NewClickCache()

	o.log.Info(logFmtBatchStart, len(records), o.opts.Workers)

	var waitGroup sync.WaitGroup

	workerPool := make(chan struct{}, o.opts.Workers)

	for index, record := range records {
		select {
		case <-ctx.Done():
			rows[index] = o.unscheduled(record, ctx.Err())

			continue
		case workerPool <- struct{}{}:
		}

		if ctx.Err() != nil {
			<-workerPool
			rows[index] = o.unscheduled(record, ctx.Err())

			continue
		}

		waitGroup.Add(1)

		go func(index int, record item.Record) {
			defer waitGroup.Done()
			defer func() { <-workerPool }()

			itemCtx, cancel := context.WithTimeout(ctx, o.opts.ItemTimeout)
			defer cancel()

			rows[index] = o.ProcessItem(itemCtx, record, clicks, exporter)
		}(index, record)
	}

	waitGroup.Wait()

	o.log.Info(logFmtBatchDone, len(rows), report.Failed(rows))

	return rows
}

func (o *Orchestrator) unscheduled(record item.Record, cause error) report.Row {
	cfg := o.resolver.Resolve(record)
	o.log.Warn(logFmtBatchStopped, cfg.Filename, cause)

	return report.Row{Config: cfg, Err: core.NewStageError(cfg.Filename, core.STAGE_QUEUE, cause)}
}

func noiseLabel(noise params.NoiseLevel) string {
	if !noise.Enabled {
		return "off"
	}

	return fmt.Sprintf("%ddB", noise.DB)
}
