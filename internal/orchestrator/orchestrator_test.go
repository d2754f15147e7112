package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/effects"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/orchestrator"
	"github.com/book-expert/radio-tts-service/internal/params"
	"github.com/book-expert/radio-tts-service/internal/report"
	"github.com/book-expert/radio-tts-service/internal/tts/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 16000

func speechWAV(t *testing.T) []byte {
	t.Helper()

	samples := make([]float64, testRate/2)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/testRate)
	}

	voiced, err := audio.NewBuffer(samples, testRate, 1)
	require.NoError(t, err)

	withLead, err := audio.Silence(testRate/10, testRate, 1).Append(voiced)
	require.NoError(t, err)

	padded, err := withLead.Append(audio.Silence(testRate/10, testRate, 1))
	require.NoError(t, err)

	data, err := audio.EncodeWAVBytes(padded)
	require.NoError(t, err)

	return data
}

type fakeSynth struct {
	mu       sync.Mutex
	audio    []byte
	err      error
	delay    map[string]time.Duration
	block    bool
	requests []core.SynthesisRequest
}

func (f *fakeSynth) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	delay := f.delay[req.Text]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	if f.err != nil {
		return nil, f.err
	}

	return f.audio, nil
}

type fakeExporter struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeExporter) Export(_ context.Context, clip audio.Buffer, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.names = append(f.names, name)

	return fmt.Sprintf("mem://%s.wav?frames=%d", name, clip.Frames()), nil
}

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (c *countingLoader) LoadAudioFile(string) (audio.Buffer, error) {
	c.calls.Add(1)

	if c.err != nil {
		return audio.Buffer{}, c.err
	}

	return audio.NewBuffer(make([]float64, 800), testRate, 1)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "orchestrator-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

type harness struct {
	orch     *orchestrator.Orchestrator
	synth    *fakeSynth
	exporter *fakeExporter
	loader   *countingLoader
}

func newHarness(t *testing.T, opts orchestrator.Options, resolverOpts ...params.Option) *harness {
	t.Helper()

	synth := &fakeSynth{audio: speechWAV(t)}
	loader := &countingLoader{}
	pipeline := effects.New(audio.NewProcessor(), audio.NewWhiteNoise(5))
	resolver := params.NewResolver(params.NewDefaults(), resolverOpts...)

	return &harness{
		orch:     orchestrator.New(resolver, synth, pipeline, loader, params.NewClickSettings(), testLogger(t), opts),
		synth:    synth,
		exporter: &fakeExporter{},
		loader:   loader,
	}
}

func record(text, filename string) item.Record {
	return item.Record{Text: text, Filename: filename}
}

func TestProcessItem_Success(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{}, params.WithVoiceOverride("en-GB-Wavenet-C"))

	rec := record("Good evening", "evening")
	rec.Voice = item.Some("en-US-Standard-B")
	rec.Rate = item.Some("slow")
	rec.ClickIn = item.Some(true)

	row := h.orch.ProcessItem(context.Background(), rec, h.orch.NewClickCache(), h.exporter)
	require.NoError(t, row.Err)

	assert.Equal(t, "en-GB-Wavenet-C", row.Config.Voice)
	assert.Greater(t, row.DurationSeconds, 0.5)
	assert.Less(t, row.DurationSeconds, 0.7)
	assert.True(t, strings.HasPrefix(row.Location, "mem://evening.wav"))
	assert.Equal(t, []string{"evening"}, h.exporter.names)

	require.Len(t, h.synth.requests, 1)
	req := h.synth.requests[0]
	assert.Equal(t, `<speak><prosody rate="slow">Good evening</prosody></speak>`, req.Markup)
	assert.Equal(t, "Good evening", req.Text)
	assert.Equal(t, "en-GB-Wavenet-C", req.Voice)
	assert.Equal(t, "en-GB", req.LanguageCode)
	assert.Equal(t, orchestrator.DEFAULT_ENCODING, req.Encoding)
}

func TestProcessItem_SparseRecordEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{})

	row := h.orch.ProcessItem(context.Background(), record("Hello", "hello"), h.orch.NewClickCache(), h.exporter)
	require.NoError(t, row.Err)

	assert.Equal(t, 0, row.Config.Volume)
	assert.Equal(t, 3, row.Config.NFilter)
	assert.Equal(t, 4000, row.Config.HighPass)
	assert.Equal(t, 3000, row.Config.LowPass)
	assert.False(t, row.Config.Noise.Enabled)
	assert.False(t, row.Config.ClickIn)
	assert.False(t, row.Config.ClickOut)
	assert.GreaterOrEqual(t, row.DurationSeconds, 0.45)
	assert.Zero(t, h.loader.calls.Load())
}

func TestProcessItem_FailureStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record item.Record
		setup  func(h *harness)
		stage  core.Stage
		kind   error
	}{
		{
			name:   "missing text",
			record: record("", "blank"),
			stage:  core.STAGE_RESOLVE,
			kind:   core.ErrConfiguration,
		},
		{
			name:   "invalid voice",
			record: item.Record{Text: "Hi", Filename: "hi", Voice: item.Some("robot")},
			stage:  core.STAGE_VALIDATE,
			kind:   core.ErrConfiguration,
		},
		{
			name:   "negative nfilter",
			record: item.Record{Text: "Hi", Filename: "hi", NFilter: item.Some(-1)},
			stage:  core.STAGE_VALIDATE,
			kind:   core.ErrConfiguration,
		},
		{
			name:   "missing click asset",
			record: item.Record{Text: "Hi", Filename: "hi", ClickOut: item.Some(true)},
			setup:  func(h *harness) { h.loader.err = errors.New("open assets/Out.wav: no such file") },
			stage:  core.STAGE_CLICKS,
			kind:   core.ErrConfiguration,
		},
		{
			name:   "oracle failure",
			record: record("Hi", "hi"),
			setup:  func(h *harness) { h.synth.err = errors.New("quota exceeded") },
			stage:  core.STAGE_SYNTHESIZE,
			kind:   core.ErrOracle,
		},
		{
			name:   "undecodable audio",
			record: record("Hi", "hi"),
			setup:  func(h *harness) { h.synth.audio = []byte("<html>oops</html>") },
			stage:  core.STAGE_DECODE,
			kind:   core.ErrPipeline,
		},
		{
			name:   "export failure",
			record: record("Hi", "hi"),
			setup:  func(h *harness) { h.exporter.err = errors.New("disk full") },
			stage:  core.STAGE_EXPORT,
			kind:   core.ErrExport,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, orchestrator.Options{})
			if testCase.setup != nil {
				testCase.setup(h)
			}

			row := h.orch.ProcessItem(context.Background(), testCase.record, h.orch.NewClickCache(), h.exporter)
			require.Error(t, row.Err)
			require.ErrorIs(t, row.Err, testCase.kind)
			assert.Equal(t, testCase.stage, row.Stage())
			assert.Equal(t, report.STATUS_FAILED, row.Status())
			assert.Contains(t, row.Err.Error(), fmt.Sprintf("item %q failed at %s", testCase.record.Filename, testCase.stage))
			assert.Empty(t, row.Location)
		})
	}
}

func TestProcessItem_NormalizesText(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{Normalizer: text.NewNormalizer()})

	row := h.orch.ProcessItem(context.Background(), record("  “Live”  at five!!", "live"), h.orch.NewClickCache(), h.exporter)
	require.NoError(t, row.Err)
	assert.Equal(t, `<speak>"Live" at five!</speak>`, h.synth.requests[0].Markup)

	blank := h.orch.ProcessItem(context.Background(), record(" \t ", "blank"), h.orch.NewClickCache(), h.exporter)
	assert.Equal(t, core.STAGE_MARKUP, blank.Stage())
	require.ErrorIs(t, blank.Err, orchestrator.ErrNothingToSpeak)
}

func TestProcessBatch_OrderAndSkipAndContinue(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{Workers: 3})
	h.synth.delay = map[string]time.Duration{"first": 60 * time.Millisecond}

	records := []item.Record{
		{Text: "first", Filename: "a", ClickIn: item.Some(true)},
		{Text: "second", Filename: "b", Voice: item.Some("bad")},
		{Text: "third", Filename: "c", ClickIn: item.Some(true), ClickOut: item.Some(true)},
		{Text: "fourth", Filename: "d"},
	}

	rows := h.orch.ProcessBatch(context.Background(), records, h.exporter)
	require.Len(t, rows, 4)

	for index, row := range rows {
		assert.Equal(t, records[index].Filename, row.Config.Filename)
	}

	assert.True(t, rows[0].OK())
	assert.Equal(t, core.STAGE_VALIDATE, rows[1].Stage())
	assert.True(t, rows[2].OK())
	assert.True(t, rows[3].OK())
	assert.Equal(t, 1, report.Failed(rows))
	assert.Equal(t, int32(2), h.loader.calls.Load(), "each click asset is loaded once per batch")
}

func TestProcessBatch_ItemTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{ItemTimeout: 50 * time.Millisecond})
	h.synth.block = true

	rows := h.orch.ProcessBatch(context.Background(), []item.Record{record("Hi", "hi")}, h.exporter)
	require.Len(t, rows, 1)
	assert.Equal(t, core.STAGE_SYNTHESIZE, rows[0].Stage())
	require.ErrorIs(t, rows[0].Err, context.DeadlineExceeded)
}

func TestProcessBatch_CanceledStopsScheduling(t *testing.T) {
	t.Parallel()

	h := newHarness(t, orchestrator.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := h.orch.ProcessBatch(ctx, []item.Record{record("One", "one"), record("Two", "two")}, h.exporter)
	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Equal(t, core.STAGE_QUEUE, row.Stage())
		require.ErrorIs(t, row.Err, context.Canceled)
	}

	assert.Empty(t, h.synth.requests)
	assert.Empty(t, h.exporter.names)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Oracle.Provider = config.PROVIDER_TENCENT
	cfg.Batch.NormalizeText = true

	synth := &fakeSynth{audio: speechWAV(t)}
	overrides := orchestrator.Overrides{Voice: "101016", Noise: item.Some(-30)}
	orch := orchestrator.FromConfig(cfg, synth, overrides, testLogger(t))

	row := orch.ProcessItem(context.Background(), record("Hello…", "numeric"), orch.NewClickCache(), &fakeExporter{})
	require.NoError(t, row.Err)
	assert.Equal(t, "101016", synth.requests[0].Voice)
	assert.Equal(t, "<speak>Hello...</speak>", synth.requests[0].Markup)
	assert.Equal(t, params.NoiseLevel{Enabled: true, DB: -30}, row.Config.Noise)
}
