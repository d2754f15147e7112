package audio

import (
	"time"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// Defaults for the DSP provider.
const (
	DEFAULT_HEADROOM_DB       = 0.1
	DEFAULT_SILENCE_THRESHOLD = -50.0
	DEFAULT_SILENCE_CHUNK     = 10 * time.Millisecond
	DEFAULT_FILTER_ORDER      = 1
)

// DSP is the filter capability set the effects pipeline orchestrates.
type DSP interface {
	HighPass(buf Buffer, cutoffHz float64) Buffer
	LowPass(buf Buffer, cutoffHz float64) Buffer
	Normalize(buf Buffer) Buffer
	DetectLeadingSilence(buf Buffer) int
}

// Processor implements DSP with Butterworth filters, peak normalization
// and chunked RMS silence detection. The default first-order filters roll
// off at 6 dB per octave.
type Processor struct {
	filterOrder      int
	headroomDB       float64
	silenceThreshold float64
	silenceChunk     time.Duration
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithHeadroom sets the headroom below full scale that Normalize targets.
func WithHeadroom(db float64) ProcessorOption {
	return func(p *Processor) {
		if db >= 0 {
			p.headroomDB = db
		}
	}
}

// WithSilenceThreshold sets the dBFS level below which a chunk is silence.
func WithSilenceThreshold(dbfs float64) ProcessorOption {
	return func(p *Processor) {
		p.silenceThreshold = dbfs
	}
}

// WithSilenceChunk sets the window silence detection advances by.
func WithSilenceChunk(chunk time.Duration) ProcessorOption {
	return func(p *Processor) {
		if chunk > 0 {
			p.silenceChunk = chunk
		}
	}
}

// WithFilterOrder sets the Butterworth order of both filters.
func WithFilterOrder(order int) ProcessorOption {
	return func(p *Processor) {
		if order > 0 {
			p.filterOrder = order
		}
	}
}

// NewProcessor returns a Processor with defaults overridden by opts.
func NewProcessor(opts ...ProcessorOption) *Processor {
	processor := &Processor{
		filterOrder:      DEFAULT_FILTER_ORDER,
		headroomDB:       DEFAULT_HEADROOM_DB,
		silenceThreshold: DEFAULT_SILENCE_THRESHOLD,
		silenceChunk:     DEFAULT_SILENCE_CHUNK,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(processor)
		}
	}

	return processor
}

// TargetPeak is the linear peak Normalize scales to.
func (p *Processor) TargetPeak() float64 {
	return DBToRatio(-p.headroomDB)
}

// HighPass applies a Butterworth high-pass per channel. Cutoffs outside
// (0, Nyquist) leave the buffer unchanged.
func (p *Processor) HighPass(buf Buffer, cutoffHz float64) Buffer {
	return p.filter(buf, design.ButterworthHP(cutoffHz, p.filterOrder, float64(buf.sampleRate)))
}

// LowPass applies a Butterworth low-pass per channel. Cutoffs outside
// (0, Nyquist) leave the buffer unchanged.
func (p *Processor) LowPass(buf Buffer, cutoffHz float64) Buffer {
	return p.filter(buf, design.ButterworthLP(cutoffHz, p.filterOrder, float64(buf.sampleRate)))
}

// filter runs every channel through its own cascade of sections.
func (p *Processor) filter(buf Buffer, sections []biquad.Coefficients) Buffer {
	if buf.IsEmpty() || len(sections) == 0 {
		return buf.clone()
	}

	frames := buf.Frames()
	out := make([]float64, len(buf.samples))
	channel := make([]float64, frames)

	for ch := range buf.channels {
		for frame := range frames {
			channel[frame] = buf.samples[frame*buf.channels+ch]
		}

		biquad.NewChain(sections).ProcessBlock(channel)

		for frame := range frames {
			out[frame*buf.channels+ch] = channel[frame]
		}
	}

	return wrap(out, buf.sampleRate, buf.channels)
}

// Normalize scales the buffer so its peak sits at the target peak. Silent
// buffers are returned unchanged.
func (p *Processor) Normalize(buf Buffer) Buffer {
	peak := buf.Peak()
	if peak == 0 {
		return buf.clone()
	}

	return buf.Scale(p.TargetPeak() / peak)
}

// DetectLeadingSilence returns the frame offset of the first chunk whose
// RMS level reaches the silence threshold, or Frames() if none does.
func (p *Processor) DetectLeadingSilence(buf Buffer) int {
	frames := buf.Frames()
	chunk := int(int64(buf.sampleRate) * int64(p.silenceChunk) / int64(time.Second))
	chunk = max(chunk, 1)

	trim := 0
	for trim < frames && buf.Slice(trim, trim+chunk).DBFS() < p.silenceThreshold {
		trim += chunk
	}

	return min(trim, frames)
}
