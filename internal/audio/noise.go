package audio

import (
	"math/rand/v2"
	"sync"
)

// NoiseGenerator synthesizes noise buffers.
type NoiseGenerator interface {
	WhiteNoise(frames, sampleRate, channels int, amplitudeDB float64) Buffer
}

// WhiteNoise produces uniform white noise whose peak amplitude is set in
// dB below full scale. It is safe for concurrent use.
type WhiteNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWhiteNoise seeds a generator. A zero seed draws a random one.
func NewWhiteNoise(seed uint64) *WhiteNoise {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &WhiteNoise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// WhiteNoise returns frames of noise in the requested format.
func (w *WhiteNoise) WhiteNoise(frames, sampleRate, channels int, amplitudeDB float64) Buffer {
	gain := DBToRatio(amplitudeDB)
	out := make([]float64, max(frames, 0)*channels)

	w.mu.Lock()
	for i := range out {
		out[i] = (w.rng.Float64()*2 - 1) * gain
	}
	w.mu.Unlock()

	return wrap(out, sampleRate, channels)
}
