// Package core defines the interfaces shared between the radio clip
// pipeline and its adapters.
package core

import (
	"context"

	"github.com/book-expert/radio-tts-service/internal/audio"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SynthesisRequest is what the speech oracle receives for one item.
type SynthesisRequest struct {
	Markup       string
	Text         string
	Voice        string
	LanguageCode string
	Encoding     string
}

// Synthesizer turns markup into encoded speech bytes (MP3 or WAV).
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// Exporter writes a finished clip under name and returns where it landed.
type Exporter interface {
	Export(ctx context.Context, clip audio.Buffer, name string) (string, error)
}
