package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/ssml"
)

const edgeMessageAudio = "audio"

// ErrTextEmpty is returned when there is nothing to speak.
var ErrTextEmpty = errors.New("text cannot be empty")

// EdgeStreamFunc collects the MP3 stream for text spoken by voice.
type EdgeStreamFunc func(ctx context.Context, text, voice string) ([]byte, error)

// EdgeSynthesizer speaks through Microsoft Edge read-aloud. The service
// does not take SSML, so the markup is reduced to its text and prosody is
// left to the voice.
type EdgeSynthesizer struct {
	stream EdgeStreamFunc
}

// NewEdgeSynthesizer returns a synthesizer using the edge-tts websocket client.
func NewEdgeSynthesizer() *EdgeSynthesizer {
	return &EdgeSynthesizer{stream: streamEdge}
}

// NewEdgeSynthesizerWithStream returns a synthesizer over a custom stream.
func NewEdgeSynthesizerWithStream(stream EdgeStreamFunc) *EdgeSynthesizer {
	return &EdgeSynthesizer{stream: stream}
}

// Synthesize returns MP3 bytes for the request.
func (e *EdgeSynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	text := req.Text
	if text == "" {
		text = ssml.PlainText(req.Markup)
	}

	if text == "" {
		return nil, ErrTextEmpty
	}

	if req.Voice == "" {
		return nil, ErrVoiceEmpty
	}

	audioData, streamErr := e.stream(ctx, text, req.Voice)
	if streamErr != nil {
		return nil, fmt.Errorf("edge-tts synthesis failed: %w", streamErr)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

func streamEdge(ctx context.Context, text, voice string) ([]byte, error) {
	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("failed to create edge-tts session: %w", err)
	}

	messages, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("failed to start edge-tts stream: %w", err)
	}

	var mp3Buf bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return mp3Buf.Bytes(), nil
			}

			if msgType, isString := msg["type"].(string); isString && msgType == edgeMessageAudio {
				if data, isBytes := msg["data"].([]byte); isBytes {
					mp3Buf.Write(data)
				}
			}
		}
	}
}
