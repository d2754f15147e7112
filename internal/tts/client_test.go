package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMarkup    = `<speak><emphasis level="strong">Tonight on the air</emphasis></speak>`
	testVoice     = "en-GB-Standard-B"
	testAudioData = "ID3-fake-mp3"
)

func standardRequest() core.SynthesisRequest {
	return core.SynthesisRequest{
		Markup:       testMarkup,
		Text:         "Tonight on the air",
		Voice:        testVoice,
		LanguageCode: "en-GB",
		Encoding:     "MP3",
	}
}

func TestHTTPClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text:synthesize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload tts.SynthesisPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, testMarkup, payload.SSML)
		assert.Equal(t, testVoice, payload.Voice)
		assert.Equal(t, "en-GB", payload.LanguageCode)
		assert.Equal(t, "MP3", payload.AudioEncoding)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testAudioData))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 10*time.Second)

	audioData, err := client.Synthesize(context.Background(), standardRequest())
	require.NoError(t, err)
	assert.Equal(t, testAudioData, string(audioData))
}

func TestHTTPClient_Synthesize_InvalidInput(t *testing.T) {
	t.Parallel()

	client := tts.NewHTTPClient("http://localhost:8000", time.Second)

	req := standardRequest()
	req.Markup = ""
	_, err := client.Synthesize(context.Background(), req)
	require.ErrorIs(t, err, tts.ErrMarkupEmpty)

	req = standardRequest()
	req.Voice = ""
	_, err = client.Synthesize(context.Background(), req)
	require.ErrorIs(t, err, tts.ErrVoiceEmpty)
}

func TestHTTPClient_Synthesize_ServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		contains []string
	}{
		{
			name:     "structured",
			body:     `{"detail":"voice not found","error_code":"UNKNOWN_VOICE"}`,
			contains: []string{"voice not found", "UNKNOWN_VOICE", "400"},
		},
		{
			name:     "raw",
			body:     "bad gateway upstream",
			contains: []string{"bad gateway upstream"},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(testCase.body))
			}))
			defer server.Close()

			_, err := tts.NewHTTPClient(server.URL, time.Second).Synthesize(context.Background(), standardRequest())
			require.ErrorIs(t, err, tts.ErrServiceStatus)

			for _, fragment := range testCase.contains {
				assert.Contains(t, err.Error(), fragment)
			}
		})
	}
}

func TestHTTPClient_Synthesize_BadResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		err         error
	}{
		{name: "wrong content type", contentType: "text/plain", body: "Not audio", err: tts.ErrUnexpectedContentType},
		{name: "empty audio", contentType: "audio/wav", body: "", err: tts.ErrReceivedEmptyAudio},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", testCase.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(testCase.body))
			}))
			defer server.Close()

			_, err := tts.NewHTTPClient(server.URL, time.Second).Synthesize(context.Background(), standardRequest())
			require.ErrorIs(t, err, testCase.err)
		})
	}
}

func TestHTTPClient_Synthesize_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := tts.NewHTTPClient(server.URL, 10*time.Second).Synthesize(ctx, standardRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, tts.NewHTTPClient(server.URL, time.Second).HealthCheck(context.Background()))

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	err := tts.NewHTTPClient(unhealthy.URL, time.Second).HealthCheck(context.Background())
	require.ErrorIs(t, err, tts.ErrHealthCheck)

	err = tts.NewHTTPClient("http://127.0.0.1:1", time.Second).HealthCheck(context.Background())
	require.ErrorIs(t, err, tts.ErrHealthCheck)
}
