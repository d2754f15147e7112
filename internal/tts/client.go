// Package tts provides the speech synthesis oracles behind core.Synthesizer.
//
// Three providers exist: a JSON HTTP service that accepts SSML, Microsoft
// Edge read-aloud (plain text only) and Tencent Cloud TTS (SSML in the text
// field). Each returns encoded audio bytes; decoding is the caller's job.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/book-expert/radio-tts-service/internal/core"
)

// API endpoints and paths.
const (
	apiSynthesize = "/v1/text:synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "%w: got %s"
	errFmtServiceErrorWithCode  = "%w: %s: %s (code: %s)"
	errFmtServiceNonOKStatus    = "%w: %s, body: %s"
)

var (
	ErrMarkupEmpty           = errors.New("markup cannot be empty")
	ErrVoiceEmpty            = errors.New("voice cannot be empty")
	ErrUnexpectedContentType = errors.New("unexpected content type: expected audio/mpeg or audio/wav")
	ErrReceivedEmptyAudio    = errors.New("received empty audio data")
	ErrServiceStatus         = errors.New("speech service returned non-OK status")
	ErrHealthCheck           = errors.New("health check failed")
)

var audioContentTypes = []string{contentTypeMPEG, contentTypeWAV}

// HTTPClient represents a client for a JSON speech synthesis service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SynthesisPayload defines the JSON payload for synthesis requests.
type SynthesisPayload struct {
	SSML          string `json:"ssml"`
	Voice         string `json:"voice"`
	LanguageCode  string `json:"language_code"`
	AudioEncoding string `json:"audio_encoding"`
}

// ErrorResponse represents a structured error from the service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the service at baseURL
// (e.g. "http://localhost:8000"). timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize posts the markup and voice and returns the encoded audio.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Markup == "" {
		return nil, ErrMarkupEmpty
	}

	if req.Voice == "" {
		return nil, ErrVoiceEmpty
	}

	requestBody, err := json.Marshal(SynthesisPayload{
		SSML:          req.Markup,
		Voice:         req.Voice,
		LanguageCode:  req.LanguageCode,
		AudioEncoding: req.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesize,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG+", "+contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to speech service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !slices.Contains(audioContentTypes, contentType) {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, ErrUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the service is running and operational.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w for service at %s: %w", ErrHealthCheck, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w with status: %s", ErrHealthCheck, resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the
// raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			ErrServiceStatus, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, ErrServiceStatus, resp.Status, string(body))
}
