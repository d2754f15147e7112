package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/core"
)

// ErrHealthUnsupported is returned for providers without a health endpoint.
var ErrHealthUnsupported = errors.New("provider has no health check")

// HealthChecker is implemented by oracles that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New builds the synthesizer selected by cfg.Provider.
func New(cfg config.OracleConfig) (core.Synthesizer, error) {
	switch cfg.Provider {
	case config.PROVIDER_HTTP:
		return NewHTTPClient(cfg.URL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	case config.PROVIDER_EDGE:
		return NewEdgeSynthesizer(), nil
	case config.PROVIDER_TENCENT:
		return NewTencentSynthesizer(TencentOptions{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
			VoiceType: cfg.Tencent.VoiceType,
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

// CheckHealth runs the synthesizer's health check when it has one.
func CheckHealth(ctx context.Context, synth core.Synthesizer) error {
	checker, ok := synth.(HealthChecker)
	if !ok {
		return ErrHealthUnsupported
	}

	return checker.HealthCheck(ctx)
}
