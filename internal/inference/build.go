package inference

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Backend names accepted by Build.
const (
	ProviderMock      = "mock"
	ProviderAnthropic = "anthropic"
)

// Settings selects and tunes the assessor chain.
type Settings struct {
	Provider  string
	MockDelay time.Duration
	// CacheSize bounds the assessment cache; zero disables caching.
	CacheSize int
	Anthropic AnthropicConfig
	Retry     RetryConfig
}

// Build assembles the configured backend. Remote backends are wrapped with
// retries, and any backend may be fronted by the cache.
func Build(s Settings, logger *zap.Logger) (Assessor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var assessor Assessor
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderMock:
		assessor = NewMock(s.MockDelay)
	case ProviderAnthropic:
		remote, err := NewAnthropic(s.Anthropic, logger.Named("anthropic"))
		if err != nil {
			return nil, err
		}
		assessor = NewRetrying(remote, s.Retry, logger.Named("retry"))
	default:
		return nil, eris.Errorf("inference: unknown provider %q", s.Provider)
	}
	if s.CacheSize > 0 {
		cached, err := NewCached(assessor, s.CacheSize, logger.Named("cache"))
		if err != nil {
			return nil, err
		}
		assessor = cached
	}
	return assessor, nil
}
