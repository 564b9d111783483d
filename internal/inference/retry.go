package inference

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first. Default: 3.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration
	// MaxBackoff caps any single delay. Default: 10s.
	MaxBackoff time.Duration
	// Multiplier scales the delay after each attempt. Default: 2.0.
	Multiplier float64
	// JitterFraction adds ±fraction of the computed delay.
	JitterFraction float64
}

// DefaultRetryConfig returns the retry settings used for remote backends.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func (cfg RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		spread := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retrying retries retryable failures of Next.
type Retrying struct {
	Next   Assessor
	Config RetryConfig
	Logger *zap.Logger
}

// NewRetrying wraps next with retry behavior.
func NewRetrying(next Assessor, cfg RetryConfig, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{Next: next, Config: cfg.withDefaults(), Logger: logger}
}

// Assess calls Next until it succeeds, fails permanently, or attempts run out.
// Context cancellation stops retries immediately.
func (r *Retrying) Assess(ctx context.Context, req Request) (claims.Assessment, error) {
	cfg := r.Config.withDefaults()
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := r.Next.Assess(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = Wrap("assess", err)
		if ctx.Err() != nil || !IsRetryable(lastErr) {
			return claims.Assessment{}, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}
		if r.Logger != nil {
			r.Logger.Warn("retrying assessment",
				zap.String("claim_id", req.Claim.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}
		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return claims.Assessment{}, lastErr
		case <-timer.C:
		}
	}
	return claims.Assessment{}, lastErr
}
