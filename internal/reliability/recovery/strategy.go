package recovery

import (
	"math"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/reliability/classifier"
)

// RetryStrategy defines how connection retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the backoff delay for the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if another attempt is allowed for the category
	// and attempt count.
	ShouldRetry(category domain.ErrorCategory, attempt int) bool
}

// ExponentialBackoff implements a standard backoff strategy.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultBackoff returns defaults tuned for interactive connection
// recovery: 1s, 2s, 4s (max 30s).
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  3,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt, capped at MaxDelay.
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks the category is recoverable and max attempts not
// exceeded.
func (s *ExponentialBackoff) ShouldRetry(category domain.ErrorCategory, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return classifier.IsRecoverable(category)
}
