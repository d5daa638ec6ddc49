package resilience

import (
	"time"

	"github.com/sells-group/contract-review/internal/apperr"
)

// ConflictRetry retries a whole operation after a ConflictError. retries is
// the number of extra attempts.
func ConflictRetry(retries int) RetryConfig {
	if retries < 0 {
		retries = 0
	}
	return RetryConfig{
		MaxAttempts:    retries + 1,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
		ShouldRetry:    apperr.IsConflict,
		OnRetry:        RetryLogger("store", "review"),
	}
}

// PostbackRetry makes retryCount+1 attempts on transient failures.
func PostbackRetry(target string, retryCount int) RetryConfig {
	cfg := DefaultRetryConfig()
	if retryCount < 0 {
		retryCount = 0
	}
	cfg.MaxAttempts = retryCount + 1
	cfg.OnRetry = RetryLogger(target, "postback")
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
