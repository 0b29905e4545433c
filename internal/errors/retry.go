package errors

import (
	"context"
	"time"
)

// DelayFunc returns how long to wait before the given retry (1-based).
type DelayFunc func(attempt int) time.Duration

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries     int         // Maximum number of retries (0 = no retries)
	Delay          DelayFunc   // Wait before each retry; nil means no wait
	RetryableTypes []ErrorType // Error types that should be retried
}

// DefaultRetryConfig retries timeouts once with no wait.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     1,
		RetryableTypes: []ErrorType{Timeout},
	}
}

// Retrier runs an operation again after retryable failures.
type Retrier struct {
	config RetryConfig
	sleep  SleepFunc
}

// NewRetrier creates a new retrier. A nil sleep uses SleepContext.
func NewRetrier(config RetryConfig, sleep SleepFunc) *Retrier {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Retrier{config: config, sleep: sleep}
}

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryResult holds the result of a retry operation.
type RetryResult struct {
	Attempts  int           // Number of attempts made
	LastError error         // The last error encountered
	Duration  time.Duration // Total time spent retrying
	Success   bool          // Whether the operation succeeded
}

// Do executes the function with retries.
func (r *Retrier) Do(ctx context.Context, operation string, url string, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts++

		err := fn(ctx)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.Duration = time.Since(start)
			return result
		}
		result.LastError = err

		if ctx.Err() != nil {
			result.LastError = NewCancelledError(url, operation)
			break
		}

		if attempt >= r.config.MaxRetries || !r.shouldRetry(err) {
			break
		}

		if r.config.Delay != nil {
			if err := r.sleep(ctx, r.config.Delay(attempt+1)); err != nil {
				result.LastError = NewCancelledError(url, operation)
				break
			}
		}
	}

	result.Duration = time.Since(start)
	return result
}

// shouldRetry checks if an error should be retried.
func (r *Retrier) shouldRetry(err error) bool {
	errType := GetErrorType(err)
	for _, t := range r.config.RetryableTypes {
		if errType == t {
			return true
		}
	}
	return IsRetryable(err)
}

// SleepContext waits for d unless ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
