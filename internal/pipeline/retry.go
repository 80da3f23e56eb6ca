package pipeline

import (
	"context"
	"time"
)

// RetryOptions controls the backoff schedule of RunWithRetry.
type RetryOptions struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:    3,
		InitialDelay:  1000 * time.Millisecond,
		MaxDelay:      30000 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// OnRetryFunc is invoked before each backoff sleep with the attempt number
// that just failed and the delay about to be slept.
type OnRetryFunc func(attempt int, delay time.Duration)

// RunWithRetry executes op up to opts.MaxRetries times, sleeping an
// exponentially increasing delay (capped at opts.MaxDelay) between attempts.
// Failures are classified against serviceName; a non-retryable failure is
// returned immediately without sleeping. After all attempts fail, the last
// classified error is returned.
func RunWithRetry(ctx context.Context, serviceName string, opts RetryOptions, onRetry OnRetryFunc, op func() error) error {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultRetryOptions().MaxRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultRetryOptions().InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryOptions().MaxDelay
	}
	if opts.BackoffFactor <= 1 {
		opts.BackoffFactor = DefaultRetryOptions().BackoffFactor
	}

	delay := opts.InitialDelay
	var lastErr *ServiceError
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		svcErr := Classify(err, serviceName)
		if !svcErr.Retryable {
			return svcErr
		}
		lastErr = svcErr
		if attempt == opts.MaxRetries {
			break
		}

		if onRetry != nil {
			onRetry(attempt, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Classify(ctx.Err(), serviceName)
		}

		delay = time.Duration(float64(delay) * opts.BackoffFactor)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return lastErr
}
