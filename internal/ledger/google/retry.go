package google

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/api/googleapi"
)

type retryOptions struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

var defaultRetryOptions = retryOptions{
	maxAttempts:  3,
	initialDelay: 200 * time.Millisecond,
	maxDelay:     5 * time.Second,
	multiplier:   2.0,
}

// withRetry runs operation with exponential backoff on transient API
// failures. Non-transient failures return immediately.
func withRetry(ctx context.Context, opts retryOptions, operation func() error) error {
	delay := opts.initialDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !transient(err) || attempt == opts.maxAttempts {
			return err
		}
		slog.Warn("Sheets call failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.maxAttempts,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * opts.multiplier)
		if delay > opts.maxDelay {
			delay = opts.maxDelay
		}
	}
}

func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
