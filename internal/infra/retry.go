package infra

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Backoff retries the connection to a backing service that may still be
// starting. Hub and store requests made on behalf of a user never retry.
type Backoff struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func StartupBackoff() Backoff {
	return Backoff{
		Attempts:     5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do calls fn until it succeeds, the attempts run out or ctx ends. It returns
// the last error.
func (b Backoff) Do(ctx context.Context, logger *slog.Logger, what string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := b.InitialDelay

	for attempt := 1; attempt <= b.Attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || attempt == b.Attempts {
			break
		}

		logger.Warn("dependency not ready, retrying",
			"dependency", what,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}

	return lastErr
}
