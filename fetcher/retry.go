package fetcher

import (
	"context"
	"time"
)

// retryPolicy retries a single-item operation with exponential backoff.
// It returns the final attempt's original error after exhaustion so the
// caller sees the real failure, not a retry wrapper.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
	cap      time.Duration
}

func (p retryPolicy) do(ctx context.Context, sleep func(context.Context, time.Duration), fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || attempt >= p.attempts {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		sleep(ctx, p.delay(attempt))
	}
}

// delay doubles the base backoff per attempt, capped at p.cap.
func (p retryPolicy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := p.backoff
	if base <= 0 {
		base = time.Second
	}
	d := base * time.Duration(1<<(attempt-1))
	if p.cap > 0 && d > p.cap {
		d = p.cap
	}
	return d
}
