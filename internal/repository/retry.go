package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// RetryPolicy bounds how often a transaction is restarted after a
// deadlock or lock wait timeout.  Backoff doubles from Base on every
// attempt.  OnRetry, when set, is called before each restart.
type RetryPolicy struct {
	Retries int
	Base    time.Duration
	OnRetry func(attempt int, err error)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Base <= 0 {
		p.Base = 20 * time.Millisecond
	}
	return p
}

// do runs fn until it succeeds, fails with a non-transient error, or the
// retries are used up.  Exhaustion is reported as scheduler.ErrBusy.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt >= p.Retries {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		t := time.NewTimer(p.Base << attempt)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts: %w", scheduler.ErrBusy, p.Retries+1, err)
}
