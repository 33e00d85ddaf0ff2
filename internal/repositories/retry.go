package repositories

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a transaction is re-run after transient
// contention.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
}

// DefaultRetryPolicy is three attempts with 25ms, 50ms backoff between them.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 25 * time.Millisecond}

// run calls fn until it succeeds, fails permanently, the attempts run out or
// ctx is done. The last error is returned.
func (p RetryPolicy) run(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(p.Base << i)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
