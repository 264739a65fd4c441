package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn with a deadline derived from ctx. A non-positive
// timeout runs fn directly, which lets callers disable the bound through
// configuration. fn runs in its own goroutine so even an implementation
// that ignores its context cannot hold the caller past the deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(bounded) }()

	select {
	case err := <-errc:
		return err
	case <-bounded.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}
