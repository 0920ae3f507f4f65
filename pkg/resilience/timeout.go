package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Timeout runs fn with a deadline of d; d <= 0 means no deadline. fn keeps
// running in the background after a timeout, so it must honour ctx. A
// timeout error matches both apperrors.ErrTimeout and
// context.DeadlineExceeded.
func Timeout[T any](ctx context.Context, d time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("%s exceeded %v: %w: %w", name, d, apperrors.ErrTimeout, context.DeadlineExceeded)
		}
		return zero, fmt.Errorf("%s: %w", name, ctx.Err())
	}
}
