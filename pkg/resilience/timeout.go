package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

type timedResult[T any] struct {
	value T
	err   error
}

// Timed runs fn under a deadline and hands back its result. Hitting the
// deadline yields an error wrapping errors.ErrTimeout and
// context.DeadlineExceeded; a cancelled parent yields the parent's error.
// A non-positive timeout runs fn unbounded.
func Timed[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan timedResult[T], 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- timedResult[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		return zero, fmt.Errorf("%s: %w: %w (limit %v)", name, apperrors.ErrTimeout, context.DeadlineExceeded, timeout)
	}
}
