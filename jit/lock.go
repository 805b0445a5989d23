package jit

import (
	"context"
	"errors"
	"time"

	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"golang.org/x/sync/semaphore"
)

// lock is the single exclusive lock over the cache, statistics and
// environment. Acquisition is bounded by a timeout.
type lock struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func newLock(timeout time.Duration) *lock {
	return &lock{sem: semaphore.NewWeighted(1), timeout: timeout}
}

// acquire waits up to the timeout. A timeout yields a busy error; a caller
// cancellation yields the context's error.
func (l *lock) acquire(ctx context.Context) error {
	if l.sem.TryAcquire(1) {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return hperrors.NewBusyError(l.timeout)
		}
		return err
	}
	return nil
}

// wait blocks until the lock is held, ignoring both the timeout and caller
// cancellation. It is for work that was already admitted.
func (l *lock) wait() {
	// Acquire only fails when its context is done.
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *lock) release() {
	l.sem.Release(1)
}
