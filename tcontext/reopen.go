// Package tcontext contains context utilities.
package tcontext

import (
	"context"
	"time"
)

// Reopen returns a context that inherits all values stored in the parent but
// not its lifespan: the result has no deadline and is never closed, even if
// the parent already is. Used to let in-flight work outlive a cancelled
// parent for a bounded grace period.
func Reopen(ctx context.Context) context.Context {
	return reopened{Context: ctx}
}

type reopened struct {
	context.Context //nolint:containedctx // this struct exists to wrap a context
}

func (reopened) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (reopened) Done() <-chan struct{} {
	return nil
}

func (reopened) Err() error {
	return nil
}
