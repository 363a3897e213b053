// Package test contains helpers for unit tests: contexts with a testing
// logger and parallel groups tied to test cleanup.
package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/picoserve/picoserve/tlog"
	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
)

// Context returns a new testing context with a logger, the replacement for
// the context normally built by run.Tool.
func Context(t *testing.T) context.Context {
	return tlog.WithLogger(context.Background(), tlog.NewForTesting(t))
}

// ContextWithTimeout is a version of Context with a timeout.
//
// If the timeout expires, the test context is closed with
// context.DeadlineExceeded.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(Context(t), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Group returns a parallel.Group with a testing context. The group is wound
// down on test cleanup; if it finishes with an error other than
// context.Canceled, the test fails.
func Group(t *testing.T) *parallel.Group {
	return groupWith(t, Context(t))
}

// GroupWithTimeout is a version of Group with a timeout.
func GroupWithTimeout(t *testing.T, timeout time.Duration) *parallel.Group {
	return groupWith(t, ContextWithTimeout(t, timeout))
}

func groupWith(t *testing.T, ctx context.Context) *parallel.Group {
	group := parallel.NewGroup(ctx)
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}
