package orchestrator

import (
	"context"
	"time"
)

// awaitResult is the outcome of a bounded wait
type awaitResult int

const (
	awaitDelivered awaitResult = iota
	awaitTimedOut
	awaitCancelled
)

// await blocks until a value arrives on ch, the timeout elapses, or the
// context is cancelled. Every suspension point in the orchestrator goes
// through this so no wait can be unbounded or ignore cancellation.
func await[T any](ctx context.Context, ch <-chan T, timeout time.Duration) (T, awaitResult) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, awaitDelivered
	case <-timer.C:
		return zero, awaitTimedOut
	case <-ctx.Done():
		return zero, awaitCancelled
	}
}

// awaitEither blocks until a value arrives on either channel, the timeout
// elapses, or the context is cancelled. Used where a wait can be satisfied
// by two different message kinds, such as user action versus force-skip.
func awaitEither[A, B any](ctx context.Context, chA <-chan A, chB <-chan B, timeout time.Duration) (a A, b B, gotA bool, result awaitResult) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-chA:
		return v, b, true, awaitDelivered
	case v := <-chB:
		return a, v, false, awaitDelivered
	case <-timer.C:
		return a, b, false, awaitTimedOut
	case <-ctx.Done():
		return a, b, false, awaitCancelled
	}
}
