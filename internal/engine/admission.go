package engine

import (
	"context"
	"time"
)

// acquire reserves the single execution slot. Model swaps, generation and
// one-shot inference all run under it because runtimes are not re-entrant.
// Returns a release func to be deferred.
func (e *Engine) acquire(ctx context.Context, op string) (func(), error) {
	select {
	case e.slot <- struct{}{}:
		return e.release, nil
	default:
	}
	timer := time.NewTimer(e.maxWait)
	defer timer.Stop()
	select {
	case e.slot <- struct{}{}:
		return e.release, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		busyTotal.WithLabelValues(op).Inc()
		return func() {}, tooBusyError{op: op}
	}
}

func (e *Engine) release() { <-e.slot }
