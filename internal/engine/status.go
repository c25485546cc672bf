package engine

import (
	"time"

	"llmserve/pkg/types"
)

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur != nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status returns a snapshot suitable for GET /status.
func (e *Engine) Status() types.StatusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := types.StatusResponse{
		State:            string(e.state),
		LastError:        e.lastErr,
		UptimeSeconds:    int64(time.Since(e.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
		LoadsTotal:       e.loads.Load(),
		GenerationsTotal: e.generations.Load(),
	}
	if e.cur != nil {
		info := e.cur.info
		out.Model = &info
	}
	return out
}
