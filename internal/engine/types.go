package engine

import (
	"llmserve/internal/llm"
	"llmserve/pkg/types"
)

// State represents the lifecycle state of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// session is a loaded model plus its metadata.
type session struct {
	info  types.LoadedModel
	model llm.Model
}
