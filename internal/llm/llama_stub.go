//go:build !llama

package llm

import (
	"context"

	"github.com/rs/zerolog"
)

// LlamaConfig holds process-wide settings for the in-process runtime.
type LlamaConfig struct {
	ContextSize int
	Threads     int
	GPULayers   int
	Logger      zerolog.Logger
}

// llamaLoader refuses to load without the 'llama' build tag so default
// builds stay CGO-free.
type llamaLoader struct{}

// NewLlamaLoader returns a loader that always reports the runtime missing.
func NewLlamaLoader(LlamaConfig) Loader { return llamaLoader{} }

func (llamaLoader) Load(ctx context.Context, dir string, opts LoadOptions) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
