// Package llm adapts model runtimes behind a small Loader/Model surface.
//
// Backends:
//
//   - llama: in-process go-llama.cpp, compiled with `-tags=llama`. Default
//     builds carry a stub that fails with a dependency-unavailable error.
//   - server: an external llama.cpp server speaking the OpenAI HTTP API.
package llm

import (
	"context"
	"errors"
	"net/http"

	"llmserve/internal/validate"
)

// Loader loads a downloaded snapshot into a runnable model.
type Loader interface {
	Load(ctx context.Context, dir string, opts LoadOptions) (Model, error)
}

// Model is a loaded model together with its tokenizer. Implementations are
// not required to be safe for concurrent Generate calls.
type Model interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Close() error
}

// LoadOptions are passed opaquely from the initialize request.
type LoadOptions struct {
	Optimize validate.Optimize
	// Device is "auto", "cpu" or a backend specific accelerator name.
	Device    string
	FlashAttn bool
}

// GenerateOptions are validated sampling parameters.
type GenerateOptions struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// GenerateOptionsFrom converts validated request parameters.
func GenerateOptionsFrom(p validate.GenerateParams) GenerateOptions {
	return GenerateOptions{
		MaxNewTokens:      p.MaxNewTokens,
		Temperature:       p.Temperature,
		TopP:              p.TopP,
		RepetitionPenalty: p.RepetitionPenalty,
	}
}

// dependencyUnavailableError signals a missing runtime (e.g. llama support not
// compiled in, llama server unreachable) so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string   { return e.msg }
func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDependencyUnavailable constructs a dependency-unavailable error.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}
