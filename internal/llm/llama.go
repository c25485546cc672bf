//go:build llama

package llm

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"llmserve/internal/validate"
)

// LlamaConfig holds process-wide settings for the in-process runtime.
type LlamaConfig struct {
	ContextSize int
	Threads     int
	// GPULayers is offloaded when Device is "auto" or a GPU name.
	GPULayers int
	Logger    zerolog.Logger
}

type llamaLoader struct {
	cfg LlamaConfig
}

// NewLlamaLoader returns the go-llama.cpp backed loader.
func NewLlamaLoader(cfg LlamaConfig) Loader {
	return &llamaLoader{cfg: cfg}
}

// llamaModel owns the loaded model.
type llamaModel struct {
	model   *llama.LLama
	threads int
}

func (l *llamaLoader) Load(ctx context.Context, dir string, opts LoadOptions) (Model, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := SelectWeights(dir, opts.Optimize)
	if err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(l.cfg.ContextSize),
	}
	if !strings.EqualFold(opts.Device, "cpu") && l.cfg.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(l.cfg.GPULayers))
	}
	if opts.Optimize == validate.Optimize16Bit {
		mo = append(mo, llama.EnableF16Memory)
	}
	if opts.FlashAttn {
		l.cfg.Logger.Warn().Str("weights", file).Msg("flash attention not supported by in-process runtime; ignoring")
	}
	l.cfg.Logger.Info().Str("weights", file).Str("optimize", opts.Optimize.String()).Str("device", opts.Device).Msg("llama load")
	m, err := llama.New(file, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{model: m, threads: l.cfg.Threads}, nil
}

func (s *llamaModel) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if s.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// Stop predicting once the caller goes away.
	s.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	text, err := s.model.Predict(prompt, predictOptions(opts, s.threads)...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *llamaModel) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

// predictOptions converts validated parameters into go-llama.cpp options.
// Zero values are meaningful here (temperature 0 is greedy decoding).
func predictOptions(opts GenerateOptions, threads int) []llama.PredictOption {
	if threads < 1 {
		threads = 1
	}
	return []llama.PredictOption{
		llama.SetTokens(opts.MaxNewTokens),
		llama.SetThreads(threads),
		llama.SetTopP(float32(opts.TopP)),
		llama.SetTopK(llama.DefaultOptions.TopK),
		llama.SetTemperature(float32(opts.Temperature)),
		llama.SetPenalty(float32(opts.RepetitionPenalty)),
	}
}
