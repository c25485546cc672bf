package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// ServerConfig configures the llama.cpp server backend.
type ServerConfig struct {
	// BaseURL of the server without the /v1 suffix, e.g. http://127.0.0.1:8081.
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// serverLoader binds downloaded snapshots to models served by an external
// llama.cpp server. The server must see the same models directory.
type serverLoader struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
	oa         *openai.Client
	log        zerolog.Logger
}

// NewServerLoader constructs a server-backed loader.
func NewServerLoader(cfg ServerConfig) Loader {
	cli := cfg.HTTPClient
	if cli == nil {
		connect := cfg.ConnectTimeout
		if connect <= 0 {
			connect = 5 * time.Second
		}
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Timeout=0: every request carries a context deadline instead.
		cli = &http.Client{Transport: tr}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = base + "/v1"
	oc.HTTPClient = cli
	return &serverLoader{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		reqTimeout: cfg.RequestTimeout,
		httpClient: cli,
		oa:         openai.NewClientWithConfig(oc),
		log:        cfg.Logger,
	}
}

func (l *serverLoader) Load(ctx context.Context, dir string, opts LoadOptions) (Model, error) {
	name := filepath.Base(dir)
	if file, err := SelectWeights(dir, opts.Optimize); err == nil {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	list, err := l.oa.ListModels(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrDependencyUnavailable("llama server unavailable: " + err.Error())
	}
	model := pickServedModel(list.Models, name)
	if opts.FlashAttn {
		l.log.Warn().Str("model", model).Msg("flash attention is fixed at llama server launch; ignoring")
	}
	l.log.Info().Str("model", model).Str("optimize", opts.Optimize.String()).Int("served", len(list.Models)).Msg("llama server bind")
	return &serverModel{loader: l, model: model}, nil
}

// pickServedModel prefers a served id containing want, then a lone served
// model, then want itself.
func pickServedModel(served []openai.Model, want string) string {
	lw := strings.ToLower(want)
	for _, m := range served {
		if strings.Contains(strings.ToLower(m.ID), lw) {
			return m.ID
		}
	}
	if len(served) == 1 {
		return served[0].ID
	}
	return want
}

type serverModel struct {
	loader *serverLoader
	model  string
}

// completionRequest is the /v1/completions payload. repeat_penalty is a
// llama.cpp extension the OpenAI client types do not carry.
type completionRequest struct {
	Model         string  `json:"model,omitempty"`
	Prompt        string  `json:"prompt"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	Stream        bool    `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (s *serverModel) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	l := s.loader
	if l.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(completionRequest{
		Model:         s.model,
		Prompt:        prompt,
		MaxTokens:     opts.MaxNewTokens,
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		RepeatPenalty: opts.RepetitionPenalty,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrDependencyUnavailable("llama server unavailable: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llama server: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llama server returned no choices")
	}
	return out.Choices[0].Text, nil
}

// Close is a no-op: the external server owns the model memory.
func (s *serverModel) Close() error { return nil }
