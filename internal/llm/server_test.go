package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"llmserve/internal/validate"
)

func newFakeLlamaServer(t *testing.T, got *completionRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "/models/tiny/tiny.Q4_K_M.gguf", "object": "model"}, {"id": "other", "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": "a calm sea", "finish_reason": "stop"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestServerLoader_LoadAndGenerate(t *testing.T) {
	var got completionRequest
	srv := newFakeLlamaServer(t, &got)
	d := t.TempDir()
	touch(t, d, "tiny.Q4_K_M.gguf", 1)

	l := NewServerLoader(ServerConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	m, err := l.Load(context.Background(), d, LoadOptions{Optimize: validate.Optimize4Bit, FlashAttn: true})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer m.Close()
	text, err := m.Generate(context.Background(), "ocean", GenerateOptions{MaxNewTokens: 16, Temperature: 0, TopP: 0.9, RepetitionPenalty: 1.1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "a calm sea" {
		t.Fatalf("text=%q", text)
	}
	if got.Model != "/models/tiny/tiny.Q4_K_M.gguf" || got.MaxTokens != 16 || got.RepeatPenalty != 1.1 || got.Temperature != 0 || got.Stream {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestServerLoader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	l := NewServerLoader(ServerConfig{BaseURL: url})
	_, err := l.Load(context.Background(), t.TempDir(), LoadOptions{})
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestServerModel_HTTPError(t *testing.T) {
	var got completionRequest
	srv := newFakeLlamaServer(t, &got)
	l := NewServerLoader(ServerConfig{BaseURL: srv.URL})
	m, err := l.Load(context.Background(), t.TempDir(), LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// no API key -> fake server answers 401
	if _, err := m.Generate(context.Background(), "x", GenerateOptions{MaxNewTokens: 1}); err == nil {
		t.Fatalf("expected http error")
	}
}

func TestGenerateOptionsFrom(t *testing.T) {
	o := GenerateOptionsFrom(validate.GenerateParams{MaxNewTokens: 3, Temperature: 0.2, TopP: 0.5, RepetitionPenalty: 1.3})
	if o.MaxNewTokens != 3 || o.Temperature != 0.2 || o.TopP != 0.5 || o.RepetitionPenalty != 1.3 {
		t.Fatalf("unexpected options: %+v", o)
	}
}
