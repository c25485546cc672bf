package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"llmserve/internal/engine"
	"llmserve/internal/httpapi"
	"llmserve/internal/hub"
	"llmserve/internal/llm"
)

// fakeHub serves one repository, org/<name>, from memory.
type fakeHub struct {
	mu    sync.Mutex
	repos map[string]map[string]string // repo id -> path -> content
	gets  int
}

func (f *fakeHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p := r.URL.Path
		if strings.HasPrefix(p, "/api/models/") {
			rest := strings.TrimPrefix(p, "/api/models/")
			i := strings.Index(rest, "/tree/")
			if i < 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			files, ok := f.repos[rest[:i]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var list []hub.FileInfo
			for name, c := range files {
				list = append(list, hub.FileInfo{Type: "file", Path: name, Size: int64(len(c))})
			}
			_ = json.NewEncoder(w).Encode(list)
			return
		}
		i := strings.Index(p, "/resolve/main/")
		if i < 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		files, ok := f.repos[strings.TrimPrefix(p[:i], "/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		c, ok := files[p[i+len("/resolve/main/"):]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.gets++
		_, _ = io.WriteString(w, c)
	})
}

// fakeRuntime is an OpenAI-compatible llama.cpp server that echoes prompts.
type fakeRuntime struct {
	mu      sync.Mutex
	last    map[string]any
	delay   time.Duration
	started chan struct{}
}

func (f *fakeRuntime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "tiny.Q4_K_M.gguf", "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.last = body
		delay, started := f.delay, f.started
		f.mu.Unlock()
		if started != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": "echo: " + body["prompt"].(string), "finish_reason": "stop"}},
		})
	})
	return mux
}

func (f *fakeRuntime) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type stack struct {
	srv     *httptest.Server
	engine  *engine.Engine
	hub     *fakeHub
	runtime *fakeRuntime
	models  string
}

// newStack wires the real hub client, server-backed loader, engine and HTTP
// layer against in-memory fakes.
func newStack(t *testing.T, mode httpapi.Mode, maxWait time.Duration) *stack {
	t.Helper()
	fh := &fakeHub{repos: map[string]map[string]string{
		"org/tiny": {"tiny.Q4_K_M.gguf": "q4 weights", "tiny.Q8_0.gguf": "q8 weights", "config.json": "{}"},
	}}
	hubSrv := httptest.NewServer(fh.handler())
	t.Cleanup(hubSrv.Close)
	fr := &fakeRuntime{}
	rtSrv := httptest.NewServer(fr.handler())
	t.Cleanup(rtSrv.Close)

	models := t.TempDir()
	eng, err := engine.New(engine.Config{
		ModelsDir:  models,
		MaxWait:    maxWait,
		Downloader: hub.New(hub.Config{BaseURL: hubSrv.URL}),
		Loader:     llm.NewServerLoader(llm.ServerConfig{BaseURL: rtSrv.URL}),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(eng, mode))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, engine: eng, hub: fh, runtime: fr, models: models}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decodeMap(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("json: %v body=%q", err, b)
	}
	return m
}
