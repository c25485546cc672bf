package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\nbackend: server\nserver_url: http://127.0.0.1:8081\nhub_include:\n  - \"*.gguf\"\n  - config.json\nmax_wait_seconds: 7\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.Backend != "server" || cfg.ServerURL != "http://127.0.0.1:8081" || cfg.MaxWaitSeconds != 7 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.HubInclude) != 2 || cfg.HubInclude[0] != "*.gguf" {
		t.Fatalf("hub_include=%v", cfg.HubInclude)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","llama_gpu_layers":99,"cors_enabled":true,"cors_allowed_origins":["*"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.LlamaGPULayers != 99 || !cfg.CORSEnabled || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nhub_concurrency=2\nlog_format=\"json\"\nmax_body_bytes=2048\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.HubConcurrency != 2 || cfg.LogFormat != "json" || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	for name, body := range map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
	} {
		if _, err := Load(writeTempFile(t, d, name, body)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestMerge_OverridesOnlySetFields(t *testing.T) {
	base := Default()
	got := Merge(base, Config{Addr: ":1", HubInclude: []string{"*.gguf"}, CORSEnabled: true})
	if got.Addr != ":1" || got.ModelsDir != base.ModelsDir || got.HubConcurrency != base.HubConcurrency {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if !got.CORSEnabled || len(got.HubInclude) != 1 {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LLMSERVE_ADDR":             ":6000",
		"LLMSERVE_BACKEND":          "server",
		"LLMSERVE_SERVER_URL":       "http://runtime:8080",
		"LLMSERVE_HUB_INCLUDE":      "*.gguf, tokenizer.json ,",
		"LLMSERVE_MAX_WAIT_SECONDS": "3",
		"LLMSERVE_MAX_BODY_BYTES":   "4096",
		"LLMSERVE_CORS_ENABLED":     "true",
	}
	cfg := Default()
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Addr != ":6000" || cfg.Backend != "server" || cfg.ServerURL != "http://runtime:8080" || cfg.MaxWaitSeconds != 3 || cfg.MaxBodyBytes != 4096 || !cfg.CORSEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.HubInclude) != 2 || cfg.HubInclude[1] != "tokenizer.json" {
		t.Fatalf("hub include=%v", cfg.HubInclude)
	}
	if cfg.ModelsDir != Default().ModelsDir {
		t.Fatalf("unset variables must keep defaults")
	}
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	env := map[string]string{"LLMSERVE_LLAMA_THREADS": "many", "LLMSERVE_CORS_ENABLED": "perhaps"}
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) string { return env[k] })
	if err == nil || !strings.Contains(err.Error(), "LLMSERVE_LLAMA_THREADS") || !strings.Contains(err.Error(), "LLMSERVE_CORS_ENABLED") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	d := t.TempDir()
	if err := LoadDotEnv(filepath.Join(d, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	p := writeTempFile(t, d, ".env", "LLMSERVE_TEST_DOTENV=from-file\n")
	t.Setenv("LLMSERVE_TEST_DOTENV", "")
	os.Unsetenv("LLMSERVE_TEST_DOTENV")
	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("LLMSERVE_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	c := Default()
	c.Backend = "server"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "server_url") {
		t.Fatalf("err=%v", err)
	}
	c = Default()
	c.Backend = "vllm"
	c.HubConcurrency = 0
	c.LogFormat = "xml"
	err := c.Validate()
	for _, want := range []string{"unknown backend", "hub_concurrency", "log_format"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := SplitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}
