package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backends understood by the loader factory.
const (
	BackendLlama  = "llama"
	BackendServer = "server"
)

// Config holds runtime parameters for the service.
// Zero values in a file mean "unspecified" and leave the default in place.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Backend   string `json:"backend" yaml:"backend" toml:"backend"`
	Device    string `json:"device" yaml:"device" toml:"device"`

	LlamaContextSize int `json:"llama_context_size" yaml:"llama_context_size" toml:"llama_context_size"`
	LlamaThreads     int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers   int `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`

	ServerURL            string `json:"server_url" yaml:"server_url" toml:"server_url"`
	ServerAPIKey         string `json:"server_api_key" yaml:"server_api_key" toml:"server_api_key"`
	ServerTimeoutSeconds int    `json:"server_timeout_seconds" yaml:"server_timeout_seconds" toml:"server_timeout_seconds"`

	HubURL         string   `json:"hub_url" yaml:"hub_url" toml:"hub_url"`
	HubRevision    string   `json:"hub_revision" yaml:"hub_revision" toml:"hub_revision"`
	HubConcurrency int      `json:"hub_concurrency" yaml:"hub_concurrency" toml:"hub_concurrency"`
	HubInclude     []string `json:"hub_include" yaml:"hub_include" toml:"hub_include"`

	MaxBodyBytes           int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeoutSeconds int   `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	MaxWaitSeconds         int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	ShutdownSeconds        int   `json:"shutdown_seconds" yaml:"shutdown_seconds" toml:"shutdown_seconds"`

	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format" toml:"log_format"`
	RequestLogLevel string `json:"request_log_level" yaml:"request_log_level" toml:"request_log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                 ":5000",
		ModelsDir:            "~/models/hf",
		Backend:              BackendLlama,
		Device:               "auto",
		LlamaContextSize:     2048,
		LlamaThreads:         4,
		LlamaGPULayers:       0,
		ServerTimeoutSeconds: 600,
		HubURL:               "https://huggingface.co",
		HubRevision:          "main",
		HubConcurrency:       4,
		MaxBodyBytes:         1 << 20,
		MaxWaitSeconds:       30,
		ShutdownSeconds:      5,
		LogLevel:             "info",
		LogFormat:            "console",
		RequestLogLevel:      "info",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays the non-zero fields of over onto base. Booleans can only
// be switched on.
func Merge(base, over Config) Config {
	setStr(&base.Addr, over.Addr)
	setStr(&base.ModelsDir, over.ModelsDir)
	setStr(&base.Backend, over.Backend)
	setStr(&base.Device, over.Device)
	setInt(&base.LlamaContextSize, over.LlamaContextSize)
	setInt(&base.LlamaThreads, over.LlamaThreads)
	setInt(&base.LlamaGPULayers, over.LlamaGPULayers)
	setStr(&base.ServerURL, over.ServerURL)
	setStr(&base.ServerAPIKey, over.ServerAPIKey)
	setInt(&base.ServerTimeoutSeconds, over.ServerTimeoutSeconds)
	setStr(&base.HubURL, over.HubURL)
	setStr(&base.HubRevision, over.HubRevision)
	setInt(&base.HubConcurrency, over.HubConcurrency)
	setList(&base.HubInclude, over.HubInclude)
	if over.MaxBodyBytes != 0 {
		base.MaxBodyBytes = over.MaxBodyBytes
	}
	setInt(&base.GenerateTimeoutSeconds, over.GenerateTimeoutSeconds)
	setInt(&base.MaxWaitSeconds, over.MaxWaitSeconds)
	setInt(&base.ShutdownSeconds, over.ShutdownSeconds)
	setStr(&base.LogLevel, over.LogLevel)
	setStr(&base.LogFormat, over.LogFormat)
	setStr(&base.RequestLogLevel, over.RequestLogLevel)
	base.CORSEnabled = base.CORSEnabled || over.CORSEnabled
	setList(&base.CORSAllowedOrigins, over.CORSAllowedOrigins)
	setList(&base.CORSAllowedMethods, over.CORSAllowedMethods)
	setList(&base.CORSAllowedHeaders, over.CORSAllowedHeaders)
	return base
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = append([]string(nil), v...)
	}
}

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LLMSERVE_"

// ApplyEnv overrides cfg from LLMSERVE_* variables, e.g. LLMSERVE_ADDR or
// LLMSERVE_HUB_INCLUDE (comma separated). getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	get := func(name string) string { return strings.TrimSpace(getenv(EnvPrefix + name)) }
	var errs []error
	intVar := func(name string, dst *int) {
		if v := get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	strVar := func(name string, dst *string) { setStr(dst, get(name)) }
	listVar := func(name string, dst *[]string) { setList(dst, SplitCSV(get(name))) }

	strVar("ADDR", &cfg.Addr)
	strVar("MODELS_DIR", &cfg.ModelsDir)
	strVar("BACKEND", &cfg.Backend)
	strVar("DEVICE", &cfg.Device)
	intVar("LLAMA_CONTEXT_SIZE", &cfg.LlamaContextSize)
	intVar("LLAMA_THREADS", &cfg.LlamaThreads)
	intVar("LLAMA_GPU_LAYERS", &cfg.LlamaGPULayers)
	strVar("SERVER_URL", &cfg.ServerURL)
	strVar("SERVER_API_KEY", &cfg.ServerAPIKey)
	intVar("SERVER_TIMEOUT_SECONDS", &cfg.ServerTimeoutSeconds)
	strVar("HUB_URL", &cfg.HubURL)
	strVar("HUB_REVISION", &cfg.HubRevision)
	intVar("HUB_CONCURRENCY", &cfg.HubConcurrency)
	listVar("HUB_INCLUDE", &cfg.HubInclude)
	if v := get("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	intVar("GENERATE_TIMEOUT_SECONDS", &cfg.GenerateTimeoutSeconds)
	intVar("MAX_WAIT_SECONDS", &cfg.MaxWaitSeconds)
	intVar("SHUTDOWN_SECONDS", &cfg.ShutdownSeconds)
	strVar("LOG_LEVEL", &cfg.LogLevel)
	strVar("LOG_FORMAT", &cfg.LogFormat)
	strVar("REQUEST_LOG_LEVEL", &cfg.RequestLogLevel)
	if v := get("CORS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCORS_ENABLED: %w", EnvPrefix, err))
		} else {
			cfg.CORSEnabled = b
		}
	}
	listVar("CORS_ALLOWED_ORIGINS", &cfg.CORSAllowedOrigins)
	listVar("CORS_ALLOWED_METHODS", &cfg.CORSAllowedMethods)
	listVar("CORS_ALLOWED_HEADERS", &cfg.CORSAllowedHeaders)
	return errors.Join(errs...)
}

// LoadDotEnv seeds the process environment from a dotenv file. Variables
// already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Validate reports configuration that cannot run.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendLlama:
	case BackendServer:
		if c.ServerURL == "" {
			errs = append(errs, errors.New("server_url is required for the server backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendLlama, BackendServer))
	}
	if c.ModelsDir == "" {
		errs = append(errs, errors.New("models_dir is required"))
	}
	if c.HubConcurrency < 1 {
		errs = append(errs, errors.New("hub_concurrency must be at least 1"))
	}
	if c.MaxWaitSeconds < 0 || c.GenerateTimeoutSeconds < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// SplitCSV splits a comma separated list, trimming blanks and dropping
// empty items.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
