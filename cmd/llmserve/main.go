package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"llmserve/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// flagValues mirrors the config fields that can be set on the command line.
type flagValues struct {
	configPath string
	envFile    string

	addr            string
	modelsDir       string
	backend         string
	device          string
	serverURL       string
	serverAPIKey    string
	hubURL          string
	hubRevision     string
	hubConcurrency  int
	hubInclude      string
	llamaCtx        int
	llamaThreads    int
	llamaGPULayers  int
	maxBodyBytes    int64
	generateTimeout int
	maxWait         int
	logLevel        string
	logFormat       string
	requestLog      string
	corsEnabled     bool
	corsOrigins     string
	corsMethods     string
	corsHeaders     string
}

func newRootCmd() *cobra.Command {
	fv := &flagValues{}
	root := &cobra.Command{
		Use:           "llmserve",
		Short:         "Serve Hugging Face language models over a small JSON API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerFlags(root.PersistentFlags(), fv)
	root.AddCommand(
		newServeCmd(fv),
		newOneShotCmd(fv),
		newDownloadCmd(fv),
		newListCmd(fv),
	)
	return root
}

func registerFlags(fs *pflag.FlagSet, fv *flagValues) {
	def := config.Default()
	fs.StringVar(&fv.configPath, "config", "", "Path to config file (.yaml/.yml/.json/.toml)")
	fs.StringVar(&fv.envFile, "env-file", ".env", "Dotenv file seeding LLMSERVE_* variables (ignored if missing)")

	fs.StringVar(&fv.addr, "addr", def.Addr, "HTTP listen address")
	fs.StringVar(&fv.modelsDir, "models-dir", def.ModelsDir, "Directory that receives model snapshots")
	fs.StringVar(&fv.backend, "backend", def.Backend, "Runtime backend: llama or server")
	fs.StringVar(&fv.device, "device", def.Device, "Device passed to the runtime (auto, cpu, cuda)")
	fs.StringVar(&fv.serverURL, "server-url", "", "Base URL of an OpenAI-compatible llama.cpp server (server backend)")
	fs.StringVar(&fv.serverAPIKey, "server-api-key", "", "API key for the runtime server")
	fs.StringVar(&fv.hubURL, "hub-url", def.HubURL, "Hugging Face Hub base URL")
	fs.StringVar(&fv.hubRevision, "hub-revision", def.HubRevision, "Repository revision to download")
	fs.IntVar(&fv.hubConcurrency, "hub-concurrency", def.HubConcurrency, "Parallel file downloads")
	fs.StringVar(&fv.hubInclude, "hub-include", "", "Comma-separated glob patterns limiting downloaded files")
	fs.IntVar(&fv.llamaCtx, "llama-ctx", def.LlamaContextSize, "Context size for the in-process runtime")
	fs.IntVar(&fv.llamaThreads, "llama-threads", def.LlamaThreads, "Threads for the in-process runtime")
	fs.IntVar(&fv.llamaGPULayers, "llama-gpu-layers", def.LlamaGPULayers, "Layers offloaded to the GPU")
	fs.Int64Var(&fv.maxBodyBytes, "max-body-bytes", def.MaxBodyBytes, "Maximum request body size in bytes")
	fs.IntVar(&fv.generateTimeout, "generate-timeout", def.GenerateTimeoutSeconds, "Per-request generation timeout in seconds (0 disables)")
	fs.IntVar(&fv.maxWait, "max-wait", def.MaxWaitSeconds, "Seconds a request waits for the runtime before 429")
	fs.StringVar(&fv.logLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&fv.logFormat, "log-format", def.LogFormat, "Log format: console or json")
	fs.StringVar(&fv.requestLog, "request-log-level", def.RequestLogLevel, "Default per-request log level: off, error, info, debug")
	fs.BoolVar(&fv.corsEnabled, "cors-enabled", false, "Enable CORS middleware")
	fs.StringVar(&fv.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	fs.StringVar(&fv.corsMethods, "cors-methods", "", "Comma-separated allowed CORS methods")
	fs.StringVar(&fv.corsHeaders, "cors-headers", "", "Comma-separated allowed CORS headers")
}

// resolveConfig layers defaults, the config file, LLMSERVE_* variables and
// explicitly set flags, in that order.
func resolveConfig(fs *pflag.FlagSet, fv *flagValues, getenv func(string) string) (config.Config, error) {
	if err := config.LoadDotEnv(fv.envFile); err != nil {
		return config.Config{}, fmt.Errorf("env file: %w", err)
	}
	cfg := config.Default()
	if fv.configPath != "" {
		fc, err := config.Load(fv.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = config.Merge(cfg, fc)
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	str := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	num := func(name string, dst *int, v int) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	list := func(name string, dst *[]string, v string) {
		if fs.Changed(name) {
			*dst = config.SplitCSV(v)
		}
	}
	str("addr", &cfg.Addr, fv.addr)
	str("models-dir", &cfg.ModelsDir, fv.modelsDir)
	str("backend", &cfg.Backend, fv.backend)
	str("device", &cfg.Device, fv.device)
	str("server-url", &cfg.ServerURL, fv.serverURL)
	str("server-api-key", &cfg.ServerAPIKey, fv.serverAPIKey)
	str("hub-url", &cfg.HubURL, fv.hubURL)
	str("hub-revision", &cfg.HubRevision, fv.hubRevision)
	num("hub-concurrency", &cfg.HubConcurrency, fv.hubConcurrency)
	list("hub-include", &cfg.HubInclude, fv.hubInclude)
	num("llama-ctx", &cfg.LlamaContextSize, fv.llamaCtx)
	num("llama-threads", &cfg.LlamaThreads, fv.llamaThreads)
	num("llama-gpu-layers", &cfg.LlamaGPULayers, fv.llamaGPULayers)
	if fs.Changed("max-body-bytes") {
		cfg.MaxBodyBytes = fv.maxBodyBytes
	}
	num("generate-timeout", &cfg.GenerateTimeoutSeconds, fv.generateTimeout)
	num("max-wait", &cfg.MaxWaitSeconds, fv.maxWait)
	str("log-level", &cfg.LogLevel, fv.logLevel)
	str("log-format", &cfg.LogFormat, fv.logFormat)
	str("request-log-level", &cfg.RequestLogLevel, fv.requestLog)
	if fs.Changed("cors-enabled") {
		cfg.CORSEnabled = fv.corsEnabled
	}
	list("cors-origins", &cfg.CORSAllowedOrigins, fv.corsOrigins)
	list("cors-methods", &cfg.CORSAllowedMethods, fv.corsMethods)
	list("cors-headers", &cfg.CORSAllowedHeaders, fv.corsHeaders)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
