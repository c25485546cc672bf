package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmserve/internal/common/fsutil"
	"llmserve/internal/common/logx"
	"llmserve/internal/config"
	"llmserve/internal/engine"
	"llmserve/internal/httpapi"
	"llmserve/internal/hub"
	"llmserve/internal/llm"
)

func newServeCmd(fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /initialize and POST /generate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, fv, httpapi.ModeStateful)
		},
	}
}

func newOneShotCmd(fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "oneshot",
		Short: "Serve POST /inf, loading the requested model on every call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, fv, httpapi.ModeOneShot)
		},
	}
}

// app bundles what the server commands build from a Config.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	hub    *hub.Client
	engine *engine.Engine
}

func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	logger := logx.New(logOut, cfg.LogLevel, cfg.LogFormat)
	modelsDir, err := fsutil.ResolveDir(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	if err := os.MkdirAll(modelsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	cfg.ModelsDir = modelsDir

	hc := newHubClient(cfg, logger)
	eng, err := engine.New(engine.Config{
		ModelsDir:  modelsDir,
		Device:     cfg.Device,
		MaxWait:    time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Downloader: hc,
		Loader:     newLoader(cfg, logger),
		Logger:     logger.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: logger, hub: hc, engine: eng}, nil
}

func newHubClient(cfg config.Config, logger zerolog.Logger) *hub.Client {
	return hub.New(hub.Config{
		BaseURL:     cfg.HubURL,
		Revision:    cfg.HubRevision,
		Concurrency: cfg.HubConcurrency,
		Include:     cfg.HubInclude,
		Logger:      logger.With().Str("component", "hub").Logger(),
	})
}

func newLoader(cfg config.Config, logger zerolog.Logger) llm.Loader {
	if cfg.Backend == config.BackendServer {
		return llm.NewServerLoader(llm.ServerConfig{
			BaseURL:        cfg.ServerURL,
			APIKey:         cfg.ServerAPIKey,
			RequestTimeout: time.Duration(cfg.ServerTimeoutSeconds) * time.Second,
			Logger:         logger.With().Str("component", "llm-server").Logger(),
		})
	}
	return llm.NewLlamaLoader(llm.LlamaConfig{
		ContextSize: cfg.LlamaContextSize,
		Threads:     cfg.LlamaThreads,
		GPULayers:   cfg.LlamaGPULayers,
		Logger:      logger.With().Str("component", "llama").Logger(),
	})
}

// configureHTTP pushes config into the httpapi package-level settings.
func (a *app) configureHTTP() {
	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetRequestLogLevel(a.cfg.RequestLogLevel)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeout(time.Duration(a.cfg.GenerateTimeoutSeconds) * time.Second)
	httpapi.SetCORSOptions(a.cfg.CORSEnabled, a.cfg.CORSAllowedOrigins, a.cfg.CORSAllowedMethods, a.cfg.CORSAllowedHeaders)
}

func runServer(cmd *cobra.Command, fv *flagValues, mode httpapi.Mode) error {
	cfg, err := resolveConfig(cmd.Flags(), fv, os.Getenv)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	a.configureHTTP()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx, mode)
}

// serve runs the HTTP server until ctx is done, then shuts down gracefully.
func (a *app) serve(ctx context.Context, mode httpapi.Mode) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(a.engine, mode),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Str("mode", mode.String()).Str("backend", a.cfg.Backend).Str("models_dir", a.cfg.ModelsDir).Msg("llmserve listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	// Cancel in-flight generations so Shutdown does not wait on them.
	cancelBase()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := a.engine.Close(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("release model")
	}
	return nil
}
