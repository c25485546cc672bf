package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llmserve/internal/llm"
	"llmserve/internal/validate"
	"llmserve/pkg/types"
)

// Engine is the application context shared by HTTP handlers. It holds at
// most one loaded model.
type Engine struct {
	mu      sync.RWMutex
	state   State
	cur     *session
	lastErr string

	modelsDir  string
	device     string
	maxWait    time.Duration
	downloader Downloader
	loader     llm.Loader
	publisher  EventPublisher
	log        zerolog.Logger

	// slot has capacity 1; see acquire.
	slot chan struct{}

	startTime   time.Time
	loads       atomic.Uint64
	generations atomic.Uint64
}

// New constructs an Engine from Config.
func New(cfg Config) (*Engine, error) {
	if cfg.Downloader == nil {
		return nil, errors.New("engine: downloader is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("engine: loader is required")
	}
	e := &Engine{
		state:      StateIdle,
		modelsDir:  cfg.ModelsDir,
		device:     cfg.Device,
		maxWait:    cfg.MaxWait,
		downloader: cfg.Downloader,
		loader:     cfg.Loader,
		publisher:  cfg.Publisher,
		log:        cfg.Logger,
		slot:       make(chan struct{}, 1),
		startTime:  time.Now(),
	}
	if e.device == "" {
		e.device = defaultDevice
	}
	if e.maxWait <= 0 {
		e.maxWait = defaultMaxWait
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	return e, nil
}

// Initialize downloads and loads the requested model and makes it current.
// On failure the previously loaded model, if any, stays in place.
func (e *Engine) Initialize(ctx context.Context, p validate.InitParams) error {
	release, err := e.acquire(ctx, "initialize")
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	e.state = StateLoading
	e.mu.Unlock()

	model, dir, err := e.load(ctx, p)
	if err != nil {
		e.mu.Lock()
		if e.cur != nil {
			e.state = StateReady
		} else {
			e.state = StateError
		}
		e.mu.Unlock()
		return err
	}

	sess := &session{
		info: types.LoadedModel{
			ID:        p.ModelID,
			Path:      dir,
			Optimize:  p.Optimize.String(),
			FlashAttn: p.FlashAttn,
			SessionID: uuid.NewString(),
			LoadedAt:  time.Now().Unix(),
		},
		model: model,
	}
	e.mu.Lock()
	old := e.cur
	e.cur = sess
	e.state = StateReady
	e.lastErr = ""
	e.mu.Unlock()
	modelLoaded.Set(1)

	if old != nil {
		if err := old.model.Close(); err != nil {
			e.log.Warn().Err(err).Str("model", old.info.ID).Msg("close previous model")
		}
		e.publisher.Publish(Event{Name: "model_replaced", ModelID: old.info.ID, Fields: map[string]any{"session_id": old.info.SessionID}})
	}
	e.log.Info().Str("model", p.ModelID).Str("session_id", sess.info.SessionID).Msg("model ready")
	e.publisher.Publish(Event{Name: "model_ready", ModelID: p.ModelID, Fields: map[string]any{"session_id": sess.info.SessionID}})
	return nil
}

// Generate runs text generation on the current model.
func (e *Engine) Generate(ctx context.Context, p validate.GenerateParams) (string, error) {
	if !e.Ready() {
		return "", ErrNotInitialized
	}
	release, err := e.acquire(ctx, "generate")
	if err != nil {
		return "", err
	}
	defer release()

	e.mu.RLock()
	sess := e.cur
	e.mu.RUnlock()
	if sess == nil {
		return "", ErrNotInitialized
	}
	return e.generate(ctx, sess.info.ID, sess.model, p)
}

// Infer performs download, load and generation in one call and discards the
// model afterwards. The current model, if any, is left untouched.
func (e *Engine) Infer(ctx context.Context, p validate.InferenceParams) (string, error) {
	release, err := e.acquire(ctx, "infer")
	if err != nil {
		return "", err
	}
	defer release()

	model, _, err := e.load(ctx, p.Init)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := model.Close(); err != nil {
			e.log.Warn().Err(err).Str("model", p.Init.ModelID).Msg("close one-shot model")
		}
	}()
	return e.generate(ctx, p.Init.ModelID, model, p.Generate)
}

// Close releases the current model. It waits for the execution slot so an
// in-flight generation finishes first.
func (e *Engine) Close(ctx context.Context) error {
	release, err := e.acquire(ctx, "close")
	if err != nil {
		return err
	}
	defer release()
	e.mu.Lock()
	old := e.cur
	e.cur = nil
	e.state = StateIdle
	e.mu.Unlock()
	modelLoaded.Set(0)
	if old == nil {
		return nil
	}
	return old.model.Close()
}

// load downloads the snapshot into <modelsDir>/<local dir> and loads it.
// Callers must hold the slot.
func (e *Engine) load(ctx context.Context, p validate.InitParams) (llm.Model, string, error) {
	start := time.Now()
	dir := filepath.Join(e.modelsDir, p.LocalDir())
	e.log.Info().Str("model", p.ModelID).Str("dir", dir).Str("optimize", p.Optimize.String()).Bool("flash_attn", p.FlashAttn).Msg("load start")
	e.publisher.Publish(Event{Name: "load_start", ModelID: p.ModelID, Fields: map[string]any{"dir": dir}})

	model, err := e.downloadAndLoad(ctx, p, dir)
	loadsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		e.mu.Lock()
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.log.Error().Err(err).Str("model", p.ModelID).Dur("dur", time.Since(start)).Msg("load failed")
		e.publisher.Publish(Event{Name: "load_error", ModelID: p.ModelID, Fields: map[string]any{"error": err.Error()}})
		return nil, dir, err
	}
	loadDuration.Observe(time.Since(start).Seconds())
	e.loads.Add(1)
	e.log.Info().Str("model", p.ModelID).Dur("dur", time.Since(start)).Msg("load done")
	e.publisher.Publish(Event{Name: "load_done", ModelID: p.ModelID, Fields: map[string]any{"dur_ms": int(time.Since(start) / time.Millisecond)}})
	return model, dir, nil
}

func (e *Engine) downloadAndLoad(ctx context.Context, p validate.InitParams, dir string) (llm.Model, error) {
	if err := e.downloader.Snapshot(ctx, p.ModelID, dir, p.HFToken); err != nil {
		return nil, fmt.Errorf("download %s: %w", p.ModelID, err)
	}
	model, err := e.loader.Load(ctx, dir, llm.LoadOptions{
		Optimize:  p.Optimize,
		Device:    e.device,
		FlashAttn: p.FlashAttn,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.ModelID, err)
	}
	return model, nil
}

func (e *Engine) generate(ctx context.Context, modelID string, m llm.Model, p validate.GenerateParams) (string, error) {
	start := time.Now()
	text, err := m.Generate(ctx, p.Prompt, llm.GenerateOptionsFrom(p))
	generationsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		e.mu.Lock()
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.log.Error().Err(err).Str("model", modelID).Dur("dur", time.Since(start)).Msg("generate failed")
		return "", err
	}
	generateDuration.Observe(time.Since(start).Seconds())
	e.generations.Add(1)
	e.log.Debug().Str("model", modelID).Int("max_new_tokens", p.MaxNewTokens).Int("chars", len(text)).Dur("dur", time.Since(start)).Msg("generate done")
	return text, nil
}
