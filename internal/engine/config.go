package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llmserve/internal/llm"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxWait = 30 * time.Second
	defaultDevice  = "auto"
)

// Downloader fetches a model snapshot into a local directory.
type Downloader interface {
	Snapshot(ctx context.Context, repoID, localDir, token string) error
}

// Config encapsulates all tunables for Engine construction.
type Config struct {
	// ModelsDir is the parent of every snapshot directory.
	ModelsDir string
	// Device is passed to the loader; "auto" by default.
	Device string
	// MaxWait bounds how long a request waits for the execution slot.
	MaxWait    time.Duration
	Downloader Downloader
	Loader     llm.Loader
	Publisher  EventPublisher
	Logger     zerolog.Logger
}
