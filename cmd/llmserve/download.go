package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"llmserve/internal/common/fsutil"
	"llmserve/internal/common/logx"
	"llmserve/internal/hub"
	"llmserve/internal/validate"
)

func newDownloadCmd(fv *flagValues) *cobra.Command {
	var token string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "download <model_id>",
		Short: "Download a model snapshot into the models directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), fv, os.Getenv)
			if err != nil {
				return err
			}
			id, err := validate.ModelID(args[0])
			if err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv("HF_TOKEN")
			}
			modelsDir, err := fsutil.ResolveDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			logger := logx.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			hc := newHubClient(cfg, logger)
			dir := filepath.Join(modelsDir, validate.InitParams{ModelID: id}.LocalDir())

			req := hub.Request{RepoID: id, LocalDir: dir, Token: token}
			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.DefaultBytes(-1, "downloading "+id)
				tr := &barTracker{bar: bar, seen: map[string]int64{}}
				req.Plan = tr.plan
				req.Progress = tr.progress
			}
			n, err := hc.Download(cmd.Context(), req)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d file(s) fetched into %s\n", id, n, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Hugging Face access token (defaults to $HF_TOKEN)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Disable the progress bar")
	return cmd
}

// barTracker folds per-file cumulative progress into one byte bar.
type barTracker struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	seen map[string]int64
}

func (t *barTracker) plan(files []hub.FileInfo) {
	var total int64
	for _, f := range files {
		total += f.ContentSize()
	}
	t.bar.ChangeMax64(total)
}

func (t *barTracker) progress(file string, written, _ int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delta := written - t.seen[file]
	t.seen[file] = written
	if delta > 0 {
		_ = t.bar.Add64(delta)
	}
}
