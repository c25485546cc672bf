// Package registry inventories the model snapshots already downloaded into
// the models directory.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llmserve/internal/common/fsutil"
	"llmserve/pkg/types"
)

// Scan lists every snapshot directory under modelsDir, sorted by name. A
// missing modelsDir yields an empty list.
func Scan(modelsDir string) ([]types.Snapshot, error) {
	abs, err := fsutil.ResolveDir(modelsDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.Snapshot
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		snap, err := scanSnapshot(filepath.Join(abs, e.Name()))
		if err != nil {
			return nil, err
		}
		if snap.Files == 0 && snap.Partial == 0 {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func scanSnapshot(dir string) (types.Snapshot, error) {
	snap := types.Snapshot{Name: filepath.Base(dir), Path: dir}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hub cache metadata some tools leave behind.
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".partial") {
			snap.Partial++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		snap.Files++
		snap.SizeBytes += info.Size()
		if strings.EqualFold(filepath.Ext(d.Name()), ".gguf") {
			rel, _ := filepath.Rel(dir, p)
			snap.Weights = append(snap.Weights, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return snap, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(snap.Weights)
	return snap, nil
}
