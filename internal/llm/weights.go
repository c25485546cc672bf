package llm

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"llmserve/internal/common/fsutil"
	"llmserve/internal/validate"
)

// weightPreferences lists GGUF quantization tags in order of preference for
// each requested precision.
var weightPreferences = map[validate.Optimize][]string{
	validate.Optimize4Bit:  {"q4_k_m", "q4_k_s", "q4_k", "q4_0", "q4_1", "iq4_xs", "iq4_nl", "q4"},
	validate.Optimize8Bit:  {"q8_0", "q8_k", "q8"},
	validate.Optimize16Bit: {"f16", "bf16", "fp16"},
	validate.OptimizeNone:  {"f32", "fp32", "f16", "bf16"},
}

// SelectWeights finds the GGUF file under dir that best matches optimize.
// With no preference match, a lone GGUF file is accepted; several candidates
// without a match are an error so that a wrong precision is never loaded
// silently. A full precision request falls back to the largest file.
func SelectWeights(dir string, optimize validate.Optimize) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".gguf") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no .gguf weights found in %s", dir)
	}
	sort.Strings(files)
	for _, pref := range weightPreferences[optimize] {
		for _, f := range files {
			if hasQuantTag(filepath.Base(f), pref) {
				return f, nil
			}
		}
	}
	if len(files) == 1 {
		return files[0], nil
	}
	if optimize == validate.OptimizeNone {
		return largest(files), nil
	}
	return "", fmt.Errorf("no %s weights among %d files in %s", optimize, len(files), dir)
}

// hasQuantTag matches tag as a whole dot/dash/underscore separated token run,
// so "q4" does not match "q40" but "q4_k_m" matches "model.Q4_K_M.gguf".
func hasQuantTag(name, tag string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	idx := 0
	for {
		i := strings.Index(name[idx:], tag)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(tag)
		if (start == 0 || isSep(name[start-1])) && (end == len(name) || isSep(name[end])) {
			return true
		}
		idx = start + 1
	}
}

func isSep(b byte) bool { return b == '.' || b == '-' || b == '_' }

func largest(files []string) string {
	best, bestSize := files[0], int64(-1)
	for _, f := range files {
		if sz := fsutil.FileSize(f); sz > bestSize {
			best, bestSize = f, sz
		}
	}
	return best
}
