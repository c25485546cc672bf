package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func TestScan_ListsSnapshots(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tiny", "model.Q4_K_M.gguf"), "1234")
	write(t, filepath.Join(dir, "tiny", "Model.F16.GGUF"), "12")
	write(t, filepath.Join(dir, "tiny", "config.json"), "{}")
	write(t, filepath.Join(dir, "tiny", ".cache", "huggingface", "x.lock"), "")
	write(t, filepath.Join(dir, "alpha", "sub", "w.gguf.partial"), "1")
	write(t, filepath.Join(dir, "stray.gguf"), "")
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	snaps, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Name != "alpha" || snaps[1].Name != "tiny" {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
	if snaps[0].Files != 0 || snaps[0].Partial != 1 {
		t.Fatalf("alpha: %+v", snaps[0])
	}
	tiny := snaps[1]
	if tiny.Files != 3 || tiny.SizeBytes != 8 {
		t.Fatalf("tiny: %+v", tiny)
	}
	if len(tiny.Weights) != 2 || tiny.Weights[0] != "Model.F16.GGUF" || tiny.Weights[1] != "model.Q4_K_M.gguf" {
		t.Fatalf("weights: %v", tiny.Weights)
	}
}

func TestScan_MissingDir(t *testing.T) {
	snaps, err := Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(snaps) != 0 {
		t.Fatalf("snaps=%v err=%v", snaps, err)
	}
}

func TestScan_ExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	write(t, filepath.Join(home, "models", "m", "x.gguf"), "x")
	snaps, err := Scan("~/models")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Path != filepath.Join(home, "models", "m") {
		t.Fatalf("unexpected: %+v", snaps)
	}
}
