package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeHub struct {
	files    map[string]string // path -> content
	lfs      map[string]bool   // paths reported as LFS
	badSHA   bool
	token    string
	gets     atomic.Int32
	pageSize int
}

func sha(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func (f *fakeHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/org/repo/tree/main", func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var all []FileInfo
		all = append(all, FileInfo{Type: "directory", Path: "sub"})
		paths := make([]string, 0, len(f.files))
		for p := range f.files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			c := f.files[p]
			fi := FileInfo{Type: "file", Path: p, Size: int64(len(c))}
			if f.lfs[p] {
				oid := sha(c)
				if f.badSHA {
					oid = sha("other")
				}
				fi.LFS = &LFSInfo{Oid: oid, Size: int64(len(c))}
			}
			all = append(all, fi)
		}
		page := all
		if f.pageSize > 0 {
			cursor := r.URL.Query().Get("cursor")
			if cursor == "" {
				page = all[:f.pageSize]
				w.Header().Set("Link", `<http://`+r.Host+r.URL.Path+`?recursive=true&cursor=2>; rel="next"`)
			} else {
				page = all[f.pageSize:]
			}
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/org/repo/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.gets.Add(1)
		p := strings.TrimPrefix(r.URL.Path, "/org/repo/resolve/main/")
		c, ok := f.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(c))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeHub, include ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Include: include, HTTPClient: srv.Client()})
}

func TestDownload_FetchesAllFiles(t *testing.T) {
	f := &fakeHub{
		files: map[string]string{"config.json": `{"a":1}`, "model.Q4_K_M.gguf": "weights", "sub/tokenizer.json": "tok"},
		lfs:   map[string]bool{"model.Q4_K_M.gguf": true},
	}
	c := newTestClient(t, f)
	dir := filepath.Join(t.TempDir(), "repo")
	var mu sync.Mutex
	seen := map[string]int64{}
	planned := 0
	n, err := c.Download(context.Background(), Request{RepoID: "org/repo", LocalDir: dir, Progress: func(file string, written, total int64) {
		mu.Lock()
		seen[file] = written
		mu.Unlock()
	}, Plan: func(files []FileInfo) { planned = len(files) }})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != 3 || planned != 3 {
		t.Fatalf("fetched=%d planned=%d, want 3", n, planned)
	}
	b, err := os.ReadFile(filepath.Join(dir, "sub", "tokenizer.json"))
	if err != nil || string(b) != "tok" {
		t.Fatalf("nested file: %q err=%v", b, err)
	}
	if seen["model.Q4_K_M.gguf"] != int64(len("weights")) {
		t.Fatalf("progress not reported: %v", seen)
	}
	if _, err := os.Stat(filepath.Join(dir, "model.Q4_K_M.gguf.partial")); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind")
	}
}

func TestDownload_SkipsExisting(t *testing.T) {
	f := &fakeHub{files: map[string]string{"a.txt": "aaaa", "b.txt": "bb"}}
	c := newTestClient(t, f)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaaa"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := c.Download(context.Background(), Request{RepoID: "org/repo", LocalDir: dir})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != 1 || f.gets.Load() != 1 {
		t.Fatalf("fetched=%d gets=%d, want 1/1", n, f.gets.Load())
	}
}

func TestDownload_IncludeFilter(t *testing.T) {
	f := &fakeHub{files: map[string]string{"m.Q8_0.gguf": "8", "m.Q4_0.gguf": "4", "config.json": "{}"}}
	c := newTestClient(t, f, "*Q4_0*", "*.json")
	dir := t.TempDir()
	if _, err := c.Download(context.Background(), Request{RepoID: "org/repo", LocalDir: dir}); err != nil {
		t.Fatalf("download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "m.Q8_0.gguf")); !os.IsNotExist(err) {
		t.Fatalf("filtered file should not be downloaded")
	}
	if _, err := os.Stat(filepath.Join(dir, "m.Q4_0.gguf")); err != nil {
		t.Fatalf("expected included file: %v", err)
	}
}

func TestDownload_SHAMismatch(t *testing.T) {
	f := &fakeHub{files: map[string]string{"w.gguf": "weights"}, lfs: map[string]bool{"w.gguf": true}, badSHA: true}
	c := newTestClient(t, f)
	dir := t.TempDir()
	_, err := c.Download(context.Background(), Request{RepoID: "org/repo", LocalDir: dir})
	if err == nil || !strings.Contains(err.Error(), "sha256 mismatch") {
		t.Fatalf("expected sha mismatch, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "w.gguf")); !os.IsNotExist(err) {
		t.Fatalf("corrupt file must not be kept")
	}
}

func TestDownload_Token(t *testing.T) {
	f := &fakeHub{files: map[string]string{"a": "x"}, token: "hf_secret"}
	c := newTestClient(t, f)
	_, err := c.Download(context.Background(), Request{RepoID: "org/repo", LocalDir: t.TempDir()})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := c.Snapshot(context.Background(), "org/repo", t.TempDir(), "hf_secret"); err != nil {
		t.Fatalf("snapshot with token: %v", err)
	}
}

func TestListFiles_NotFoundAndPagination(t *testing.T) {
	f := &fakeHub{files: map[string]string{"a": "1", "b": "2", "c": "3"}, pageSize: 2}
	c := newTestClient(t, f)
	files, err := c.ListFiles(context.Background(), "org/repo", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// the directory entry is dropped
	if len(files) != 3 {
		t.Fatalf("files=%d, want 3", len(files))
	}
	if _, err := c.ListFiles(context.Background(), "org/missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDownload_Canceled(t *testing.T) {
	f := &fakeHub{files: map[string]string{"a": "1"}}
	c := newTestClient(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Download(ctx, Request{RepoID: "org/repo", LocalDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestNextLink(t *testing.T) {
	if got := nextLink(`<https://huggingface.co/api/x?cursor=abc>; rel="next"`); got != "https://huggingface.co/api/x?cursor=abc" {
		t.Fatalf("got %q", got)
	}
	if got := nextLink(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
