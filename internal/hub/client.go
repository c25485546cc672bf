// Package hub downloads model snapshots from the Hugging Face Hub.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llmserve/internal/common/fsutil"
)

const (
	DefaultBaseURL     = "https://huggingface.co"
	DefaultRevision    = "main"
	defaultConcurrency = 4
)

var (
	// ErrUnauthorized is returned for gated or private repositories when the
	// token is missing or rejected.
	ErrUnauthorized = errors.New("hub: unauthorized")
	// ErrNotFound is returned when the repository or revision does not exist.
	ErrNotFound = errors.New("hub: repository not found")
)

// Config configures a Client. Zero values select defaults.
type Config struct {
	BaseURL     string
	Revision    string
	Concurrency int
	// Include restricts downloads to files whose path or base name matches
	// one of these path.Match patterns. Empty means every file.
	Include    []string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the Hub REST API.
type Client struct {
	baseURL     string
	revision    string
	concurrency int
	include     []string
	http        *http.Client
	log         zerolog.Logger
}

// New constructs a Client.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		revision:    cfg.Revision,
		concurrency: cfg.Concurrency,
		include:     append([]string(nil), cfg.Include...),
		http:        cfg.HTTPClient,
		log:         cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.revision == "" {
		c.revision = DefaultRevision
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.http == nil {
		// No client timeout: model files are large, deadlines come from ctx.
		c.http = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConnsPerHost:   c.concurrency,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		}}
	}
	return c
}

// FileInfo is an entry of the repository tree listing.
type FileInfo struct {
	Type string   `json:"type"`
	Oid  string   `json:"oid"`
	Size int64    `json:"size"`
	Path string   `json:"path"`
	LFS  *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo describes a file stored in Git LFS. Oid is the sha256 of the content.
type LFSInfo struct {
	Oid         string `json:"oid"`
	Size        int64  `json:"size"`
	PointerSize int    `json:"pointerSize"`
}

// ContentSize is the size of the downloaded file.
func (f FileInfo) ContentSize() int64 {
	if f.LFS != nil && f.LFS.Size > 0 {
		return f.LFS.Size
	}
	return f.Size
}

// ListFiles returns every file of the repository at the configured revision.
func (c *Client) ListFiles(ctx context.Context, repoID, token string) ([]FileInfo, error) {
	next := fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true", c.baseURL, repoID, url.PathEscape(c.revision))
	var files []FileInfo
	for next != "" {
		req, err := c.newRequest(ctx, next, token)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", repoID, err)
		}
		if err := checkStatus(resp, repoID); err != nil {
			resp.Body.Close()
			return nil, err
		}
		var page []FileInfo
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("list %s: decode: %w", repoID, err)
		}
		for _, f := range page {
			if f.Type == "file" {
				files = append(files, f)
			}
		}
		next = nextLink(resp.Header.Get("Link"))
	}
	return files, nil
}

// Progress reports bytes written for one file.
type Progress func(file string, written, total int64)

// Request describes a snapshot download.
type Request struct {
	RepoID   string
	LocalDir string
	Token    string
	Progress Progress
	// Plan, when set, receives the selected files before any transfer.
	Plan func(files []FileInfo)
}

// Download fetches every selected file of the repository into LocalDir and
// returns the number of files transferred. Files already present with the
// expected size are skipped.
func (c *Client) Download(ctx context.Context, r Request) (int, error) {
	if strings.TrimSpace(r.RepoID) == "" {
		return 0, errors.New("hub: empty repository id")
	}
	if err := os.MkdirAll(r.LocalDir, 0o750); err != nil {
		return 0, fmt.Errorf("create %s: %w", r.LocalDir, err)
	}
	files, err := c.ListFiles(ctx, r.RepoID, r.Token)
	if err != nil {
		return 0, err
	}
	files = c.filter(files)
	if len(files) == 0 {
		return 0, fmt.Errorf("hub: %s has no files to download", r.RepoID)
	}
	if r.Plan != nil {
		r.Plan(files)
	}

	start := time.Now()
	c.log.Info().Str("repo", r.RepoID).Int("files", len(files)).Str("dir", r.LocalDir).Msg("snapshot download start")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	fetched := make([]bool, len(files))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			dest, err := fsutil.JoinWithin(r.LocalDir, f.Path)
			if err != nil {
				return err
			}
			if fsutil.FileSize(dest) == f.ContentSize() {
				c.log.Debug().Str("file", f.Path).Msg("already present, skipping")
				return nil
			}
			if err := c.fetchFile(gctx, r, f, dest); err != nil {
				return err
			}
			fetched[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	n := 0
	for _, ok := range fetched {
		if ok {
			n++
		}
	}
	c.log.Info().Str("repo", r.RepoID).Int("fetched", n).Dur("dur", time.Since(start)).Msg("snapshot download done")
	return n, nil
}

// Snapshot downloads repoID into localDir. It is the engine-facing entry point.
func (c *Client) Snapshot(ctx context.Context, repoID, localDir, token string) error {
	_, err := c.Download(ctx, Request{RepoID: repoID, LocalDir: localDir, Token: token})
	return err
}

func (c *Client) fetchFile(ctx context.Context, r Request, f FileInfo, dest string) error {
	req, err := c.newRequest(ctx, c.resolveURL(r.RepoID, f.Path), r.Token)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", f.Path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, r.RepoID); err != nil {
		return fmt.Errorf("download %s: %w", f.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create parent of %s: %w", dest, err)
	}

	tmp := dest + ".partial"
	_ = os.Remove(tmp)
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	total := resp.ContentLength
	if total <= 0 {
		total = f.ContentSize()
	}
	pw := newProgressWriter(ctx, f.Path, total, r.Progress)
	_, err = io.Copy(io.MultiWriter(out, pw), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if f.LFS != nil && f.LFS.Oid != "" {
		if sum := pw.sum(); sum != f.LFS.Oid {
			_ = os.Remove(tmp)
			return fmt.Errorf("sha256 mismatch for %s: got %s want %s", f.Path, sum, f.LFS.Oid)
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	c.log.Debug().Str("file", f.Path).Int64("bytes", pw.written).Msg("downloaded")
	return nil
}

func (c *Client) resolveURL(repoID, file string) string {
	parts := strings.Split(file, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repoID, url.PathEscape(c.revision), strings.Join(parts, "/"))
}

func (c *Client) newRequest(ctx context.Context, u, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) filter(files []FileInfo) []FileInfo {
	if len(c.include) == 0 {
		return files
	}
	var out []FileInfo
	for _, f := range files {
		for _, pat := range c.include {
			if ok, _ := path.Match(pat, f.Path); ok {
				out = append(out, f)
				break
			}
			if ok, _ := path.Match(pat, path.Base(f.Path)); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func checkStatus(resp *http.Response, repoID string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, repoID)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, repoID)
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("hub: %s: unexpected status %d: %s", repoID, resp.StatusCode, strings.TrimSpace(string(b)))
}

var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// nextLink extracts the rel="next" target of a pagination Link header.
func nextLink(h string) string {
	if m := linkNextRe.FindStringSubmatch(h); m != nil {
		return m[1]
	}
	return ""
}
