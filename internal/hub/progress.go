package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// progressWriter hashes and counts bytes flowing to a file and reports them.
type progressWriter struct {
	ctx      context.Context
	file     string
	total    int64
	written  int64
	hash     hash.Hash
	progress Progress
}

func newProgressWriter(ctx context.Context, file string, total int64, p Progress) *progressWriter {
	return &progressWriter{ctx: ctx, file: file, total: total, hash: sha256.New(), progress: p}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	select {
	case <-pw.ctx.Done():
		return 0, pw.ctx.Err()
	default:
	}
	n, err := pw.hash.Write(p)
	pw.written += int64(n)
	if pw.progress != nil {
		pw.progress(pw.file, pw.written, pw.total)
	}
	return n, err
}

func (pw *progressWriter) sum() string {
	return hex.EncodeToString(pw.hash.Sum(nil))
}
