// Package fetch retrieves the FCS keys of a build with the external tool
// and commits them to the store.
package fetch

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/store"
)

// KeyTool downloads the keys of one build into a directory.
type KeyTool interface {
	FetchKeys(ctx context.Context, osName, build, output string) error
}

// Fetcher fetches builds not yet in Store.
type Fetcher struct {
	Store      store.Store
	Tool       KeyTool
	KeyExt     string
	Digest     string
	ScratchDir string
	// DryRun reports pending builds without running the tool.
	DryRun bool
}

// Fetch processes one build. The error is only set for store or
// filesystem failures, tool failures are reported in the Result.
func (f *Fetcher) Fetch(ctx context.Context, b appledb.Build) (Result, error) {
	start := time.Now()
	res := Result{Build: b}

	done, err := f.Store.Exists(ctx, b)
	if err != nil {
		return res, fmt.Errorf("failed to check store for %s: %w", b, err)
	}
	if done {
		res.Status = StatusSkipped
		return res, nil
	}
	if f.DryRun {
		res.Status = StatusPending
		return res, nil
	}

	if f.ScratchDir != "" {
		if err := os.MkdirAll(f.ScratchDir, 0o755); err != nil {
			return res, fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}
	tmp, err := os.MkdirTemp(f.ScratchDir, "fcs-keys-"+b.ID+"-")
	if err != nil {
		return res, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	log.WithFields(log.Fields{"os": b.OS, "build": b.ID}).Debug("running tool")
	if err := f.Tool.FetchKeys(ctx, b.OS, b.ID, tmp); err != nil {
		if ctx.Err() != nil {
			// cancelled runs are not a per-build failure
			return res, ctx.Err()
		}
		res.fail(err)
		res.Duration = time.Since(start)
		return res, nil
	}

	artifacts, err := Collect(tmp, f.KeyExt, f.Digest)
	if err != nil {
		return res, fmt.Errorf("failed to collect keys of %s: %w", b, err)
	}
	res.Found = len(artifacts)

	n, err := f.Store.MarkDone(ctx, b, artifacts)
	if err != nil {
		return res, fmt.Errorf("failed to store keys of %s: %w", b, err)
	}
	res.Stored = n
	res.Status = StatusFetched
	res.Duration = time.Since(start)
	for _, a := range artifacts {
		res.Bytes += a.Size
	}
	return res, nil
}

// Collect walks dir in lexical order and returns every regular file
// ending in ext with its content digest.
func Collect(dir, ext, algo string) ([]store.Artifact, error) {
	if ext == "" {
		ext = ".pem"
	}
	ext = strings.ToLower(ext)

	var out []store.Artifact
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			return nil
		}
		sum, size, err := Digest(path, algo)
		if err != nil {
			return err
		}
		out = append(out, store.Artifact{
			Path:   path,
			Name:   d.Name(),
			Digest: sum,
			Size:   size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Digest returns the hex digest (md5 or sha256) and size of a file.
func Digest(path, algo string) (string, int64, error) {
	var h hash.Hash
	switch algo {
	case "", "md5":
		h = md5.New()
	case "sha256":
		h = sha256.New()
	default:
		return "", 0, fmt.Errorf("unsupported digest: %s", algo)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
