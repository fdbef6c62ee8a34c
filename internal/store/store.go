// Package store persists per-build key artifacts.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/config"
)

// ErrNotFound is returned when a build has no entry.
var ErrNotFound = fmt.Errorf("not found")

// Artifact is a key file produced by the external tool.
type Artifact struct {
	Path   string `json:"-"`
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

// StoredName is the file name used for a under the given naming policy.
func (a Artifact) StoredName(naming string) string {
	if naming == "original" {
		return filepath.Base(a.Name)
	}
	return a.Digest + strings.ToLower(filepath.Ext(a.Name))
}

// Entry is one processed build.
type Entry struct {
	Build appledb.Build `json:"build"`
	Keys  int           `json:"keys"`
}

// Store records which builds have been processed and keeps their keys.
type Store interface {
	// Exists reports whether the build was already processed.
	Exists(ctx context.Context, b appledb.Build) (bool, error)
	// MarkDone commits the artifacts of b and returns how many were newly stored.
	// A build with no artifacts is still marked as processed.
	MarkDone(ctx context.Context, b appledb.Build, artifacts []Artifact) (int, error)
	// List returns every processed build sorted by (OS, ID).
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open returns the store selected by the configuration.
func Open(c *config.Config) (Store, error) {
	switch c.Store.Type {
	case "local":
		return NewLocal(c.KeysDir, c.Store.Naming, c.Store.Marker), nil
	case "sqlite":
		return NewSqlite(c.Store.Path)
	case "postgres":
		return NewPostgres(c.Store.DSN)
	case "memory":
		return NewMemory(c.Store.MemorySize, nil)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
}

// dedup drops artifacts whose digest was already seen.
func dedup(artifacts []Artifact) []Artifact {
	seen := make(map[string]bool, len(artifacts))
	out := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if seen[a.Digest] {
			continue
		}
		seen[a.Digest] = true
		out = append(out, a)
	}
	return out
}
