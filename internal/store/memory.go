package store

import (
	"context"
	"slices"

	"github.com/blacktop/fcs-keys/internal/appledb"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a bounded in-process store. Reads fall through to Base when
// set, writes never reach it.
type Memory struct {
	Base Store

	cache *lru.Cache[appledb.Build, []Artifact]
}

// NewMemory returns a memory store keeping at most size builds.
func NewMemory(size int, base Store) (*Memory, error) {
	cache, err := lru.New[appledb.Build, []Artifact](size)
	if err != nil {
		return nil, err
	}
	return &Memory{
		Base:  base,
		cache: cache,
	}, nil
}

func (m *Memory) Exists(ctx context.Context, b appledb.Build) (bool, error) {
	if m.cache.Contains(b) {
		return true, nil
	}
	if m.Base != nil {
		return m.Base.Exists(ctx, b)
	}
	return false, nil
}

func (m *Memory) MarkDone(ctx context.Context, b appledb.Build, artifacts []Artifact) (int, error) {
	prev, _ := m.cache.Get(b)
	seen := make(map[string]bool, len(prev))
	for _, a := range prev {
		seen[a.Digest] = true
	}
	merged := slices.Clone(prev)
	var n int
	for _, a := range dedup(artifacts) {
		if seen[a.Digest] {
			continue
		}
		merged = append(merged, a)
		n++
	}
	m.cache.Add(b, merged)
	return n, nil
}

func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if m.Base != nil {
		base, err := m.Base.List(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, base...)
	}
	for _, b := range m.cache.Keys() {
		arts, _ := m.cache.Peek(b)
		if i := slices.IndexFunc(entries, func(e Entry) bool { return e.Build == b }); i >= 0 {
			entries[i].Keys += len(arts)
			continue
		}
		entries = append(entries, Entry{Build: b, Keys: len(arts)})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return appledb.Compare(a.Build, b.Build) })
	return entries, nil
}

func (m *Memory) Close() error { return nil }
