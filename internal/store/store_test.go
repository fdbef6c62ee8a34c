package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func artifact(t *testing.T, name, digest, content string) Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return Artifact{Path: path, Name: name, Digest: digest, Size: int64(len(content))}
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	b := appledb.Build{OS: "iOS", ID: "22A3354"}
	empty := appledb.Build{OS: "iPadOS", ID: "23A341"}

	ok, err := s.Exists(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.MarkDone(ctx, b, []Artifact{
		artifact(t, "a.pem", "d41d8cd98f00b204e9800998ecf8427e", "key-a"),
		artifact(t, "copy-of-a.pem", "d41d8cd98f00b204e9800998ecf8427e", "key-a"),
		artifact(t, "b.pem", "9e107d9d372bb6826bd81d3542a419d6", "key-b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err = s.Exists(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = s.MarkDone(ctx, empty, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err = s.Exists(ctx, empty)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Build: b, Keys: 2},
		{Build: empty, Keys: 0},
	}, entries)
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	testStore(t, NewLocal(dir, "hash", "file"))

	assert.FileExists(t, filepath.Join(dir, "iOS", "22A3354", "d41d8cd98f00b204e9800998ecf8427e.pem"))
	assert.FileExists(t, filepath.Join(dir, "iOS", "22A3354", "9e107d9d372bb6826bd81d3542a419d6.pem"))

	fi, err := os.Stat(filepath.Join(dir, "iPadOS", "23A341"))
	require.NoError(t, err)
	assert.False(t, fi.IsDir())
	assert.Zero(t, fi.Size())

	// no staging leftovers
	files, err := os.ReadDir(filepath.Join(dir, "iOS"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "22A3354", files[0].Name())
}

func TestLocalOriginalNaming(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocal(dir, "original", "dir")
	b := appledb.Build{OS: "iOS", ID: "23A5"}

	n, err := s.MarkDone(ctx, b, []Artifact{
		artifact(t, "iPhone.pem", "1111111111", "one"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.MarkDone(ctx, b, []Artifact{
		artifact(t, "iPhone.pem", "2222222222", "two"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.FileExists(t, filepath.Join(dir, "iOS", "23A5", "iPhone.pem"))
	assert.FileExists(t, filepath.Join(dir, "iOS", "23A5", "iPhone-22222222.pem"))

	empty := appledb.Build{OS: "iOS", ID: "23A6"}
	_, err = s.MarkDone(ctx, empty, nil)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "iOS", "23A6"))
}

func TestLocalMarkerReplacedByKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocal(dir, "hash", "file")
	b := appledb.Build{OS: "iOS", ID: "22A3354"}

	n, err := s.MarkDone(ctx, b, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(dir, "iOS", "22A3354"))

	// marking again without keys keeps the marker
	n, err = s.MarkDone(ctx, b, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.MarkDone(ctx, b, []Artifact{
		artifact(t, "a.pem", "d41d8cd98f00b204e9800998ecf8427e", "key-a"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.DirExists(t, filepath.Join(dir, "iOS", "22A3354"))
	assert.FileExists(t, filepath.Join(dir, "iOS", "22A3354", "d41d8cd98f00b204e9800998ecf8427e.pem"))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Build: b, Keys: 1}}, entries)

	files, err := os.ReadDir(filepath.Join(dir, "iOS"))
	require.NoError(t, err)
	assert.Len(t, files, 1, "no staging leftovers")
}

func TestLocalRejectsUnsafeBuild(t *testing.T) {
	s := NewLocal(t.TempDir(), "hash", "file")
	_, err := s.MarkDone(context.Background(), appledb.Build{OS: "iOS", ID: "../escape"}, nil)
	require.Error(t, err)
}

func TestSqlite(t *testing.T) {
	s, err := NewSqlite(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)

	keys, err := s.Keys(context.Background(), appledb.Build{OS: "iOS", ID: "22A3354"})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, []byte("key-a"), keys[0].Data)

	_, err = s.Keys(context.Background(), appledb.Build{OS: "iOS", ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSqliteConcurrentMarkDone(t *testing.T) {
	s, err := NewSqlite(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	var g errgroup.Group
	g.SetLimit(8)
	for i := range 32 {
		a := artifact(t, fmt.Sprintf("%d.pem", i), fmt.Sprintf("%032x", i), fmt.Sprintf("key-%d", i))
		g.Go(func() error {
			b := appledb.Build{OS: "iOS", ID: fmt.Sprintf("22A%03d", i)}
			if _, err := s.Exists(ctx, b); err != nil {
				return err
			}
			_, err := s.MarkDone(ctx, b, []Artifact{a})
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 32)
}

func TestMemory(t *testing.T) {
	s, err := NewMemory(16, nil)
	require.NoError(t, err)
	testStore(t, s)
}

func TestMemoryOverlay(t *testing.T) {
	ctx := context.Background()
	base := NewLocal(t.TempDir(), "hash", "file")
	cached := appledb.Build{OS: "iOS", ID: "22A1"}
	_, err := base.MarkDone(ctx, cached, nil)
	require.NoError(t, err)

	m, err := NewMemory(16, base)
	require.NoError(t, err)

	ok, err := m.Exists(ctx, cached)
	require.NoError(t, err)
	assert.True(t, ok)

	fresh := appledb.Build{OS: "iOS", ID: "22B2"}
	_, err = m.MarkDone(ctx, fresh, nil)
	require.NoError(t, err)

	ok, err = base.Exists(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, ok, "writes must not reach the base store")

	entries, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStoredName(t *testing.T) {
	a := Artifact{Name: "sub/Key.PEM", Digest: "abc"}
	assert.Equal(t, "abc.pem", a.StoredName("hash"))
	assert.Equal(t, "Key.PEM", a.StoredName("original"))
}
