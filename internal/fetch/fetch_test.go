package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes files[build] into the output directory.
type fakeTool struct {
	files map[string]map[string]string
	fail  map[string]error
	calls []string
	dirs  []string
}

func (f *fakeTool) FetchKeys(ctx context.Context, osName, build, output string) error {
	f.calls = append(f.calls, osName+";"+build)
	f.dirs = append(f.dirs, output)
	if err := f.fail[build]; err != nil {
		return err
	}
	for name, content := range f.files[build] {
		path := filepath.Join(output, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newFetcher(t *testing.T, tool KeyTool) (*Fetcher, string) {
	t.Helper()
	keys := t.TempDir()
	return &Fetcher{
		Store:      store.NewLocal(keys, "hash", "file"),
		Tool:       tool,
		KeyExt:     ".pem",
		Digest:     "md5",
		ScratchDir: t.TempDir(),
	}, keys
}

func TestFetchDeduplicates(t *testing.T) {
	tool := &fakeTool{files: map[string]map[string]string{
		"22.1": {
			"iPhone17,1/a.pem": "same-key",
			"iPhone17,2/b.pem": "same-key",
			"notes.txt":        "ignored",
		},
	}}
	f, keys := newFetcher(t, tool)
	b := appledb.Build{OS: "iOS", ID: "22.1"}

	res, err := f.Fetch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, StatusFetched, res.Status)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 1, res.Stored)

	files, err := os.ReadDir(filepath.Join(keys, "iOS", "22.1"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, md5hex("same-key")+".pem", files[0].Name())

	// scratch directory is removed
	assert.NoDirExists(t, tool.dirs[0])
}

func TestFetchSkipsCachedBuild(t *testing.T) {
	tool := &fakeTool{}
	f, keys := newFetcher(t, tool)
	b := appledb.Build{OS: "iOS", ID: "23.0"}

	res, err := f.Fetch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, StatusFetched, res.Status)
	assert.Zero(t, res.Found)

	fi, err := os.Stat(filepath.Join(keys, "iOS", "23.0"))
	require.NoError(t, err)
	assert.False(t, fi.IsDir())

	res, err = f.Fetch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Len(t, tool.calls, 1, "cached build must not invoke the tool")
}

func TestFetchToolFailure(t *testing.T) {
	tool := &fakeTool{
		files: map[string]map[string]string{"22C": {"k.pem": "c"}},
		fail:  map[string]error{"22B": errors.New("exit status 1")},
	}
	f, keys := newFetcher(t, tool)

	res, err := f.Fetch(context.Background(), appledb.Build{OS: "iOS", ID: "22B"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "exit status 1", res.Reason)
	assert.NoFileExists(t, filepath.Join(keys, "iOS", "22B"))

	res, err = f.Fetch(context.Background(), appledb.Build{OS: "iOS", ID: "22C"})
	require.NoError(t, err)
	assert.Equal(t, StatusFetched, res.Status)
	assert.FileExists(t, filepath.Join(keys, "iOS", "22C", md5hex("c")+".pem"))
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tool := &fakeTool{fail: map[string]error{"22D": context.Canceled}}
	f, _ := newFetcher(t, tool)

	_, err := f.Fetch(ctx, appledb.Build{OS: "iOS", ID: "22D"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchDryRun(t *testing.T) {
	tool := &fakeTool{}
	f, _ := newFetcher(t, tool)
	f.DryRun = true

	res, err := f.Fetch(context.Background(), appledb.Build{OS: "iOS", ID: "22E"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Empty(t, tool.calls)
}

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.pem")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	tests := []struct {
		algo string
		want string
	}{
		{algo: "md5", want: "900150983cd24fb0d6963f7d28e17f72"},
		{algo: "sha256", want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		t.Run(tt.algo, func(t *testing.T) {
			got, size, err := Digest(path, tt.algo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.EqualValues(t, 3, size)
		})
	}

	_, _, err := Digest(path, "crc32")
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	s := NewSummary("run-1")
	s.Add(Result{Build: appledb.Build{OS: "iPadOS", ID: "22A"}, Status: StatusSkipped})
	s.Add(Result{Build: appledb.Build{OS: "iOS", ID: "22B"}, Status: StatusFetched, Found: 2, Stored: 1, Bytes: 2048})
	s.Add(Result{Build: appledb.Build{OS: "iOS", ID: "22A"}, Status: StatusFailed, Reason: "boom"})

	c := s.Counts()
	assert.Equal(t, Counts{Fetched: 1, Skipped: 1, Failed: 1, Stored: 1, Bytes: 2048}, c)
	assert.Equal(t, "fetched 1 (1 new keys, 2.0 kB), skipped 1, failed 1", c.String())

	results := s.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "22A", results[0].Build.ID)
	assert.Equal(t, "iOS", results[0].Build.OS)
	assert.Equal(t, "iOS 22A: failed (boom)", results[0].Line())

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, s.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Len(t, got["results"], 3)
}
