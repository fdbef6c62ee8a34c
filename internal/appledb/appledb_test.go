package appledb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultFilter = Filter{OSes: []string{"iOS", "iPadOS"}, MinMajor: 22}

func TestBuildMajor(t *testing.T) {
	tests := []struct {
		id     string
		want   int
		wantOK bool
	}{
		{id: "22A3354", want: 22, wantOK: true},
		{id: "22.1", want: 22, wantOK: true},
		{id: "9", want: 9, wantOK: true},
		{id: "beta1", wantOK: false},
		{id: "", wantOK: false},
		{id: "99999999999999999999999", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := Build{OS: "iOS", ID: tt.id}.Major()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntry(t *testing.T) {
	b, ok := ParseEntry("iOS;22A3354;extra")
	require.True(t, ok)
	assert.Equal(t, Build{OS: "iOS", ID: "22A3354;extra"}, b)

	_, ok = ParseEntry("no separator")
	assert.False(t, ok)
}

func TestFilterApply(t *testing.T) {
	tests := []struct {
		name string
		in   []Build
		want []Build
	}{
		{
			name: "os and major",
			in: []Build{
				{OS: "iOS", ID: "22.1"},
				{OS: "Android", ID: "14.0"},
				{OS: "iPadOS", ID: "21.9"},
			},
			want: []Build{{OS: "iOS", ID: "22.1"}},
		},
		{
			name: "boundary",
			in: []Build{
				{OS: "iOS", ID: "21Z999"},
				{OS: "iOS", ID: "22A1"},
			},
			want: []Build{{OS: "iOS", ID: "22A1"}},
		},
		{
			name: "unparsable skipped",
			in: []Build{
				{OS: "iOS", ID: "beta"},
				{OS: "iOS", ID: "23A5"},
			},
			want: []Build{{OS: "iOS", ID: "23A5"}},
		},
		{
			name: "sorted and deduplicated",
			in: []Build{
				{OS: "iPadOS", ID: "22B83"},
				{OS: "iOS", ID: "23A5"},
				{OS: "iOS", ID: "22B83"},
				{OS: "iOS", ID: "23A5"},
			},
			want: []Build{
				{OS: "iOS", ID: "22B83"},
				{OS: "iOS", ID: "23A5"},
				{OS: "iPadOS", ID: "22B83"},
			},
		},
		{
			name: "unsafe identifiers",
			in: []Build{
				{OS: "iOS", ID: "22A/../../etc"},
				{OS: "iOS", ID: "22A1"},
			},
			want: []Build{{OS: "iOS", ID: "22A1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultFilter.Apply(tt.in))
		})
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name string
		in   []Build
		want []Build
	}{
		{
			name: "greatest per os",
			in: []Build{
				{OS: "iOS", ID: "22A1"},
				{OS: "iOS", ID: "23A5"},
				{OS: "iPadOS", ID: "22B83"},
			},
			want: []Build{{OS: "iOS", ID: "23A5"}, {OS: "iPadOS", ID: "22B83"}},
		},
		{
			name: "release beats newer beta",
			in: []Build{
				{OS: "iOS", ID: "22A3354"},
				{OS: "iOS", ID: "22A5282m"},
			},
			want: []Build{{OS: "iOS", ID: "22A3354"}},
		},
		{
			name: "numeric build number",
			in: []Build{
				{OS: "iOS", ID: "22A10000"},
				{OS: "iOS", ID: "22A9"},
				{OS: "iOS", ID: "22B2"},
			},
			want: []Build{{OS: "iOS", ID: "22B2"}},
		},
		{
			name: "beta only",
			in: []Build{
				{OS: "iOS", ID: "23A5276f"},
				{OS: "iOS", ID: "23A5297i"},
			},
			want: []Build{{OS: "iOS", ID: "23A5297i"}},
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Latest(tt.in))
		})
	}
}

func TestCompareID(t *testing.T) {
	assert.Negative(t, CompareID("9A1", "10A1"))
	assert.Negative(t, CompareID("22A3354", "22B83"))
	assert.Negative(t, CompareID("22A999", "22A3354"))
	assert.Negative(t, CompareID("22A3354", "22A3354a"))
	assert.Zero(t, CompareID("22A3354", "22A3354"))
	assert.Negative(t, CompareID("22.1", "22A1"))
	assert.True(t, Build{OS: "iOS", ID: "22A5282m"}.Beta())
	assert.False(t, Build{OS: "iOS", ID: "22A3354"}.Beta())
}

func TestIndexSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.json":
			w.Write([]byte(`["iOS;22.1", "Android;14.0", "iPadOS;21.9", "garbage"]`))
		case "/object.json":
			w.Write([]byte(`{"iOS": "22.1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := Enumerator{Source: IndexSource{URL: srv.URL + "/index.json", Client: srv.Client()}, Filter: defaultFilter}
	got, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Build{{OS: "iOS", ID: "22.1"}}, got)

	_, err = IndexSource{URL: srv.URL + "/object.json", Client: srv.Client()}.Builds(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected index format")

	_, err = IndexSource{URL: srv.URL + "/missing.json", Client: srv.Client()}.Builds(context.Background())
	require.Error(t, err)
}

func writeOsFile(t *testing.T, root, osName, major, name, body string) {
	t.Helper()
	dir := filepath.Join(root, osFilesDir, osName, major)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestTreeSource(t *testing.T) {
	root := t.TempDir()
	writeOsFile(t, root, "iOS", "22x - 18.x", "22A3354.json", `{"osStr":"iOS","version":"18.0","build":"22A3354"}`)
	writeOsFile(t, root, "iOS", "21x - 17.x", "21A329.json", `{"osStr":"iOS","version":"17.0","build":"21A329"}`)
	writeOsFile(t, root, "iOS", "22x - 18.x", "README.md", `not a build`)
	writeOsFile(t, root, "iPadOS", "23x - 26.x", "23A341.json", `{"osStr":"iPadOS","build":"23A341"}`)
	writeOsFile(t, root, "macOS", "25x - 15.x", "25A354.json", `{"osStr":"macOS","build":"25A354"}`)

	var materialized string
	src := TreeSource{
		Dir:  root,
		OSes: defaultFilter.OSes,
		Materializer: materializerFunc(func(ctx context.Context, dir string) error {
			materialized = dir
			return nil
		}),
	}
	got, err := Enumerator{Source: src, Filter: defaultFilter}.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, root, materialized)
	assert.Equal(t, []Build{
		{OS: "iOS", ID: "22A3354"},
		{OS: "iPadOS", ID: "23A341"},
	}, got)

	_, err = TreeSource{Dir: t.TempDir(), OSes: defaultFilter.OSes}.Builds(context.Background())
	require.Error(t, err)
}

type materializerFunc func(ctx context.Context, dir string) error

func (f materializerFunc) Materialize(ctx context.Context, dir string) error { return f(ctx, dir) }

type fakeTool struct {
	dir  string
	args []string
}

func (f *fakeTool) Exec(ctx context.Context, dir string, args ...string) error {
	f.dir = dir
	f.args = args
	return nil
}

func TestToolMaterializer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "appledb")
	tool := &fakeTool{}
	m := ToolMaterializer{Tool: tool, Args: []string{"appledb", "sync", "--dir", "{{dir}}"}}
	require.NoError(t, m.Materialize(context.Background(), dir))
	assert.DirExists(t, dir)
	assert.Equal(t, dir, tool.dir)
	assert.Equal(t, []string{"appledb", "sync", "--dir", dir}, tool.args)
}

func initRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	require.NoError(t, err)
	return repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, rel, content string) plumbing.Hash {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(rel)
	require.NoError(t, err)
	h, err := wt.Commit("add "+rel, &git.CommitOptions{
		Author: &object.Signature{Name: "AppleDB", Email: "appledb@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return h
}

func TestGitMaterializer(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	upstream := t.TempDir()
	repo := initRepo(t, upstream)
	commitFile(t, repo, upstream, "osFiles/iOS/22x - 18.x/22A1.json", `{"osStr":"iOS","build":"22A1"}`)

	src := TreeSource{
		Dir:          filepath.Join(t.TempDir(), "appledb"),
		OSes:         []string{"iOS"},
		Materializer: GitMaterializer{URL: upstream, Branch: "main"},
	}

	// first run clones
	got, err := src.Builds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Build{{OS: "iOS", ID: "22A1"}}, got)

	// a new upstream commit is pulled
	commitFile(t, repo, upstream, "osFiles/iOS/22x - 18.x/22B2.json", `{"osStr":"iOS","build":"22B2"}`)
	got, err = src.Builds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Build{{OS: "iOS", ID: "22A1"}, {OS: "iOS", ID: "22B2"}}, got)

	// nothing new upstream is not an error
	got, err = src.Builds(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGitMaterializerMissingBranch(t *testing.T) {
	requireGit(t)
	upstream := t.TempDir()
	repo := initRepo(t, upstream)
	commitFile(t, repo, upstream, "osFiles/iOS/22x - 18.x/22A1.json", `{"osStr":"iOS","build":"22A1"}`)

	m := GitMaterializer{URL: upstream, Branch: "does-not-exist"}
	require.Error(t, m.Materialize(context.Background(), filepath.Join(t.TempDir(), "appledb")))
}

// requireGit skips tests needing git-upload-pack for file:// remotes.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}
