package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/appledb"
	pkgerrors "github.com/pkg/errors"
)

// Local keeps keys in <Folder>/<OS>/<build>/. A build checked without
// keys is an empty file (or empty directory with the "dir" marker).
type Local struct {
	Folder string
	Naming string
	Marker string
}

// NewLocal returns a directory-backed store.
func NewLocal(folder, naming, marker string) *Local {
	if naming == "" {
		naming = "hash"
	}
	if marker == "" {
		marker = "file"
	}
	return &Local{
		Folder: folder,
		Naming: naming,
		Marker: marker,
	}
}

func (l *Local) path(b appledb.Build) string {
	return filepath.Join(l.Folder, b.OS, b.ID)
}

func (l *Local) Exists(ctx context.Context, b appledb.Build) (bool, error) {
	if !b.Valid() {
		return false, pkgerrors.Errorf("invalid build %q", b)
	}
	_, err := os.Lstat(l.path(b))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, pkgerrors.Wrapf(err, "failed to stat %s", l.path(b))
}

func (l *Local) MarkDone(ctx context.Context, b appledb.Build, artifacts []Artifact) (int, error) {
	if !b.Valid() {
		return 0, pkgerrors.Errorf("invalid build %q", b)
	}
	final := l.path(b)
	parent := filepath.Dir(final)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to create os directory")
	}

	// a marker file is replaced by a directory once keys show up
	var replace bool
	fi, err := os.Lstat(final)
	switch {
	case err == nil && fi.IsDir():
		return l.copyInto(final, artifacts)
	case err == nil && len(artifacts) == 0:
		log.WithField("build", b.String()).Debug("build already marked without keys")
		return 0, nil
	case err == nil:
		replace = true
	case !errors.Is(err, os.ErrNotExist):
		return 0, pkgerrors.Wrapf(err, "failed to stat %s", final)
	}

	if len(artifacts) == 0 && l.Marker == "file" {
		f, err := os.CreateTemp(parent, "."+b.ID+"-*")
		if err != nil {
			return 0, pkgerrors.Wrap(err, "failed to create marker")
		}
		f.Close()
		if err := os.Rename(f.Name(), final); err != nil {
			os.Remove(f.Name())
			return 0, pkgerrors.Wrap(err, "failed to commit marker")
		}
		return 0, nil
	}

	stage, err := os.MkdirTemp(parent, "."+b.ID+"-")
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(stage)

	n, err := l.copyInto(stage, artifacts)
	if err != nil {
		return 0, err
	}
	if err := os.Chmod(stage, 0o755); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to chmod staging directory")
	}
	if replace {
		if err := os.Remove(final); err != nil {
			return 0, pkgerrors.Wrapf(err, "failed to remove marker %s", final)
		}
	}
	if err := os.Rename(stage, final); err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to commit %s", final)
	}
	return n, nil
}

func (l *Local) copyInto(dir string, artifacts []Artifact) (int, error) {
	var n int
	for _, a := range dedup(artifacts) {
		name := a.StoredName(l.Naming)
		dst := filepath.Join(dir, name)
		if _, err := os.Stat(dst); err == nil {
			if l.Naming == "hash" {
				continue
			}
			ext := filepath.Ext(name)
			short := a.Digest
			if len(short) > 8 {
				short = short[:8]
			}
			dst = filepath.Join(dir, strings.TrimSuffix(name, ext)+"-"+short+ext)
			if _, err := os.Stat(dst); err == nil {
				continue
			}
		}
		if err := copyFile(a.Path, dst); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open artifact")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create key file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return pkgerrors.Wrap(err, "failed to copy key file")
	}
	return out.Close()
}

func (l *Local) List(ctx context.Context) ([]Entry, error) {
	oses, err := os.ReadDir(l.Folder)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read keys directory")
	}

	var entries []Entry
	for _, o := range oses {
		if !o.IsDir() || strings.HasPrefix(o.Name(), ".") {
			continue
		}
		builds, err := os.ReadDir(filepath.Join(l.Folder, o.Name()))
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to read os directory")
		}
		for _, b := range builds {
			if strings.HasPrefix(b.Name(), ".") {
				continue
			}
			e := Entry{Build: appledb.Build{OS: o.Name(), ID: b.Name()}}
			if b.IsDir() {
				files, err := os.ReadDir(filepath.Join(l.Folder, o.Name(), b.Name()))
				if err != nil {
					return nil, pkgerrors.Wrap(err, "failed to read build directory")
				}
				for _, f := range files {
					if !f.IsDir() && !strings.HasPrefix(f.Name(), ".") {
						e.Keys++
					}
				}
			}
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int { return appledb.Compare(a.Build, b.Build) })
	return entries, nil
}

func (l *Local) Close() error { return nil }
