package appledb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// osFilesDir is the AppleDB directory holding one JSON file per build.
const osFilesDir = "osFiles"

// OsFile is the part of an AppleDB osFiles entry we read.
type OsFile struct {
	OS      string `json:"osStr"`
	Version string `json:"version"`
	Build   string `json:"build"`
	Beta    bool   `json:"beta"`
}

// Materializer populates a local AppleDB checkout.
type Materializer interface {
	Materialize(ctx context.Context, dir string) error
}

// TreeSource walks <dir>/osFiles/<OS>/<majorDir>/<build>.json.
type TreeSource struct {
	Dir          string
	OSes         []string
	Materializer Materializer
}

func (s TreeSource) String() string {
	return "tree " + s.Dir
}

// Builds materializes the tree and walks it.
func (s TreeSource) Builds(ctx context.Context) ([]Build, error) {
	if s.Materializer != nil {
		if err := s.Materializer.Materialize(ctx, s.Dir); err != nil {
			return nil, fmt.Errorf("failed to materialize AppleDB in %s: %w", s.Dir, err)
		}
	}

	root := filepath.Join(s.Dir, osFilesDir)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("AppleDB tree not found: %w", err)
	}

	var builds []Build
	for _, osName := range s.OSes {
		majors, err := os.ReadDir(filepath.Join(root, osName))
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("os", osName).Debug("no osFiles directory")
			continue
		} else if err != nil {
			return nil, err
		}
		for _, major := range majors {
			if !major.IsDir() {
				continue
			}
			dir := filepath.Join(root, osName, major.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
					continue
				}
				b, err := readOsFile(filepath.Join(dir, f.Name()), osName)
				if err != nil {
					log.WithError(err).WithField("file", f.Name()).Debug("skipping unreadable osFile")
					continue
				}
				builds = append(builds, b)
			}
		}
	}
	return builds, nil
}

func readOsFile(path, osName string) (Build, error) {
	b := Build{OS: osName, ID: strings.TrimSuffix(filepath.Base(path), ".json")}

	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	var of OsFile
	if err := json.Unmarshal(data, &of); err != nil {
		return b, err
	}
	if of.Build != "" {
		b.ID = of.Build
	}
	return b, nil
}

// GitMaterializer keeps a shallow clone of the AppleDB repository up to date.
type GitMaterializer struct {
	URL    string
	Branch string
}

func (m GitMaterializer) Materialize(ctx context.Context, dir string) error {
	ref := plumbing.NewBranchReferenceName(m.Branch)

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		log.WithFields(log.Fields{"url": m.URL, "dir": dir}).Info("Cloning AppleDB")
		_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           m.URL,
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         1,
		})
		return err
	} else if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	log.WithField("dir", dir).Debug("Pulling AppleDB")
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         1,
		Force:         true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// ToolRunner runs the external tool in a directory.
type ToolRunner interface {
	Exec(ctx context.Context, dir string, args ...string) error
}

// ToolMaterializer lets the external tool populate the tree.
// Occurrences of {{dir}} in Args are replaced with the tree directory.
type ToolMaterializer struct {
	Tool ToolRunner
	Args []string
}

func (m ToolMaterializer) Materialize(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = strings.ReplaceAll(a, "{{dir}}", dir)
	}
	return m.Tool.Exec(ctx, dir, args...)
}
