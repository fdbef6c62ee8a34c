// Package state persists the last processed AppleDB commit.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker stores a single token between runs.
type Marker interface {
	// Read returns the stored token, or "" when none was written yet.
	Read() (string, error)
	Write(token string) error
}

// File is a Marker backed by one text file.
type File struct {
	Path string
}

// NewFile returns a marker stored at path.
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read state file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *File) Write(token string) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to commit state file: %w", err)
	}
	return nil
}
