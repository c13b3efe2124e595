// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package files reads and writes the files served under /files/.
package files

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrPermissionDenied is returned when the process may not access the file.
	ErrPermissionDenied = errors.New("permission denied")
)

// IOError wraps any other filesystem failure.
type IOError struct {
	Op    string
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.Op, e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e IOError) Unwrap() error {
	return e.Cause
}

// Store reads and writes whole files.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, b []byte) error
}

// FS is a [Store] backed by an [afero.Fs].
type FS struct {
	fs afero.Fs
}

// NewFS returns a [Store] on top of fs.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// OS returns a [Store] on the operating system filesystem.
func OS() *FS {
	return NewFS(afero.NewOsFs())
}

// Read implements the [Store] interface.
func (s *FS) Read(path string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, classify("read", path, err)
	}
	return b, nil
}

// Write implements the [Store] interface. An existing file is truncated.
func (s *FS) Write(path string, b []byte) error {
	err := afero.WriteFile(s.fs, path, b, 0o644)
	if err != nil {
		return classify("write", path, err)
	}
	return nil
}

func classify(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return IOError{Op: op, Path: path, Cause: err}
	}
}
