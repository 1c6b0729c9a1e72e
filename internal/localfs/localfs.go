// Package localfs resolves local names against a session-owned working
// directory instead of the process one.
package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// FS is the local side of a session.
type FS struct {
	dir string
}

// New returns an FS rooted at dir ("" means the process working directory).
func New(dir string) (*FS, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &fs.PathError{Op: "chdir", Path: abs, Err: syscall.ENOTDIR}
	}
	return &FS{dir: abs}, nil
}

// Dir returns the current local directory.
func (l *FS) Dir() string { return l.dir }

// Path resolves name against the current directory.
func (l *FS) Path(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(l.dir, name)
}

// Chdir changes the current directory.
func (l *FS) Chdir(name string) error {
	p := l.Path(name)
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: "chdir", Path: p, Err: syscall.ENOTDIR}
	}
	l.dir = p
	return nil
}

func (l *FS) Mkdir(name string) error {
	return os.Mkdir(l.Path(name), 0o755)
}

// Rmdir removes an empty directory; unlike os.Remove it never removes files.
func (l *FS) Rmdir(name string) error {
	p := l.Path(name)
	if err := syscall.Rmdir(p); err != nil {
		return &fs.PathError{Op: "rmdir", Path: p, Err: err}
	}
	return nil
}

// Size returns the size of a regular file, or false if there is none.
func (l *FS) Size(name string) (int64, bool) {
	fi, err := os.Stat(l.Path(name))
	if err != nil || !fi.Mode().IsRegular() {
		return 0, false
	}
	return fi.Size(), true
}

// Exists reports whether anything exists at name.
func (l *FS) Exists(name string) bool {
	_, err := os.Lstat(l.Path(name))
	return err == nil
}

// Create creates or truncates a file for writing.
func (l *FS) Create(name string) (*os.File, error) {
	return os.Create(l.Path(name))
}

// IsExist reports whether err means the directory is already there.
func IsExist(err error) bool {
	return errors.Is(err, fs.ErrExist)
}

// IsNotEmpty reports whether err means a directory still has entries.
func IsNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
