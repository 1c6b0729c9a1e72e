package remote

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("no such file or directory")
	ErrNoDevice     = errors.New("no such device")
	ErrAccessDenied = errors.New("access denied")
	ErrExists       = errors.New("already exists")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrNotDir       = errors.New("not a directory")
	ErrUnsupported  = errors.New("operation not supported")
)

// Error tags a library error with one of the sentinels above so callers can
// test it with errors.Is while the original cause stays reachable.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// Wrap returns err tagged with kind. A nil err still produces an error so
// adapters can report conditions they detect themselves.
func Wrap(kind error, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IsNotFound reports whether err means the target does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoDevice)
}
