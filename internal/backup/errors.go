package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrorKind classifies backup failures
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindAlreadyExists
	KindInvalidInput
)

var ErrEmptyPath = errors.New("paths cannot be empty")

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "File or directory not found"
	case KindPermissionDenied:
		return "Permission denied"
	case KindAlreadyExists:
		return "Target file already exists"
	case KindInvalidInput:
		return "Invalid path"
	default:
		return "Unknown error"
	}
}

// KindOf classifies any error returned by this package or the os package
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrEmptyPath):
		return KindInvalidInput
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, fs.ErrInvalid):
		return KindInvalidInput
	}
	return KindOther
}

// ValidationError is reported before any filesystem write
type ValidationError struct {
	Field string // "source" or "destination"
	Path  string
	Err   error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrEmptyPath) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s path %s: %v", e.Field, e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Error is a classified I/O failure during a backup
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s - %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	// report the innermost path the os package saw
	var pe *os.PathError
	if errors.As(err, &pe) {
		path = pe.Path
	}
	return &Error{Kind: KindOf(err), Op: op, Path: path, Err: err}
}
