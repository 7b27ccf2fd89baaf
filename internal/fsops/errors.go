package fsops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ppiankov/fsgate/internal/allowlist"
)

// Kind classifies every failure the dispatcher can return.
type Kind string

const (
	KindConfiguration   Kind = "ConfigurationError"
	KindAccessDenied    Kind = "AccessDenied"
	KindNotFound        Kind = "NotFound"
	KindAlreadyExists   Kind = "AlreadyExists"
	KindFilesystem      Kind = "FilesystemError"
	KindInvalidArgument Kind = "InvalidArgument"
)

// Kinds lists the closed set of error kinds.
func Kinds() []Kind {
	return []Kind{
		KindConfiguration,
		KindAccessDenied,
		KindNotFound,
		KindAlreadyExists,
		KindFilesystem,
		KindInvalidArgument,
	}
}

// Error is the only error type returned by Dispatcher methods.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

// Message is the human-readable part without the operation prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps any error to its Kind. nil maps to "".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var denied *allowlist.DeniedError
	switch {
	case errors.Is(err, allowlist.ErrNotConfigured):
		return KindConfiguration
	case errors.As(err, &denied):
		return KindAccessDenied
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	default:
		return KindFilesystem
	}
}

// wrap converts err into an *Error, keeping an existing classification.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindFilesystem, Op: op, Path: path, Err: fmt.Errorf("operation not started: %w", err)}
	}
	return &Error{Kind: Classify(err), Op: op, Path: path, Err: err}
}

func notFound(op, path string) error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Err: fmt.Errorf("%s: %w", path, fs.ErrNotExist)}
}

func invalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}
