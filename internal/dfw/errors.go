package dfw

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// Error kinds. Every error returned by this package matches exactly one of them
// under errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrProtectedObject        = errors.New("protected object")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUpstream               = errors.New("upstream error")
)

// Error carries the operation and object an error refers to, so the CLI can
// render a one-line diagnostic.
type Error struct {
	Op     string
	Object string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Object != "" {
		b.WriteString(" ")
		b.WriteString(e.Object)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(op, object string, kind error, format string, args ...interface{}) *Error {
	e := &Error{Op: op, Object: object, Kind: kind}
	if format != "" {
		e.Err = errors.Errorf(format, args...)
	}
	return e
}

// upstream classifies a transport error. A stale version tag becomes
// ErrConcurrentModification and a missing resource ErrNotFound.
func upstream(op, object string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}

	kind := ErrUpstream
	switch {
	case errors.Is(err, nsx.ErrPreconditionFailed):
		kind = ErrConcurrentModification
	case errors.Is(err, nsx.ErrNotFound):
		kind = ErrNotFound
	}
	return &Error{Op: op, Object: object, Kind: kind, Err: err}
}

// KindOf returns the error kind of err, or nil when err is not from this package.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidArgument,
		ErrProtectedObject,
		ErrConcurrentModification,
		ErrUpstream,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
