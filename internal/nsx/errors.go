package nsx

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is matched by a StatusError carrying 404.
	ErrNotFound = errors.New("resource not found")

	// ErrPreconditionFailed is matched by a StatusError carrying 412, the
	// manager's answer to an If-Match header with a stale version tag.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// StatusError is returned for every non-2xx answer from the manager.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is classifies the status so callers can use errors.Is with the sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrPreconditionFailed:
		return e.Code == http.StatusPreconditionFailed
	}
	return false
}
