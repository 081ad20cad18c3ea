package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/bookrec/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error attaches the failing operation to an error and an optional kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// failure is the client-facing rendering of an error.
type failure struct {
	status  int
	code    string
	message string
}

// classify maps an error to a status, a code and a message that never
// carries upstream detail.
func classify(err error) failure {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return failure{http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token"}
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrValidation):
		return failure{http.StatusBadRequest, "bad_request", validationMessage(err)}
	case errors.Is(err, service.ErrNoSignal):
		return failure{http.StatusBadRequest, "no_history", "no reading history yet"}
	case errors.Is(err, service.ErrEmptyCandidates):
		return failure{http.StatusNotFound, "no_candidates", "no matching books found"}
	case errors.Is(err, service.ErrNoDescription):
		return failure{http.StatusNotFound, "no_candidates", "no matching books with a description found"}
	case errors.Is(err, service.ErrUpstream) && errors.Is(err, context.DeadlineExceeded):
		return failure{http.StatusGatewayTimeout, "upstream_timeout", "upstream service timed out"}
	case errors.Is(err, service.ErrUpstream):
		return failure{http.StatusInternalServerError, "upstream_error", "upstream service unavailable"}
	case errors.Is(err, service.ErrNotStarted):
		return failure{http.StatusServiceUnavailable, "unavailable", "service is not accepting requests"}
	default:
		return failure{http.StatusInternalServerError, "internal_error", "internal error"}
	}
}

// validationMessage returns the innermost message of a validation error,
// which is produced by this service and safe to show.
func validationMessage(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err.Error()
	}
	return err.Error()
}
