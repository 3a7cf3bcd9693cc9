package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrSignature    = errors.New("invalid signature")
	ErrUpstream     = errors.New("upstream failure")
)

// detailed keeps the message readable while errors.Is still sees the kind.
type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string { return e.msg }
func (e *detailed) Unwrap() error { return e.kind }

func newf(kind error, format string, args ...any) error {
	return &detailed{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }
func Forbidden(format string, args ...any) error  { return newf(ErrForbidden, format, args...) }
func NotFound(format string, args ...any) error   { return newf(ErrNotFound, format, args...) }
func InvalidState(format string, args ...any) error {
	return newf(ErrInvalidState, format, args...)
}

// Upstream wraps a processor failure; the cause stays reachable through errors.Is/As.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUpstream, err))
}

// Signature wraps a webhook authenticity failure.
func Signature(err error) error {
	return fmt.Errorf("%w: %v", ErrSignature, err)
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrForbidden):
		return "forbidden"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrInvalidState):
		return "invalid_state"

	case errors.Is(err, ErrSignature):
		return "signature"

	case errors.Is(err, ErrUpstream):
		return "upstream"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation", "signature", "canceled":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "invalid_state":
		return http.StatusConflict
	case "upstream":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
