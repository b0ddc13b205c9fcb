package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

// Error carries an HTTP status and a machine-readable code from the service
// layer to the handlers.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

func NotFound(code string, err error) *Error { return New(http.StatusNotFound, code, err) }

func Internal(code string, err error) *Error { return New(http.StatusInternalServerError, code, err) }

// From maps err onto an *Error. Existing *Error values pass through; the
// errs sentinels map to 404/400; anything else is treated as a storage or
// environment failure.
func From(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return NotFound("not_found", err)
	case errors.Is(err, errs.ErrInvalidArgument):
		return BadRequest("invalid_argument", err)
	}
	if fallbackCode == "" {
		fallbackCode = "internal_error"
	}
	return Internal(fallbackCode, err)
}
