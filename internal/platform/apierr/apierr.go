package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
)

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

// FromError converts an engine error into an API error. The message of an
// aggregate error is surfaced as-is so rule violations stay matchable.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var api *Error
	if errors.As(err, &api) {
		return api
	}
	var agg *domainagg.Error
	if !errors.As(err, &agg) {
		return New(http.StatusInternalServerError, string(domainagg.CodeInternal), err)
	}
	msg := agg.Message
	if msg == "" {
		msg = string(agg.Code)
	}
	return New(StatusFor(agg.Code), string(agg.Code), errors.New(msg))
}

func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeValidation, domainagg.CodeBusinessRule:
		return http.StatusBadRequest
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed:
		return http.StatusConflict
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
