package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrShardNotFound     = errors.New("shard not found")
	ErrMalformedShard    = errors.New("malformed shard")
	ErrSourceUnavailable = errors.New("shard source unavailable")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidPattern    = errors.New("invalid search pattern")
	ErrBusy              = errors.New("search already in progress")
	ErrUnsupportedSource = errors.New("unsupported shard source")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Permanent reports whether retrying the operation that produced err cannot
// succeed: the shard does not exist or its payload cannot be decoded.
func Permanent(err error) bool {
	return errors.Is(err, ErrShardNotFound) || errors.Is(err, ErrMalformedShard) || errors.Is(err, ErrInvalidInput)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrShardNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidPattern):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
