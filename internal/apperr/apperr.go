// Package apperr defines the stable error taxonomy shared by the queue,
// the admission controller, and the HTTP layer. A single code plus a short
// hint is preserved end-to-end, per the propagation policy the control
// plane is built around.
package apperr

import "net/http"

// Error is the control plane's canonical error shape.
type Error struct {
	Code      string
	Message   string
	Status    int
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Wrap attaches an underlying cause without changing code/message/status.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Status: e.Status, Retryable: e.Retryable, cause: cause}
}

func newErr(code, message string, status int, retryable bool) *Error {
	return &Error{Code: code, Message: message, Status: status, Retryable: retryable}
}

// Input errors — never retried server-side.
var (
	ErrNoFile          = newErr("NO_FILE", "no file was uploaded", http.StatusBadRequest, false)
	ErrEmptyFile       = newErr("EMPTY_FILE", "uploaded file is empty", http.StatusBadRequest, false)
	ErrFileTooLarge    = newErr("FILE_TOO_LARGE", "uploaded file exceeds the maximum size", http.StatusBadRequest, false)
	ErrInvalidFileType = newErr("INVALID_FILE_TYPE", "file extension is not allowed", http.StatusBadRequest, false)
	ErrInvalidFormat   = newErr("INVALID_FORMAT", "file content does not match an accepted audio or video format", http.StatusBadRequest, false)
	ErrInvalidJobID    = newErr("INVALID_JOB_ID", "job id is malformed", http.StatusBadRequest, false)
)

// Admission errors — transient, advertised as such.
var (
	ErrRateLimited          = newErr("RATE_LIMIT_EXCEEDED", "too many uploads, try again later", http.StatusTooManyRequests, true)
	ErrQueueOverloaded      = newErr("QUEUE_OVERLOADED", "the queue is not accepting new work", http.StatusServiceUnavailable, true)
	ErrInsufficientStorage  = newErr("INSUFFICIENT_STORAGE", "not enough free disk space to accept this upload", http.StatusServiceUnavailable, true)
)

// Processing errors — retried with backoff up to maxAttempts.
var (
	ErrProcessingFailed = newErr("PROCESSING_FAILED", "all candidate processing chains failed", http.StatusInternalServerError, true)
	ErrTimeout          = newErr("TIMEOUT", "processing exceeded its deadline", http.StatusInternalServerError, true)
	ErrParseFailed      = newErr("PARSE_FAILED", "could not parse a required measurement field", http.StatusInternalServerError, true)
)

// Not-found / not-ready — never retried server-side.
var (
	ErrJobNotFound = newErr("JOB_NOT_FOUND", "no job exists with that id", http.StatusNotFound, false)
	ErrNotReady    = newErr("NOT_READY", "job has not completed yet", http.StatusBadRequest, false)
	ErrFileExpired = newErr("FILE_EXPIRED", "the result file has been cleaned up", http.StatusNotFound, false)
)

// Infrastructure.
var (
	ErrStoreUnavailable = newErr("STORE_UNAVAILABLE", "the backing store is unreachable", http.StatusServiceUnavailable, true)
)
