package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies gateway failures so callers can map them to transport status codes.
type ErrorKind int

const (
	// KindNoEndpointAvailable means no warehouse is visible to the credential in use.
	KindNoEndpointAvailable ErrorKind = iota + 1
	// KindConnectionFailed means the session to the resolved warehouse could not be opened.
	KindConnectionFailed
	// KindRejectedStatement means the statement guard refused an ad-hoc query.
	KindRejectedStatement
	// KindExecutionFailed means the warehouse returned an error while running the statement.
	KindExecutionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoEndpointAvailable:
		return "NoEndpointAvailable"
	case KindConnectionFailed:
		return "ConnectionFailed"
	case KindRejectedStatement:
		return "RejectedStatement"
	case KindExecutionFailed:
		return "ExecutionFailed"
	default:
		return "Unknown"
	}
}

// Reasons attached to KindRejectedStatement errors.
var (
	ErrEmptyStatement         = errors.New("empty statement")
	ErrForbiddenStatementType = errors.New("statement type is not allowed")
)

// Error is returned by every gateway operation that fails.
type Error struct {
	Kind ErrorKind
	// Message is the text surfaced to callers. For ExecutionFailed it is the engine message verbatim.
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf returns the kind of a gateway error, or zero when err is not one.
func KindOf(err error) ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return 0
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// StatusCode maps an error to the HTTP status the calling layer should answer with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNoEndpointAvailable, KindConnectionFailed:
		return http.StatusServiceUnavailable
	case KindRejectedStatement:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
