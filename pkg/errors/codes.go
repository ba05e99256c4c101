package errors

import "fmt"

// ErrorCode represents a unique identifier for specific error conditions in prowire.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Pipeline assembly
	ErrCodeSecurityResolve ErrorCode = 2001
	ErrCodeChainBuild      ErrorCode = 2002

	// Transport lifecycle
	ErrCodeBindFailed     ErrorCode = 3001
	ErrCodeTransportStart ErrorCode = 3002
	ErrCodeTransportStop  ErrorCode = 3003

	// Monitoring
	ErrCodeHandleNotFound ErrorCode = 4001
	ErrCodeMetricConflict ErrorCode = 4002
)

// Error is a structured error type carrying an error code, the operation
// being performed, and the underlying cause.
type Error struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &Error{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an *Error.
// It returns ErrCodeUnknown otherwise.
func CodeOf(err error) ErrorCode {
	var e *Error
	for err != nil {
		if pe, ok := err.(*Error); ok {
			e = pe
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ErrCodeUnknown
	}
	return e.Code
}
