package backend

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes query errors for the response envelope.
type ErrorCode string

const (
	// CodeValidation indicates malformed or disallowed SQL. Statements in
	// this category never reach the backend.
	CodeValidation ErrorCode = "SQL_VALIDATION_ERROR"

	// CodeConnection indicates the backend is unreachable or the adapter
	// was used before Connect.
	CodeConnection ErrorCode = "CONNECTION_ERROR"

	// CodeExecution indicates a backend-native failure on syntactically
	// valid, permitted SQL (missing relation, type mismatch, ...).
	CodeExecution ErrorCode = "EXECUTION_ERROR"

	// CodeTimeout indicates the call exceeded its wall-clock bound.
	CodeTimeout ErrorCode = "QUERY_TIMEOUT"
)

// QueryError is the structured error every adapter and the gateway use
// for query failures. Code selects the envelope error_code; Message is
// the detail shown to callers; Err preserves the native driver error.
type QueryError struct {
	Code    ErrorCode
	Message string
	SQL     string
	TxID    string
	Err     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the native driver error for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a QueryError for rejected SQL.
func NewValidationError(sql, reason string) *QueryError {
	return &QueryError{Code: CodeValidation, Message: reason, SQL: sql}
}

// NewConnectionError creates a QueryError for an unreachable backend.
func NewConnectionError(msg string, err error) *QueryError {
	return &QueryError{Code: CodeConnection, Message: msg, Err: err}
}

// NewExecutionError creates a QueryError wrapping a native failure.
func NewExecutionError(sql string, err error) *QueryError {
	return &QueryError{Code: CodeExecution, Message: err.Error(), SQL: sql, Err: err}
}

// NewTimeoutError creates a QueryError for an exceeded deadline.
func NewTimeoutError(sql string, bound string) *QueryError {
	return &QueryError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("query exceeded timeout of %s", bound),
		SQL:     sql,
	}
}

// ErrNotConnected is returned by adapter operations invoked before
// Connect. Using an adapter in the Disconnected state is a programmer
// error, not something to retry.
var ErrNotConnected = &QueryError{
	Code:    CodeConnection,
	Message: "backend is not connected",
}

// CodeOf extracts the ErrorCode from an error chain. Unrecognized errors
// classify as EXECUTION_ERROR.
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeExecution
}

// IsValidationError reports whether err is a SQL validation rejection.
func IsValidationError(err error) bool { return CodeOf(err) == CodeValidation }

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool { return CodeOf(err) == CodeTimeout }

// IsConnectionError reports whether err is a connection failure.
func IsConnectionError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == CodeConnection
	}
	return false
}
