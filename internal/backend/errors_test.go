package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryError_ErrorIncludesTxID(t *testing.T) {
	e := &QueryError{Code: CodeExecution, Message: "boom", TxID: "tx-123"}
	assert.Contains(t, e.Error(), "EXECUTION_ERROR")
	assert.Contains(t, e.Error(), "tx-123")

	e = &QueryError{Code: CodeTimeout, Message: "slow"}
	assert.Equal(t, "QUERY_TIMEOUT: slow", e.Error())
}

func TestQueryError_Unwrap(t *testing.T) {
	native := errors.New("no such table: orders")
	e := NewExecutionError("SELECT * FROM orders", native)

	assert.ErrorIs(t, e, native)
	assert.Equal(t, native.Error(), e.Message)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(NewValidationError("DELETE", "nope")))
	assert.Equal(t, CodeConnection, CodeOf(ErrNotConnected))
	assert.Equal(t, CodeTimeout, CodeOf(NewTimeoutError("SELECT 1", "30s")))

	// Wrapped errors still classify by the QueryError in the chain.
	wrapped := fmt.Errorf("running query: %w", NewTimeoutError("SELECT 1", "5s"))
	assert.Equal(t, CodeTimeout, CodeOf(wrapped))

	// Unrecognized errors default to execution.
	assert.Equal(t, CodeExecution, CodeOf(errors.New("plain")))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsValidationError(NewValidationError("x", "y")))
	assert.True(t, IsTimeoutError(NewTimeoutError("x", "1s")))
	assert.True(t, IsConnectionError(ErrNotConnected))
	assert.False(t, IsConnectionError(errors.New("plain")))
}
