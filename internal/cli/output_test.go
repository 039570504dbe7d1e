package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("SQL_VALIDATION_ERROR", "statement rejected", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SQL_VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "statement rejected", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("3 view(s) present")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "3 view(s) present")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("CONNECTION_ERROR", "backend unreachable", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [CONNECTION_ERROR]: backend unreachable")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errBuf, Verbose: true}
	formatter.VerboseLog("resolved %d views", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, errBuf.String(), "resolved 3 views")

	quiet := &OutputFormatter{Format: "text", Writer: out, Verbose: false}
	quiet.VerboseLog("should not appear")
	assert.Empty(t, out.String())
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "database not found")
	assert.Equal(t, "database not found", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	wrapped := WrapExitError(ExitFailure, "query failed", errors.New("no such table"))
	assert.Contains(t, wrapped.Error(), "query failed")
	assert.Contains(t, wrapped.Error(), "no such table")
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))

	// ExitErrors survive wrapping.
	outer := fmt.Errorf("running command: %w", wrapped)
	assert.Equal(t, ExitFailure, GetExitCode(outer))

	// Plain errors default to ExitFailure.
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
