package gateway

import (
	"github.com/roach88/strata/internal/backend"
)

// Request is one query call. SQL text may arrive from an upstream
// generator in non-canonical form; GetDataProduct normalizes it before
// validation.
type Request struct {
	// RequestID correlates the call for the caller; assigned when absent.
	RequestID string `json:"request_id,omitempty"`

	// TransactionID is the per-call log-tracing identifier (not a
	// database transaction). Assigned when absent.
	TransactionID string `json:"transaction_id,omitempty"`

	// SQL is the statement to execute.
	SQL string `json:"sql"`

	// Parameters are optional positional bind values.
	Parameters []any `json:"parameters,omitempty"`

	// DataProductID selects the data product used for metadata
	// annotation. Lookup is best-effort and never blocks execution.
	DataProductID string `json:"data_product_id,omitempty"`

	// PrincipalID and PrincipalContext are pass-through identity fields.
	// They affect response metadata only, never query semantics.
	PrincipalID      string            `json:"principal_id,omitempty"`
	PrincipalContext map[string]string `json:"principal_context,omitempty"`

	// TimeoutSeconds overrides the configured per-query bound.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Envelope is the wire-stable response shape. Every call to Execute or
// GetDataProduct returns exactly one envelope; no error ever crosses the
// boundary any other way.
//
// INVARIANTS: an error envelope never carries row data; a success
// envelope always carries columns (possibly empty) consistent with
// row_count.
type Envelope struct {
	Status        string `json:"status"`
	RequestID     string `json:"request_id"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id"`

	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
	RowCount    int      `json:"row_count"`
	QueryTimeMs int64    `json:"query_time_ms"`
	Truncated   bool     `json:"truncated,omitempty"`

	Principal       string `json:"principal,omitempty"`
	DataProductID   string `json:"data_product_id,omitempty"`
	GovernanceLevel string `json:"governance_level,omitempty"`

	ErrorMessage        string            `json:"error_message,omitempty"`
	ErrorCode           string            `json:"error_code,omitempty"`
	HumanActionRequired bool              `json:"human_action_required,omitempty"`
	HumanActionType     string            `json:"human_action_type,omitempty"`
	HumanActionContext  map[string]string `json:"human_action_context,omitempty"`
}

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// successEnvelope assembles the response for a completed query.
func successEnvelope(req Request, txID string, result *backend.QueryResult) Envelope {
	return Envelope{
		Status:        StatusSuccess,
		RequestID:     requestID(req, txID),
		Message:       "query executed",
		TransactionID: txID,
		Columns:       result.Columns,
		Rows:          result.Rows,
		RowCount:      result.RowCount,
		QueryTimeMs:   result.Elapsed.Milliseconds(),
		Truncated:     result.Truncated,
		Principal:     req.PrincipalID,
	}
}

// errorEnvelope assembles an error response. Row data is always empty.
func errorEnvelope(req Request, txID string, code backend.ErrorCode, message string) Envelope {
	return Envelope{
		Status:        StatusError,
		RequestID:     requestID(req, txID),
		TransactionID: txID,
		Columns:       []string{},
		Rows:          [][]any{},
		ErrorCode:     string(code),
		ErrorMessage:  message,
		Principal:     req.PrincipalID,
	}
}

// requestID prefers the caller-supplied id, falling back to the
// transaction id so the envelope always correlates.
func requestID(req Request, txID string) string {
	if req.RequestID != "" {
		return req.RequestID
	}
	return txID
}
