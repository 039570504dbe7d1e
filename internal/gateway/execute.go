package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/backend"
)

// Execute validates and runs one SQL statement, returning exactly one
// envelope. No error or panic crosses this boundary.
//
// The statement runs under a hard wall-clock timeout. On expiry the
// gateway stops waiting and returns a QUERY_TIMEOUT envelope; for
// drivers without cooperative cancellation (the embedded single-handle
// engine) the underlying call may run to completion detached. That leak
// is the documented trade-off here, chosen over engine-level query
// interruption.
func (g *Gateway) Execute(ctx context.Context, req Request) Envelope {
	txID := req.TransactionID
	if txID == "" {
		txID = uuid.Must(uuid.NewV7()).String()
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state != StateReady {
		g.logger.Error("execute called before gateway is ready", "state", g.state.String(), "tx_id", txID)
		return errorEnvelope(req, txID, backend.CodeConnection,
			fmt.Sprintf("gateway is not ready: state is %s", g.state))
	}
	if !g.cfg.Security.AllowCustomSQL {
		return errorEnvelope(req, txID, backend.CodeValidation,
			"custom sql is not allowed by security configuration")
	}

	return g.run(ctx, req, req.SQL, txID)
}

// GetDataProduct executes generator-produced SQL against a data product.
// The SQL text is untrusted, possibly malformed input: it is defensively
// normalized before validation. Product metadata lookup is best-effort;
// a missing product never blocks execution.
func (g *Gateway) GetDataProduct(ctx context.Context, req Request) Envelope {
	txID := req.TransactionID
	if txID == "" {
		txID = uuid.Must(uuid.NewV7()).String()
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state != StateReady {
		g.logger.Error("get data product called before gateway is ready", "state", g.state.String(), "tx_id", txID)
		return errorEnvelope(req, txID, backend.CodeConnection,
			fmt.Sprintf("gateway is not ready: state is %s", g.state))
	}

	sqlText := NormalizeSQL(req.SQL)
	if sqlText != req.SQL {
		g.logger.Debug("sql normalized",
			"tx_id", txID,
			"raw", req.SQL,
			"normalized", sqlText,
		)
	}

	env := g.run(ctx, req, sqlText, txID)
	g.annotate(&env, req)
	return env
}

// run is the shared validate-execute-classify path. Caller holds the
// read lock and has resolved txID.
func (g *Gateway) run(ctx context.Context, req Request, sqlText, txID string) Envelope {
	g.logger.Info("query received",
		"tx_id", txID,
		"sql", sqlText,
		"principal", req.PrincipalID,
	)

	if sqlText == "" {
		g.logger.Warn("query rejected: missing sql", "tx_id", txID)
		return errorEnvelope(req, txID, backend.CodeValidation, "request is missing sql text")
	}

	if g.cfg.Security.ValidateSQL {
		if ok, reason := g.backend.ValidateSQL(sqlText); !ok {
			// Rejected statements never reach the backend.
			g.logger.Warn("query rejected by read-only policy",
				"tx_id", txID,
				"sql", sqlText,
				"reason", reason,
			)
			return errorEnvelope(req, txID, backend.CodeValidation, reason)
		}
	}

	result, err := g.executeWithTimeout(ctx, req, sqlText, txID)
	if err != nil {
		return g.errorToEnvelope(req, sqlText, txID, err)
	}

	g.logger.Info("query executed",
		"tx_id", txID,
		"rows", result.RowCount,
		"elapsed_ms", result.Elapsed.Milliseconds(),
		"truncated", result.Truncated,
	)

	env := successEnvelope(req, txID, result)
	g.annotate(&env, req)
	return env
}

// executeWithTimeout runs the adapter call on its own goroutine under a
// hard deadline. The result channel is buffered so an abandoned call can
// still deliver and be discarded instead of leaking the goroutine
// forever.
func (g *Gateway) executeWithTimeout(ctx context.Context, req Request, sqlText, txID string) (*backend.QueryResult, error) {
	timeout := g.timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *backend.QueryResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: backend.NewExecutionError(sqlText, fmt.Errorf("backend panic: %v", r))}
			}
		}()
		result, err := g.backend.ExecuteQuery(qctx, sqlText, req.Parameters, txID)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if out.result == nil {
			return backend.EmptyResult(nil), nil
		}
		return out.result, nil
	case <-qctx.Done():
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			g.logger.Error("query timed out",
				"tx_id", txID,
				"sql", sqlText,
				"timeout", timeout,
			)
			return nil, backend.NewTimeoutError(sqlText, timeout.String())
		}
		return nil, backend.NewExecutionError(sqlText, qctx.Err())
	}
}

// errorToEnvelope logs a failure with its full native message, runs the
// human-action heuristic, and assembles the error envelope.
func (g *Gateway) errorToEnvelope(req Request, sqlText, txID string, err error) Envelope {
	code := backend.CodeOf(err)
	g.logger.Error("query failed",
		"tx_id", txID,
		"sql", sqlText,
		"error_code", string(code),
		"error", err,
	)

	env := errorEnvelope(req, txID, code, errorMessage(err))

	if code == backend.CodeExecution {
		if required, actionType := classifyForHumanAction(env.ErrorMessage); required {
			env.HumanActionRequired = true
			env.HumanActionType = actionType
			env.HumanActionContext = map[string]string{
				"sql":     sqlText,
				"message": env.ErrorMessage,
			}
		}
	}
	g.annotate(&env, req)
	return env
}

// errorMessage prefers the QueryError message over the wrapped chain.
func errorMessage(err error) string {
	var qe *backend.QueryError
	if errors.As(err, &qe) {
		return qe.Message
	}
	return err.Error()
}

// annotate attaches principal and governance metadata. Annotation only;
// it never alters row data.
func (g *Gateway) annotate(env *Envelope, req Request) {
	env.Principal = req.PrincipalID
	if req.DataProductID == "" || g.defs == nil {
		return
	}
	env.DataProductID = req.DataProductID
	if p, ok := g.defs.ProductByID(req.DataProductID); ok {
		env.GovernanceLevel = p.GovernanceLevel
	} else {
		g.logger.Debug("data product not found", "data_product_id", req.DataProductID)
	}
}
