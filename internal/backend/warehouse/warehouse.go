// Package warehouse implements the backend contract over a cloud
// warehouse's SQL-over-REST service.
//
// The connection is a stateless client bound to a default project and
// dataset. The native call is blocking, so each query runs on a
// background goroutine and the tabular payload is converted afterward;
// one goroutine per in-flight query buys non-blocking behavior at the
// gateway layer. Write-style operations (CreateView, RegisterDataSource,
// CreateFallbackViews) are unsupported because curated views are managed
// outside this layer.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/roach88/strata/internal/backend"
)

func init() {
	backend.Register("warehouse", New)
}

// Adapter is the stateless cloud-warehouse client.
type Adapter struct {
	endpoint  string
	project   string
	dataset   string
	apiKey    string
	maxRows   int
	client    *http.Client
	connected atomic.Bool
	policy    backend.ReadOnlyPolicy
	logger    *slog.Logger
}

// queryPayload is the wire request for POST /v1/query.
type queryPayload struct {
	SQL        string `json:"sql"`
	Parameters []any  `json:"parameters,omitempty"`
	Project    string `json:"project"`
	Dataset    string `json:"dataset"`
	MaxRows    int    `json:"max_rows,omitempty"`
}

// queryReply is the wire response for POST /v1/query.
type queryReply struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	Error     string   `json:"error,omitempty"`
}

// New creates an unconnected adapter bound to a project/dataset.
func New(cfg backend.Config, logger *slog.Logger) (backend.Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("warehouse backend requires an endpoint")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		project:  cfg.Project,
		dataset:  cfg.Dataset,
		apiKey:   cfg.APIKey,
		maxRows:  cfg.MaxRows,
		client:   &http.Client{Timeout: 10 * time.Minute},
		policy:   backend.NewReadOnlyPolicy(true, true, nil),
		logger:   logger.With("backend", "warehouse"),
	}, nil
}

// Connect verifies the service is reachable. The client itself is
// stateless, so "connected" only records a successful status probe.
func (a *Adapter) Connect(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/v1/status", nil)
	if err != nil {
		a.logger.Error("build status request failed", "error", err)
		return false
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("connect failed", "endpoint", a.endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		a.logger.Error("connect rejected", "endpoint", a.endpoint, "status", resp.StatusCode)
		return false
	}

	a.connected.Store(true)
	a.logger.Info("connected", "endpoint", a.endpoint, "project", a.project, "dataset", a.dataset)
	return true
}

// Disconnect drops the connected flag. Idempotent; there is no session
// to release.
func (a *Adapter) Disconnect() bool {
	a.connected.Store(false)
	return true
}

// Connected reports whether the last status probe succeeded.
func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// ExecuteQuery posts the statement to the warehouse on a background
// goroutine and converts the JSON payload into the canonical shape. If
// the context expires first the in-flight HTTP call is abandoned; the
// goroutine drains and discards the late reply.
func (a *Adapter) ExecuteQuery(ctx context.Context, sql string, params []any, txID string) (*backend.QueryResult, error) {
	if !a.connected.Load() {
		return nil, backend.ErrNotConnected
	}

	type outcome struct {
		result *backend.QueryResult
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		res, err := a.postQuery(ctx, sql, params)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		out.result.Elapsed = time.Since(start)
		a.logger.Debug("query executed",
			"tx_id", txID,
			"rows", out.result.RowCount,
			"elapsed", out.result.Elapsed,
		)
		return out.result, nil
	case <-ctx.Done():
		return nil, backend.NewExecutionError(sql, ctx.Err())
	}
}

// postQuery performs the blocking native call.
func (a *Adapter) postQuery(ctx context.Context, sql string, params []any) (*backend.QueryResult, error) {
	body, err := json.Marshal(queryPayload{
		SQL:        sql,
		Parameters: params,
		Project:    a.project,
		Dataset:    a.dataset,
		MaxRows:    a.maxRows,
	})
	if err != nil {
		return nil, backend.NewExecutionError(sql, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, backend.NewExecutionError(sql, err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, backend.NewExecutionError(sql, err)
	}
	defer resp.Body.Close()

	var reply queryReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, backend.NewExecutionError(sql, fmt.Errorf("decode warehouse reply: %w", err))
	}
	if reply.Error != "" {
		return nil, backend.NewExecutionError(sql, fmt.Errorf("%s", reply.Error))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backend.NewExecutionError(sql, fmt.Errorf("warehouse returned status %d", resp.StatusCode))
	}

	result := backend.EmptyResult(reply.Columns)
	result.Rows = reply.Rows
	if result.Rows == nil {
		result.Rows = [][]any{}
	}
	result.RowCount = len(result.Rows)
	result.Truncated = reply.Truncated
	return result, nil
}

// CreateView is unsupported: curated views are managed outside this
// layer.
func (a *Adapter) CreateView(ctx context.Context, name, sql string, replace bool) bool {
	a.logger.Debug("create view is not supported", "view", name)
	return false
}

// ListViews fetches the curated view names from GET /v1/views.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	if !a.connected.Load() {
		return nil, backend.ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/v1/views", nil)
	if err != nil {
		return nil, backend.NewExecutionError("list views", err)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, backend.NewExecutionError("list views", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backend.NewExecutionError("list views",
			fmt.Errorf("warehouse returned status %d: %s", resp.StatusCode, body))
	}

	var out struct {
		Views []string `json:"views"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backend.NewExecutionError("list views", err)
	}
	if out.Views == nil {
		out.Views = []string{}
	}
	return out.Views, nil
}

// CheckViewExists reports whether the curated view list contains name.
func (a *Adapter) CheckViewExists(ctx context.Context, name string) (bool, error) {
	views, err := a.ListViews(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range views {
		if strings.EqualFold(v, name) {
			return true, nil
		}
	}
	return false, nil
}

// RegisterDataSource is unsupported on the warehouse.
func (a *Adapter) RegisterDataSource(ctx context.Context, src backend.SourceInfo) bool {
	a.logger.Debug("register data source is not supported", "source", src.Name)
	return false
}

// ValidateSQL allows SELECT and WITH statements only, plus the denylist.
func (a *Adapter) ValidateSQL(sql string) (bool, string) {
	return a.policy.Validate(sql)
}

// Metadata returns the adapter status map.
func (a *Adapter) Metadata() map[string]any {
	return map[string]any{
		"backend_type": "warehouse",
		"endpoint":     a.endpoint,
		"project":      a.project,
		"dataset":      a.dataset,
		"connected":    a.Connected(),
		"max_rows":     a.maxRows,
	}
}

// CreateFallbackViews is unsupported on the warehouse; every name maps
// to false so the caller can decide what to do.
func (a *Adapter) CreateFallbackViews(ctx context.Context, names []string) map[string]bool {
	results := make(map[string]bool, len(names))
	for _, name := range names {
		results[name] = false
	}
	return results
}

// authorize attaches the bearer token when an API key is configured.
func (a *Adapter) authorize(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}
