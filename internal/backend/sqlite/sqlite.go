// Package sqlite implements the backend contract over an embedded
// single-connection analytic engine.
//
// The native driver is synchronous and the adapter holds exactly one
// connection, so every call serializes through an internal mutex;
// concurrent callers queue. This is the one file-ingesting adapter:
// RegisterDataSource loads CSV files into queryable tables, and
// CreateFallbackViews can synthesize sample data locally.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/strata/internal/backend"
)

func init() {
	backend.Register("sqlite", New)
}

// Adapter is the embedded single-connection adapter.
type Adapter struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	maxRows int
	policy  backend.ReadOnlyPolicy
	logger  *slog.Logger
}

// New creates an unconnected adapter. The database file is created on
// Connect if it does not exist.
func New(cfg backend.Config, logger *slog.Logger) (backend.Backend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite backend requires a database path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		path:    cfg.Path,
		maxRows: cfg.MaxRows,
		policy:  backend.NewReadOnlyPolicy(true, false, nil),
		logger:  logger.With("backend", "sqlite"),
	}, nil
}

// Connect opens the database and applies the pragmas the single-handle
// model needs (WAL for concurrent reads, busy timeout for lock
// contention). Recoverable failures are logged and reported as false.
func (a *Adapter) Connect(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return true
	}

	db, err := sql.Open("sqlite3", a.path)
	if err != nil {
		a.logger.Error("open database failed", "path", a.path, "error", err)
		return false
	}
	if err := db.PingContext(ctx); err != nil {
		a.logger.Error("connect failed", "path", a.path, "error", err)
		db.Close()
		return false
	}

	// Single handle: the driver is synchronous and SQLite allows one
	// writer, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			a.logger.Error("apply pragma failed", "pragma", pragma, "error", err)
			db.Close()
			return false
		}
	}

	a.db = db
	a.logger.Info("connected", "path", a.path)
	return true
}

// Disconnect closes the database. Idempotent.
func (a *Adapter) Disconnect() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return true
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close failed", "error", err)
		a.db = nil
		return false
	}
	a.db = nil
	return true
}

// Connected reports whether the adapter holds a live handle.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db != nil
}

// ExecuteQuery runs one statement through the single native connection
// and converts driver rows into the canonical result shape.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params []any, txID string) (*backend.QueryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, backend.ErrNotConnected
	}

	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, backend.NewExecutionError(query, err)
	}
	defer rows.Close()

	result, err := scanRows(rows, a.maxRows)
	if err != nil {
		return nil, backend.NewExecutionError(query, err)
	}
	result.Elapsed = time.Since(start)

	a.logger.Debug("query executed",
		"tx_id", txID,
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// scanRows drains driver rows into fixed-width tuples, stopping at
// maxRows (0 = unlimited). []byte values become strings so results stay
// JSON-friendly.
func scanRows(rows *sql.Rows, maxRows int) (*backend.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := backend.EmptyResult(cols)
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// CreateView upserts a named view. The engine can retain a stale
// recursive or ambiguous definition under a case-variant of the name, so
// every case variant is dropped before the canonical quoted view is
// created.
func (a *Adapter) CreateView(ctx context.Context, name, query string, replace bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		a.logger.Error("create view on disconnected backend", "view", name)
		return false
	}

	variants, err := a.viewVariants(ctx, name)
	if err != nil {
		a.logger.Error("lookup view variants failed", "view", name, "error", err)
		return false
	}
	if len(variants) > 0 && !replace {
		return true
	}
	for _, variant := range variants {
		if _, err := a.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+quoteIdent(variant)); err != nil {
			a.logger.Error("drop view variant failed", "view", variant, "error", err)
			return false
		}
	}

	ddl := fmt.Sprintf("CREATE VIEW %s AS %s", quoteIdent(name), query)
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		a.logger.Error("create view failed", "view", name, "error", err)
		return false
	}

	// The engine accepts view definitions over tables that do not exist
	// yet; the failure only surfaces on first use. Probe the new view and
	// drop it if it cannot answer, so a missing required view is detected
	// and fallback synthesis can take over.
	if err := a.probeView(ctx, name); err != nil {
		a.logger.Warn("view is not queryable, dropping", "view", name, "error", err)
		if _, dropErr := a.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+quoteIdent(name)); dropErr != nil {
			a.logger.Error("drop unqueryable view failed", "view", name, "error", dropErr)
		}
		return false
	}

	a.logger.Info("view created", "view", name, "replaced", len(variants))
	return true
}

// probeView checks that a view can answer a zero-row select. Caller
// holds the mutex.
func (a *Adapter) probeView(ctx context.Context, name string) error {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(name)))
	if err != nil {
		return err
	}
	defer rows.Close()
	return rows.Err()
}

// viewVariants returns existing view names that match name
// case-insensitively. Caller holds the mutex.
func (a *Adapter) viewVariants(ctx context.Context, name string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'view' AND lower(name) = lower(?)", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// ListViews returns all view names in the connection scope.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, backend.ErrNotConnected
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'view' ORDER BY name")
	if err != nil {
		return nil, backend.NewExecutionError("list views", err)
	}
	defer rows.Close()

	views := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, backend.NewExecutionError("list views", err)
		}
		views = append(views, name)
	}
	return views, rows.Err()
}

// CheckViewExists reports whether a view exists, case-insensitively.
func (a *Adapter) CheckViewExists(ctx context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return false, backend.ErrNotConnected
	}

	var count int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND lower(name) = lower(?)", name,
	).Scan(&count)
	if err != nil {
		return false, backend.NewExecutionError("check view", err)
	}
	return count > 0, nil
}

// RegisterDataSource ingests a CSV file as a table named src.Name. The
// first record supplies column names; all values are stored as text.
func (a *Adapter) RegisterDataSource(ctx context.Context, src backend.SourceInfo) bool {
	if !strings.EqualFold(src.Format, "csv") {
		a.logger.Warn("unsupported source format", "format", src.Format, "source", src.Name)
		return false
	}

	f, err := os.Open(src.Path)
	if err != nil {
		a.logger.Error("open source failed", "path", src.Path, "error", err)
		return false
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		a.logger.Error("parse csv failed", "path", src.Path, "error", err)
		return false
	}
	if len(records) == 0 {
		a.logger.Warn("source file is empty", "path", src.Path)
		return false
	}
	header, data := records[0], records[1:]

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		a.logger.Error("register source on disconnected backend", "source", src.Name)
		return false
	}

	if err := a.loadTable(ctx, src.Name, header, data); err != nil {
		a.logger.Error("load source failed", "source", src.Name, "error", err)
		return false
	}

	a.logger.Info("source registered", "source", src.Name, "rows", len(data))
	return true
}

// loadTable drops and recreates a table with text columns, then inserts
// all rows in one transaction. Caller holds the mutex.
func (a *Adapter) loadTable(ctx context.Context, name string, header []string, data [][]string) error {
	quoted := make([]string, len(header))
	for i, col := range header {
		quoted[i] = quoteIdent(col) + " TEXT"
	}

	if _, err := a.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(quoted, ", "))
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(header)), ",")
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range data {
		args := make([]any, len(header))
		for i := range header {
			if i < len(record) {
				args[i] = record[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// ValidateSQL enforces the read-only policy: the statement must begin
// with SELECT and hit nothing on the denylist. This is the sole
// enforcement point for the read-only guarantee on this adapter.
func (a *Adapter) ValidateSQL(sql string) (bool, string) {
	return a.policy.Validate(sql)
}

// Metadata returns the adapter status map.
func (a *Adapter) Metadata() map[string]any {
	return map[string]any{
		"backend_type": "sqlite",
		"path":         a.path,
		"connected":    a.Connected(),
		"max_rows":     a.maxRows,
	}
}

// CreateFallbackViews materializes deterministic synthetic data for the
// given required view names: a backing table per name, filled from the
// documented fallback schema, fronted by a view. A single name's failure
// does not abort the rest.
func (a *Adapter) CreateFallbackViews(ctx context.Context, names []string) map[string]bool {
	results := make(map[string]bool, len(names))
	for _, name := range names {
		results[name] = a.createFallbackView(ctx, name)
	}
	return results
}

func (a *Adapter) createFallbackView(ctx context.Context, name string) bool {
	schema := backend.FallbackSchemaFor(name)
	table := "fallback_" + sanitizeName(name)

	a.mu.Lock()
	if a.db == nil {
		a.mu.Unlock()
		a.logger.Error("fallback view on disconnected backend", "view", name)
		return false
	}
	err := a.loadTypedTable(ctx, table, schema)
	a.mu.Unlock()
	if err != nil {
		a.logger.Error("create fallback table failed", "view", name, "error", err)
		return false
	}

	if !a.CreateView(ctx, name, "SELECT * FROM "+quoteIdent(table), true) {
		return false
	}
	a.logger.Info("fallback view created", "view", name, "rows", len(schema.Rows))
	return true
}

// loadTypedTable creates a table whose column affinities follow the Go
// types of the first fallback row. Caller holds the mutex.
func (a *Adapter) loadTypedTable(ctx context.Context, table string, schema backend.FallbackSchema) error {
	cols := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		cols[i] = quoteIdent(col) + " " + sqliteAffinity(schema, i)
	}

	if _, err := a.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(schema.Columns)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders)
	for _, row := range schema.Rows {
		if _, err := a.db.ExecContext(ctx, insert, row...); err != nil {
			return fmt.Errorf("insert fallback row: %w", err)
		}
	}
	return nil
}

// sqliteAffinity picks a column affinity from the first row's Go type.
func sqliteAffinity(schema backend.FallbackSchema, col int) string {
	if len(schema.Rows) == 0 {
		return "TEXT"
	}
	switch schema.Rows[0][col].(type) {
	case float64, float32:
		return "REAL"
	case int, int32, int64:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sanitizeName maps a view name onto a safe backing-table suffix.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
