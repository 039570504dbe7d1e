// Package postgres implements the backend contract over a pooled
// relational server using pgx.
//
// The connection is a bounded async pool, so true concurrent in-flight
// queries are supported up to pool capacity. Besides serving analytic
// reads, this adapter doubles as a metadata/config store: UpsertRecord
// persists into a hybrid schema where typed core columns coexist with a
// JSONB payload column. The read-only policy here is denylist-only for
// that reason.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/strata/internal/backend"
)

func init() {
	backend.Register("postgres", New)
}

// Adapter is the pooled relational adapter.
type Adapter struct {
	mu      sync.RWMutex
	pool    *pgxpool.Pool
	cfg     backend.Config
	maxRows int
	policy  backend.ReadOnlyPolicy
	logger  *slog.Logger
}

// New creates an unconnected adapter from connection parameters.
func New(cfg backend.Config, logger *slog.Logger) (backend.Backend, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("postgres backend requires host and database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:     cfg,
		maxRows: cfg.MaxRows,
		policy:  backend.NewReadOnlyPolicy(false, false, nil),
		logger:  logger.With("backend", "postgres"),
	}, nil
}

// dsn renders the pool connection string from config.
func (a *Adapter) dsn() string {
	port := a.cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		a.cfg.User, a.cfg.Password, a.cfg.Host, port, a.cfg.Database)
}

// Connect builds the bounded pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool != nil {
		return true
	}

	poolCfg, err := pgxpool.ParseConfig(a.dsn())
	if err != nil {
		a.logger.Error("parse pool config failed", "error", err)
		return false
	}
	if a.cfg.PoolMinConns > 0 {
		poolCfg.MinConns = a.cfg.PoolMinConns
	}
	if a.cfg.PoolMaxConns > 0 {
		poolCfg.MaxConns = a.cfg.PoolMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		a.logger.Error("create pool failed", "error", err)
		return false
	}
	if err := pool.Ping(ctx); err != nil {
		a.logger.Error("connect failed", "host", a.cfg.Host, "database", a.cfg.Database, "error", err)
		pool.Close()
		return false
	}

	a.pool = pool
	a.logger.Info("connected",
		"host", a.cfg.Host,
		"database", a.cfg.Database,
		"max_conns", poolCfg.MaxConns,
	)
	return true
}

// Disconnect closes the pool. Idempotent.
func (a *Adapter) Disconnect() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool == nil {
		return true
	}
	a.pool.Close()
	a.pool = nil
	return true
}

// Connected reports whether the pool is live.
func (a *Adapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool != nil
}

// livePool returns the pool or ErrNotConnected. Queries take the read
// lock only for the handle lookup; execution itself runs concurrently.
func (a *Adapter) livePool() (*pgxpool.Pool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.pool == nil {
		return nil, backend.ErrNotConnected
	}
	return a.pool, nil
}

// ExecuteQuery runs one statement on a pooled connection and converts
// pgx field descriptions and row values into the canonical shape.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params []any, txID string) (*backend.QueryResult, error) {
	pool, err := a.livePool()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := pool.Query(ctx, query, params...)
	if err != nil {
		return nil, backend.NewExecutionError(query, err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	result := backend.EmptyResult(cols)
	for rows.Next() {
		if a.maxRows > 0 && len(result.Rows) >= a.maxRows {
			result.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, backend.NewExecutionError(query, err)
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, backend.NewExecutionError(query, err)
	}
	result.RowCount = len(result.Rows)
	result.Elapsed = time.Since(start)

	a.logger.Debug("query executed",
		"tx_id", txID,
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// CreateView issues CREATE OR REPLACE VIEW; Postgres gives us the
// idempotent upsert natively.
func (a *Adapter) CreateView(ctx context.Context, name, query string, replace bool) bool {
	pool, err := a.livePool()
	if err != nil {
		a.logger.Error("create view on disconnected backend", "view", name)
		return false
	}

	verb := "CREATE OR REPLACE VIEW"
	if !replace {
		verb = "CREATE VIEW"
	}
	ddl := fmt.Sprintf("%s %s AS %s", verb, quoteIdent(name), query)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		a.logger.Error("create view failed", "view", name, "error", err)
		return false
	}
	a.logger.Info("view created", "view", name)
	return true
}

// ListViews returns view names in the public schema.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	pool, err := a.livePool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		"SELECT table_name FROM information_schema.views WHERE table_schema = 'public' ORDER BY table_name")
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

// CheckViewExists reports whether a public-schema view exists.
func (a *Adapter) CheckViewExists(ctx context.Context, name string) (bool, error) {
	pool, err := a.livePool()
	if err != nil {
		return false, err
	}

	var count int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM information_schema.views WHERE table_schema = 'public' AND lower(table_name) = lower($1)",
		name,
	).Scan(&count)
	if err != nil {
		return false, backend.NewExecutionError("check view", err)
	}
	return count > 0, nil
}

// RegisterDataSource is a no-op: the relational server is not a
// file-ingesting engine.
func (a *Adapter) RegisterDataSource(ctx context.Context, src backend.SourceInfo) bool {
	a.logger.Debug("register data source is not supported", "source", src.Name)
	return false
}

// ValidateSQL enforces the denylist-only policy.
func (a *Adapter) ValidateSQL(sql string) (bool, string) {
	return a.policy.Validate(sql)
}

// Metadata returns the adapter status map, including pool stats when
// connected.
func (a *Adapter) Metadata() map[string]any {
	md := map[string]any{
		"backend_type": "postgres",
		"host":         a.cfg.Host,
		"database":     a.cfg.Database,
		"connected":    a.Connected(),
		"max_rows":     a.maxRows,
	}
	a.mu.RLock()
	if a.pool != nil {
		stat := a.pool.Stat()
		md["pool_total_conns"] = stat.TotalConns()
		md["pool_idle_conns"] = stat.IdleConns()
	}
	a.mu.RUnlock()
	return md
}

// CreateFallbackViews synthesizes each required view over an inline
// VALUES list, so no backing table is needed.
func (a *Adapter) CreateFallbackViews(ctx context.Context, names []string) map[string]bool {
	results := make(map[string]bool, len(names))
	for _, name := range names {
		schema := backend.FallbackSchemaFor(name)
		results[name] = a.CreateView(ctx, name, fallbackSelect(schema), true)
	}
	return results
}

// fallbackSelect renders "SELECT * FROM (VALUES ...) AS t(cols)" for a
// fallback schema. Values are literals, not parameters, because the text
// becomes part of a view definition.
func fallbackSelect(schema backend.FallbackSchema) string {
	cols := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		cols[i] = quoteIdent(col)
	}

	tuples := make([]string, len(schema.Rows))
	for i, row := range schema.Rows {
		vals := make([]string, len(row))
		for j, v := range row {
			vals[j] = literal(v)
		}
		tuples[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	return fmt.Sprintf("SELECT * FROM (VALUES %s) AS t(%s)",
		strings.Join(tuples, ", "), strings.Join(cols, ", "))
}

// literal renders a fallback value as a SQL literal.
func literal(v any) string {
	switch val := v.(type) {
	case float64, float32, int, int32, int64:
		return fmt.Sprintf("%v", val)
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}

// UpsertRecord inserts or updates one record in a hybrid-schema table:
// core columns are typed, payload lands in a JSONB column. Implements
// INSERT ... ON CONFLICT (key fields) DO UPDATE.
func (a *Adapter) UpsertRecord(ctx context.Context, table string, keyFields []string, core map[string]any, payload map[string]any) error {
	pool, err := a.livePool()
	if err != nil {
		return err
	}
	if len(keyFields) == 0 {
		return fmt.Errorf("upsert into %s requires at least one key field", table)
	}

	sql, args, err := buildUpsertSQL(table, keyFields, core, payload)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		return backend.NewExecutionError(sql, err)
	}

	a.logger.Debug("record upserted", "table", table, "keys", keyFields)
	return nil
}

// buildUpsertSQL renders the upsert statement and its argument list.
// Column order is sorted for deterministic SQL, which keeps tests and
// server-side statement caches stable.
func buildUpsertSQL(table string, keyFields []string, core map[string]any, payload map[string]any) (string, []any, error) {
	cols := make([]string, 0, len(core)+1)
	for col := range core {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols)+1)
	quoted := make([]string, 0, len(cols)+1)
	placeholders := make([]string, 0, len(cols)+1)
	for i, col := range cols {
		quoted = append(quoted, quoteIdent(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, core[col])
	}

	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return "", nil, fmt.Errorf("marshal payload: %w", err)
		}
		quoted = append(quoted, quoteIdent("payload"))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, string(blob))
	}

	keySet := make(map[string]bool, len(keyFields))
	conflict := make([]string, len(keyFields))
	for i, key := range keyFields {
		conflict[i] = quoteIdent(key)
		keySet[key] = true
	}

	updates := make([]string, 0, len(quoted))
	for _, col := range cols {
		if keySet[col] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(col), quoteIdent(col)))
	}
	if payload != nil {
		updates = append(updates, `"payload" = EXCLUDED."payload"`)
	}
	if len(updates) == 0 {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", conflict[0], conflict[0]))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflict, ", "),
		strings.Join(updates, ", "),
	)
	return sql, args, nil
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
