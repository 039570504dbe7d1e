package backend

import (
	"context"
)

// Backend is the contract every storage engine adapter implements.
//
// Lifecycle: Disconnected -> Connected -> Disconnected. Connect and
// Metadata may be called in any state; every other operation requires
// Connected and returns ErrNotConnected (or false for the boolean
// operations) otherwise.
//
// Adapters differ in how native failures surface from ExecuteQuery: some
// drivers raise, some hand back empty result sets. The gateway is the
// single place that normalizes this into the canonical response envelope;
// adapters only promise that a non-nil *QueryResult satisfies the shape
// invariant (see QueryResult.Validate).
type Backend interface {
	// Connect establishes the backend connection. Recoverable failures are
	// logged and reported as false, never raised.
	Connect(ctx context.Context) bool

	// Disconnect releases the connection. Idempotent.
	Disconnect() bool

	// Connected reports whether the adapter holds a live connection.
	Connected() bool

	// ExecuteQuery runs a single statement and returns the canonical
	// tabular result. txID is a correlation identifier for log tracing,
	// not a database transaction.
	ExecuteQuery(ctx context.Context, sql string, params []any, txID string) (*QueryResult, error)

	// CreateView performs an idempotent upsert of a named view. Engines
	// without view support return false rather than raising.
	CreateView(ctx context.Context, name, sql string, replace bool) bool

	// ListViews returns the names of views visible in the connection scope.
	ListViews(ctx context.Context) ([]string, error)

	// CheckViewExists reports whether a view with the given name exists.
	CheckViewExists(ctx context.Context, name string) (bool, error)

	// RegisterDataSource ingests an external source (e.g. a CSV file) as a
	// queryable table. Meaningful only for file-ingesting engines; a no-op
	// false elsewhere.
	RegisterDataSource(ctx context.Context, src SourceInfo) bool

	// ValidateSQL enforces the engine-local read-only policy. Returns
	// (false, reason) for statements that must never reach the engine.
	ValidateSQL(sql string) (bool, string)

	// Metadata returns a status map describing the adapter and its
	// connection. Callable in any state.
	Metadata() map[string]any

	// CreateFallbackViews synthesizes deterministic-shaped sample data for
	// the given required view names. Returns per-name success.
	CreateFallbackViews(ctx context.Context, names []string) map[string]bool
}

// Upserter is an optional capability for adapters that persist records
// into a hybrid schema (typed core columns plus a JSON payload column).
// Only the pooled relational adapter implements it.
type Upserter interface {
	// UpsertRecord inserts or updates a record keyed by keyFields.
	UpsertRecord(ctx context.Context, table string, keyFields []string, core map[string]any, payload map[string]any) error
}

// SourceInfo describes an external data source for RegisterDataSource.
type SourceInfo struct {
	// Name is the table name the source is registered under.
	Name string

	// Path is the filesystem location of the source file.
	Path string

	// Format identifies the file format. Only "csv" is supported.
	Format string
}
