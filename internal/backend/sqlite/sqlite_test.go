package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/backend"
)

func newConnected(t *testing.T, maxRows int) *Adapter {
	t.Helper()
	b, err := New(backend.Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		MaxRows: maxRows,
	}, slog.Default())
	require.NoError(t, err)

	a := b.(*Adapter)
	require.True(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Disconnect() })
	return a
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(backend.Config{}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestConnect_Lifecycle(t *testing.T) {
	b, err := New(backend.Config{Path: filepath.Join(t.TempDir(), "lc.db")}, slog.Default())
	require.NoError(t, err)

	a := b.(*Adapter)
	assert.False(t, a.Connected())

	require.True(t, a.Connect(context.Background()))
	assert.True(t, a.Connected())

	// Connect is idempotent on a live handle.
	assert.True(t, a.Connect(context.Background()))

	assert.True(t, a.Disconnect())
	assert.False(t, a.Connected())
	// Disconnect is idempotent too.
	assert.True(t, a.Disconnect())
}

func TestExecuteQuery_RequiresConnection(t *testing.T) {
	b, err := New(backend.Config{Path: filepath.Join(t.TempDir(), "nc.db")}, slog.Default())
	require.NoError(t, err)

	_, err = b.ExecuteQuery(context.Background(), "SELECT 1", nil, "tx-1")
	require.Error(t, err)
	assert.True(t, backend.IsConnectionError(err))
}

func TestExecuteQuery_RoundTrip(t *testing.T) {
	a := newConnected(t, 0)
	csvPath := writeCSV(t, "orders.csv", "id,total\n1,10.5\n2,20.0\n")

	ok := a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "orders", Path: csvPath, Format: "csv",
	})
	require.True(t, ok)

	res, err := a.ExecuteQuery(context.Background(), "SELECT id, total FROM orders ORDER BY id", nil, "tx-1")
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Equal(t, []string{"id", "total"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, "1", res.Rows[0][0])
	assert.Positive(t, res.Elapsed)
}

func TestExecuteQuery_Parameters(t *testing.T) {
	a := newConnected(t, 0)
	csvPath := writeCSV(t, "items.csv", "sku,qty\nA,1\nB,2\nC,3\n")
	require.True(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "items", Path: csvPath, Format: "csv",
	}))

	res, err := a.ExecuteQuery(context.Background(),
		"SELECT sku FROM items WHERE sku = ?", []any{"B"}, "tx-2")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "B", res.Rows[0][0])
}

func TestExecuteQuery_TruncatesAtMaxRows(t *testing.T) {
	a := newConnected(t, 2)
	csvPath := writeCSV(t, "many.csv", "n\n1\n2\n3\n4\n5\n")
	require.True(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "many", Path: csvPath, Format: "csv",
	}))

	res, err := a.ExecuteQuery(context.Background(), "SELECT n FROM many", nil, "tx-3")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecuteQuery_MissingTableFails(t *testing.T) {
	a := newConnected(t, 0)

	_, err := a.ExecuteQuery(context.Background(), "SELECT * FROM nowhere", nil, "tx-4")
	require.Error(t, err)
	assert.Equal(t, backend.CodeExecution, backend.CodeOf(err))
	assert.Contains(t, err.Error(), "no such table")
}

func TestCreateView_Idempotent(t *testing.T) {
	a := newConnected(t, 0)

	require.True(t, a.CreateView(context.Background(), "V_Test", "SELECT 1 AS n", true))
	require.True(t, a.CreateView(context.Background(), "V_Test", "SELECT 2 AS n", true))

	views, err := a.ListViews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"V_Test"}, views)

	// Replace took effect: querying yields the second definition.
	res, err := a.ExecuteQuery(context.Background(), `SELECT n FROM "V_Test"`, nil, "tx-5")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.EqualValues(t, 2, res.Rows[0][0])
}

func TestCreateView_DropsCaseVariants(t *testing.T) {
	a := newConnected(t, 0)

	require.True(t, a.CreateView(context.Background(), "fi_star_view", "SELECT 1 AS n", true))
	require.True(t, a.CreateView(context.Background(), "FI_Star_View", "SELECT 2 AS n", true))

	views, err := a.ListViews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"FI_Star_View"}, views)
}

func TestCreateView_NoReplaceKeepsExisting(t *testing.T) {
	a := newConnected(t, 0)

	require.True(t, a.CreateView(context.Background(), "V_Keep", "SELECT 1 AS n", true))
	require.True(t, a.CreateView(context.Background(), "V_Keep", "SELECT 2 AS n", false))

	res, err := a.ExecuteQuery(context.Background(), `SELECT n FROM "V_Keep"`, nil, "tx-6")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Rows[0][0])
}

func TestCreateView_DropsUnqueryableDefinition(t *testing.T) {
	a := newConnected(t, 0)

	// The engine accepts a view over a missing table; the probe catches it
	// so the name stays available for fallback synthesis.
	assert.False(t, a.CreateView(context.Background(), "V_Broken",
		"SELECT * FROM table_that_does_not_exist", true))

	exists, err := a.CheckViewExists(context.Background(), "V_Broken")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCheckViewExists_CaseInsensitive(t *testing.T) {
	a := newConnected(t, 0)
	require.True(t, a.CreateView(context.Background(), "MM_Star_View", "SELECT 1 AS n", true))

	exists, err := a.CheckViewExists(context.Background(), "mm_star_view")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.CheckViewExists(context.Background(), "No_Such_View")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegisterDataSource_RejectsNonCSV(t *testing.T) {
	a := newConnected(t, 0)
	assert.False(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "x", Path: "x.parquet", Format: "parquet",
	}))
}

func TestRegisterDataSource_MissingFile(t *testing.T) {
	a := newConnected(t, 0)
	assert.False(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "x", Path: filepath.Join(t.TempDir(), "absent.csv"), Format: "csv",
	}))
}

func TestRegisterDataSource_ReplacesExistingTable(t *testing.T) {
	a := newConnected(t, 0)

	first := writeCSV(t, "v1.csv", "id\n1\n2\n")
	require.True(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "reload", Path: first, Format: "csv",
	}))

	second := writeCSV(t, "v2.csv", "id\n9\n")
	require.True(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "reload", Path: second, Format: "csv",
	}))

	res, err := a.ExecuteQuery(context.Background(), "SELECT id FROM reload", nil, "tx-7")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "9", res.Rows[0][0])
}

func TestCreateFallbackViews_Queryable(t *testing.T) {
	a := newConnected(t, 0)

	results := a.CreateFallbackViews(context.Background(),
		[]string{"FI_Star_View", "CO_Star_View", "MM_Star_View"})
	require.Len(t, results, 3)
	for name, ok := range results {
		assert.True(t, ok, name)
	}

	res, err := a.ExecuteQuery(context.Background(),
		`SELECT SUM("Transaction Value Amount") FROM "FI_Star_View"`, nil, "tx-8")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.InDelta(t, 500.00, res.Rows[0][0].(float64), 0.001)
}

func TestFinancialAggregationScenario(t *testing.T) {
	a := newConnected(t, 0)

	csvPath := writeCSV(t, "fi.csv",
		"Transaction ID,Transaction Value Amount\nT-1,100.00\nT-2,250.50\nT-3,149.50\n")
	require.True(t, a.RegisterDataSource(context.Background(), backend.SourceInfo{
		Name: "FinancialTransactions", Path: csvPath, Format: "csv",
	}))
	require.True(t, a.CreateView(context.Background(), "FI_Star_View",
		`SELECT * FROM "FinancialTransactions"`, true))

	res, err := a.ExecuteQuery(context.Background(),
		`SELECT SUM("Transaction Value Amount") AS total FROM "FI_Star_View"`, nil, "tx-9")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.InDelta(t, 500.00, res.Rows[0][0].(float64), 0.001)
}

func TestValidateSQL(t *testing.T) {
	a := newConnected(t, 0)

	ok, _ := a.ValidateSQL("SELECT 1")
	assert.True(t, ok)

	ok, msg := a.ValidateSQL("DELETE FROM orders")
	assert.False(t, ok)
	assert.Contains(t, msg, "only select statements")

	// WITH stays off for the embedded engine.
	ok, _ = a.ValidateSQL("WITH t AS (SELECT 1) SELECT * FROM t")
	assert.False(t, ok)
}

func TestMetadata(t *testing.T) {
	a := newConnected(t, 100)

	meta := a.Metadata()
	assert.Equal(t, "sqlite", meta["backend_type"])
	assert.Equal(t, true, meta["connected"])
	assert.Equal(t, 100, meta["max_rows"])
}
