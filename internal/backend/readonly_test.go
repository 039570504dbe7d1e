package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnlyPolicy_AcceptsSelect(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	ok, msg := policy.Validate("SELECT 1")
	require.True(t, ok, msg)
	assert.Empty(t, msg)
}

func TestReadOnlyPolicy_AcceptsLowercaseAndLeadingWhitespace(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	ok, _ := policy.Validate("  \n\tselect * from FI_Star_View")
	assert.True(t, ok)
}

func TestReadOnlyPolicy_RejectsWriteStatements(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	cases := []struct {
		sql     string
		keyword string
	}{
		{"DELETE FROM orders", "DELETE"},
		{"DROP TABLE orders", "DROP"},
		{"UPDATE orders SET total = 0", "UPDATE"},
		{"INSERT INTO orders VALUES (1)", "INSERT"},
		{"TRUNCATE orders", "TRUNCATE"},
	}

	for _, tc := range cases {
		ok, msg := policy.Validate(tc.sql)
		assert.False(t, ok, tc.sql)
		assert.Contains(t, msg, "only select statements")
		assert.Contains(t, msg, tc.keyword)
	}
}

func TestReadOnlyPolicy_RejectsEmptyStatement(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	ok, msg := policy.Validate("   ")
	assert.False(t, ok)
	assert.Contains(t, msg, "statement is empty")
}

func TestReadOnlyPolicy_RejectsEmbeddedWriteKeyword(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	// A SELECT that smuggles a write after a semicolon still trips the denylist.
	ok, msg := policy.Validate("SELECT 1; DROP TABLE orders")
	assert.False(t, ok)
	assert.Contains(t, msg, "DROP")
}

func TestReadOnlyPolicy_KeywordsInsideLiteralsAreIgnored(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	ok, msg := policy.Validate("SELECT 'please DROP nothing' AS note")
	assert.True(t, ok, msg)

	ok, msg = policy.Validate(`SELECT "Delete Flag" FROM audit_log`)
	assert.True(t, ok, msg)
}

func TestReadOnlyPolicy_KeywordsInsideCommentsAreIgnored(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	ok, msg := policy.Validate("SELECT 1 -- TODO DROP this later\n")
	assert.True(t, ok, msg)

	ok, msg = policy.Validate("SELECT /* never UPDATE */ 1")
	assert.True(t, ok, msg)
}

func TestReadOnlyPolicy_ColumnNamesDoNotTripDenylist(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, nil)

	// Word-boundary matching: update_date is not UPDATE.
	ok, msg := policy.Validate("SELECT update_date, created_by FROM audit_log")
	assert.True(t, ok, msg)
}

func TestReadOnlyPolicy_WithClause(t *testing.T) {
	strict := NewReadOnlyPolicy(true, false, nil)
	relaxed := NewReadOnlyPolicy(true, true, nil)

	sql := "WITH t AS (SELECT 1 AS n) SELECT n FROM t"

	ok, msg := strict.Validate(sql)
	assert.False(t, ok)
	assert.Contains(t, msg, "WITH")

	ok, msg = relaxed.Validate(sql)
	assert.True(t, ok, msg)
}

func TestReadOnlyPolicy_DenylistOnly(t *testing.T) {
	// requireSelect off: non-SELECT leading keyword is fine as long as the
	// denylist stays clean.
	policy := NewReadOnlyPolicy(false, false, nil)

	ok, msg := policy.Validate("EXPLAIN SELECT 1")
	assert.True(t, ok, msg)

	ok, _ = policy.Validate("DELETE FROM orders")
	assert.False(t, ok)
}

func TestReadOnlyPolicy_CustomDenylist(t *testing.T) {
	policy := NewReadOnlyPolicy(true, false, []string{"EXPORT"})

	ok, msg := policy.Validate("SELECT * FROM t EXPORT TO 'file'")
	assert.False(t, ok)
	assert.Contains(t, msg, "EXPORT")

	// Default entries are not active when a custom list is supplied.
	ok, _ = policy.Validate("SELECT vacuum FROM maintenance_log")
	assert.True(t, ok)
}

func TestStripLiteralsAndComments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single quotes", "SELECT 'DROP x' FROM t", "SELECT '' FROM t"},
		{"escaped quote", "SELECT 'it''s a DELETE' FROM t", "SELECT '' FROM t"},
		{"double quotes", `SELECT "Update Col" FROM t`, `SELECT "" FROM t`},
		{"line comment", "SELECT 1 -- DROP\nFROM t", "SELECT 1 \nFROM t"},
		{"block comment", "SELECT /* UPDATE */ 1", "SELECT  1"},
		{"plain", "SELECT 1", "SELECT 1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripLiteralsAndComments(tc.in))
		})
	}
}

func TestLeadingKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", leadingKeyword("select * from t"))
	assert.Equal(t, "WITH", leadingKeyword("WITH t AS (SELECT 1) SELECT 1"))
	assert.Equal(t, "SELECT", leadingKeyword("SELECT(1)"))
	assert.Equal(t, "DELETE", leadingKeyword("DELETE"))
}
