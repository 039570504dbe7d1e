package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContract(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestContractLoader_ParsesCUE(t *testing.T) {
	path := writeContract(t, `
product: dp_fi_transactions: {
	primary_table:    "FI_Star_View"
	description:      "Financial transaction line items"
	governance_level: "restricted"
	kpi_definition:   "total_transaction_value"
}

product: dp_co_postings: {
	primary_table:    "CO_Star_View"
	description:      "Controlling cost postings"
	governance_level: "internal"
}

view: FI_Star_View: {
	sql:            "SELECT * FROM FinancialTransactions"
	source_product: "dp_fi_transactions"
}
`)

	set, err := ContractLoader{Path: path}.Load()
	require.NoError(t, err)

	assert.Equal(t, "contract", set.Source())
	assert.Len(t, set.Products(), 2)

	p, ok := set.ProductByID("dp_fi_transactions")
	require.True(t, ok)
	assert.Equal(t, "FI_Star_View", p.PrimaryTable)
	assert.Equal(t, "restricted", p.GovernanceLevel)
	assert.Equal(t, "total_transaction_value", p.KPIDefinition)

	p, ok = set.ProductByID("dp_co_postings")
	require.True(t, ok)
	assert.Empty(t, p.KPIDefinition)

	v, ok := set.ViewByName("FI_Star_View")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM FinancialTransactions", v.SQL)
	assert.Equal(t, "dp_fi_transactions", v.SourceProductID)
}

func TestContractLoader_EmptyPath(t *testing.T) {
	_, err := ContractLoader{}.Load()
	require.Error(t, err)
}

func TestContractLoader_MissingFile(t *testing.T) {
	_, err := ContractLoader{Path: filepath.Join(t.TempDir(), "absent.cue")}.Load()
	require.Error(t, err)
}

func TestContractLoader_MalformedCUE(t *testing.T) {
	path := writeContract(t, `product: { unterminated`)

	_, err := ContractLoader{Path: path}.Load()
	require.Error(t, err)
}

func TestContractLoader_ContractWithoutViews(t *testing.T) {
	path := writeContract(t, `
product: dp_only: {
	primary_table:    "Only_View"
	description:      "no views declared"
	governance_level: "public"
}
`)

	set, err := ContractLoader{Path: path}.Load()
	require.NoError(t, err)
	assert.Len(t, set.Products(), 1)
	assert.Empty(t, set.Views())
}
