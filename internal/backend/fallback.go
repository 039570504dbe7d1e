package backend

// FallbackSchema is the deterministic shape of a synthesized view. The
// columns and rows are fixed so tests and demos see stable data whenever
// the authoritative source is unavailable.
type FallbackSchema struct {
	Columns []string
	Rows    [][]any
}

// fallbackSchemas maps the required analytic view names to documented
// synthetic shapes. The FI view mirrors the financial-transaction star
// schema downstream consumers aggregate over; CO and MM mirror the
// controlling and material views.
var fallbackSchemas = map[string]FallbackSchema{
	"FI_Star_View": {
		Columns: []string{
			"Transaction ID", "Posting Date", "Company Code",
			"Account Number", "Transaction Value Amount", "Currency",
		},
		Rows: [][]any{
			{"FB-FI-0001", "2025-01-15", "1000", "400100", 100.00, "USD"},
			{"FB-FI-0002", "2025-01-16", "1000", "400200", 250.50, "USD"},
			{"FB-FI-0003", "2025-01-17", "2000", "400100", 149.50, "USD"},
		},
	},
	"CO_Star_View": {
		Columns: []string{
			"Cost Document ID", "Cost Center", "Cost Element",
			"Cost Value Amount", "Fiscal Period",
		},
		Rows: [][]any{
			{"FB-CO-0001", "CC-100", "CE-5100", 75.25, "2025-01"},
			{"FB-CO-0002", "CC-200", "CE-5200", 310.00, "2025-01"},
		},
	},
	"MM_Star_View": {
		Columns: []string{
			"Material Document ID", "Material Number", "Plant",
			"Quantity", "Movement Type",
		},
		Rows: [][]any{
			{"FB-MM-0001", "MAT-001", "PL01", 12.0, "101"},
			{"FB-MM-0002", "MAT-002", "PL01", 4.0, "261"},
		},
	},
}

// defaultFallbackSchema serves view names with no dedicated shape.
var defaultFallbackSchema = FallbackSchema{
	Columns: []string{"Record ID", "Description", "Value Amount", "Created Date"},
	Rows: [][]any{
		{"FB-0001", "synthetic fallback record", 1.0, "2025-01-01"},
		{"FB-0002", "synthetic fallback record", 2.0, "2025-01-02"},
	},
}

// FallbackSchemaFor returns the synthetic shape for a required view name,
// falling back to a generic four-column schema for unknown names.
func FallbackSchemaFor(name string) FallbackSchema {
	if s, ok := fallbackSchemas[name]; ok {
		return s
	}
	return defaultFallbackSchema
}
