package registry

// Defaults returns the hardcoded minimal definition set. It backs the
// last link of the loader chain so bootstrap always exits with a
// queryable state, even with no contract or registry file on disk.
func Defaults() *Set {
	products := []DataProductDefinition{
		{
			ID:              "dp_fi_transactions",
			PrimaryTable:    "FI_Star_View",
			Description:     "Financial transaction line items",
			GovernanceLevel: "restricted",
			KPIDefinition:   "total_transaction_value",
		},
		{
			ID:              "dp_co_postings",
			PrimaryTable:    "CO_Star_View",
			Description:     "Controlling cost postings",
			GovernanceLevel: "internal",
		},
		{
			ID:              "dp_mm_movements",
			PrimaryTable:    "MM_Star_View",
			Description:     "Material movement documents",
			GovernanceLevel: "internal",
		},
	}
	views := []ViewDefinition{
		{Name: "FI_Star_View", SQL: "SELECT * FROM FinancialTransactions", SourceProductID: "dp_fi_transactions"},
		{Name: "CO_Star_View", SQL: "SELECT * FROM CostDocuments", SourceProductID: "dp_co_postings"},
		{Name: "MM_Star_View", SQL: "SELECT * FROM MaterialDocuments", SourceProductID: "dp_mm_movements"},
	}

	// Defaults are static and well-formed; a validation failure here is a
	// programming error.
	set, err := NewSet("defaults", products, views)
	if err != nil {
		panic("registry defaults are invalid: " + err.Error())
	}
	return set
}

// DefaultsLoader adapts Defaults to the Loader interface so it can sit
// at the end of a chain explicitly.
type DefaultsLoader struct{}

// Name identifies the loader.
func (DefaultsLoader) Name() string { return "defaults" }

// Load returns the hardcoded set; it cannot fail.
func (DefaultsLoader) Load() (*Set, error) { return Defaults(), nil }
