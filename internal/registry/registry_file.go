package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryLoader reads data products and views from a YAML registry
// file. It sits between the contract and the defaults in the chain.
//
// Expected shape:
//
//	products:
//	  - id: dp_fi_transactions
//	    primary_table: FI_Star_View
//	    description: Financial transaction line items
//	    governance_level: restricted
//	    kpi_definition: total_transaction_value
//	views:
//	  - name: FI_Star_View
//	    sql: SELECT * FROM FinancialTransactions
//	    source_product: dp_fi_transactions
type RegistryLoader struct {
	// Path locates the registry file. Empty means no registry configured.
	Path string
}

// registryFile is the YAML document shape.
type registryFile struct {
	Products []registryProduct `yaml:"products"`
	Views    []registryView    `yaml:"views"`
}

type registryProduct struct {
	ID              string `yaml:"id"`
	PrimaryTable    string `yaml:"primary_table"`
	Description     string `yaml:"description"`
	GovernanceLevel string `yaml:"governance_level"`
	KPIDefinition   string `yaml:"kpi_definition,omitempty"`
}

type registryView struct {
	Name          string `yaml:"name"`
	SQL           string `yaml:"sql"`
	SourceProduct string `yaml:"source_product,omitempty"`
}

// Name identifies the loader.
func (l RegistryLoader) Name() string { return "registry" }

// Load parses the YAML registry. Missing or malformed files are errors
// the chain treats as non-fatal.
func (l RegistryLoader) Load() (*Set, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("no registry path configured")
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", l.Path, err)
	}

	products := make([]DataProductDefinition, 0, len(file.Products))
	for _, p := range file.Products {
		products = append(products, DataProductDefinition{
			ID:              p.ID,
			PrimaryTable:    p.PrimaryTable,
			Description:     p.Description,
			GovernanceLevel: p.GovernanceLevel,
			KPIDefinition:   p.KPIDefinition,
		})
	}

	views := make([]ViewDefinition, 0, len(file.Views))
	for _, v := range file.Views {
		views = append(views, ViewDefinition{
			Name:            v.Name,
			SQL:             v.SQL,
			SourceProductID: v.SourceProduct,
		})
	}

	return NewSet("registry", products, views)
}
