package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// ContractLoader reads data products and views from a declarative CUE
// contract file. The contract is the highest-precedence source.
//
// Expected shape:
//
//	product: dp_fi_transactions: {
//		primary_table:    "FI_Star_View"
//		description:      "Financial transaction line items"
//		governance_level: "restricted"
//		kpi_definition?:  "total_transaction_value"
//	}
//	view: FI_Star_View: {
//		sql:            "SELECT * FROM FinancialTransactions"
//		source_product: "dp_fi_transactions"
//	}
type ContractLoader struct {
	// Path locates the contract file. Empty means no contract configured.
	Path string
}

// cueProduct mirrors a product entry; field names follow the contract's
// snake_case keys.
type cueProduct struct {
	PrimaryTable    string `json:"primary_table"`
	Description     string `json:"description"`
	GovernanceLevel string `json:"governance_level"`
	KPIDefinition   string `json:"kpi_definition"`
}

// cueView mirrors a view entry.
type cueView struct {
	SQL           string `json:"sql"`
	SourceProduct string `json:"source_product"`
}

// Name identifies the loader.
func (l ContractLoader) Name() string { return "contract" }

// Load builds and decodes the CUE contract. A missing path or file is an
// error the chain treats as non-fatal.
func (l ContractLoader) Load() (*Set, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("no contract path configured")
	}
	if _, err := os.Stat(l.Path); err != nil {
		return nil, fmt.Errorf("contract file: %w", err)
	}

	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve contract path: %w", err)
	}

	cfg := &load.Config{Dir: filepath.Dir(abs)}
	instances := load.Instances([]string{filepath.Base(abs)}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", l.Path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading contract: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building contract value: %w", err)
	}

	var products []DataProductDefinition
	productsVal := value.LookupPath(cue.ParsePath("product"))
	if productsVal.Exists() {
		iter, err := productsVal.Fields()
		if err != nil {
			return nil, fmt.Errorf("iterating products: %w", err)
		}
		for iter.Next() {
			var p cueProduct
			if err := iter.Value().Decode(&p); err != nil {
				return nil, fmt.Errorf("decoding product %q: %w", iter.Selector().String(), err)
			}
			products = append(products, DataProductDefinition{
				ID:              iter.Selector().Unquoted(),
				PrimaryTable:    p.PrimaryTable,
				Description:     p.Description,
				GovernanceLevel: p.GovernanceLevel,
				KPIDefinition:   p.KPIDefinition,
			})
		}
	}

	var views []ViewDefinition
	viewsVal := value.LookupPath(cue.ParsePath("view"))
	if viewsVal.Exists() {
		iter, err := viewsVal.Fields()
		if err != nil {
			return nil, fmt.Errorf("iterating views: %w", err)
		}
		for iter.Next() {
			var v cueView
			if err := iter.Value().Decode(&v); err != nil {
				return nil, fmt.Errorf("decoding view %q: %w", iter.Selector().String(), err)
			}
			views = append(views, ViewDefinition{
				Name:            iter.Selector().Unquoted(),
				SQL:             v.SQL,
				SourceProductID: v.SourceProduct,
			})
		}
	}

	return NewSet("contract", products, views)
}
