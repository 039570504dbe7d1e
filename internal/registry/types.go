// Package registry holds the declarative data-product and view
// definitions the gateway bootstraps from, and the ordered chain of
// loaders that resolves them (contract file, then registry file, then
// hardcoded defaults).
package registry

import (
	"fmt"
	"strings"
)

// DataProductDefinition describes one named, governed virtual dataset.
// Definitions are immutable once loaded; a reload replaces the whole set
// atomically.
type DataProductDefinition struct {
	// ID uniquely identifies the data product.
	ID string

	// PrimaryTable is the table or view queries against this product
	// target by default.
	PrimaryTable string

	// Description is free-form documentation for consumers.
	Description string

	// GovernanceLevel annotates responses; it never alters query
	// semantics ("public", "internal", "restricted").
	GovernanceLevel string

	// KPIDefinition optionally names the KPI this product backs.
	KPIDefinition string
}

// ViewDefinition declares one named virtual table and its backing SQL.
type ViewDefinition struct {
	// Name is unique within a connection scope, case-insensitively.
	Name string

	// SQL is the backing SELECT statement.
	SQL string

	// SourceProductID links the view to the data product it serves.
	SourceProductID string
}

// Set is an immutable collection of definitions produced by one loader.
// Construct via NewSet; the input slices are copied.
type Set struct {
	source   string
	products []DataProductDefinition
	views    []ViewDefinition

	productsByID map[string]DataProductDefinition
	viewsByName  map[string]ViewDefinition
}

// NewSet validates and freezes a definition set. Validation is done once
// here so consumers never probe field presence per access.
func NewSet(source string, products []DataProductDefinition, views []ViewDefinition) (*Set, error) {
	s := &Set{
		source:       source,
		products:     make([]DataProductDefinition, len(products)),
		views:        make([]ViewDefinition, len(views)),
		productsByID: make(map[string]DataProductDefinition, len(products)),
		viewsByName:  make(map[string]ViewDefinition, len(views)),
	}
	copy(s.products, products)
	copy(s.views, views)

	for _, p := range s.products {
		if p.ID == "" {
			return nil, fmt.Errorf("data product with empty id in %s", source)
		}
		if _, dup := s.productsByID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate data product id %q in %s", p.ID, source)
		}
		s.productsByID[p.ID] = p
	}

	for _, v := range s.views {
		if v.Name == "" {
			return nil, fmt.Errorf("view with empty name in %s", source)
		}
		if v.SQL == "" {
			return nil, fmt.Errorf("view %q has empty sql in %s", v.Name, source)
		}
		key := strings.ToLower(v.Name)
		if _, dup := s.viewsByName[key]; dup {
			return nil, fmt.Errorf("duplicate view name %q in %s", v.Name, source)
		}
		s.viewsByName[key] = v
	}

	return s, nil
}

// Source names the loader that produced this set ("contract",
// "registry", or "defaults").
func (s *Set) Source() string { return s.source }

// Empty reports whether the set declares nothing.
func (s *Set) Empty() bool { return len(s.products) == 0 && len(s.views) == 0 }

// Products returns the product definitions in declaration order.
func (s *Set) Products() []DataProductDefinition { return s.products }

// Views returns the view definitions in declaration order.
func (s *Set) Views() []ViewDefinition { return s.views }

// ProductByID looks up a data product.
func (s *Set) ProductByID(id string) (DataProductDefinition, bool) {
	p, ok := s.productsByID[id]
	return p, ok
}

// ViewByName looks up a view definition, case-insensitively.
func (s *Set) ViewByName(name string) (ViewDefinition, bool) {
	v, ok := s.viewsByName[strings.ToLower(name)]
	return v, ok
}

// RequiredViews returns the fixed set of analytic view names downstream
// consumers depend on. Any of these missing after bootstrap triggers
// fallback synthesis.
func RequiredViews() []string {
	return []string{"FI_Star_View", "CO_Star_View", "MM_Star_View"}
}
