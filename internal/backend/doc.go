// Package backend defines the contract every storage engine adapter must
// satisfy, the canonical tabular result shape, the query error taxonomy,
// and the factory that maps backend type names to adapter constructors.
//
// Adapters live in subpackages (sqlite, postgres, warehouse) and register
// themselves with the factory in their init functions, the same way
// database/sql drivers do. The gateway imports the adapter packages it
// wants available and asks the factory for an instance by type name.
//
// The contract's core value is the cross-adapter invariant: ExecuteQuery
// always yields an ordered column name list, a sequence of fixed-width row
// tuples, and a row count, no matter what the native driver returns.
package backend
