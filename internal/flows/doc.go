// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function takes a dependency struct of plain funcs and returns a
// result, so flows can be tested without Redis or a database. Ownership of
// the token manager, the stores, metrics and audit stays with the Engine.
//
// This package must not import the root package; records that cross the
// boundary have flow-local shapes.
package flows
