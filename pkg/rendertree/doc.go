// Package rendertree defines the contract between the transition engine and
// an externally-owned render tree. The engine never owns node lifetime: nodes
// are addressed through opaque NodeID handles, and every accessor reports
// whether the node still exists so callers can skip work for nodes that
// disappeared mid-transition.
//
// The memtree subpackage provides a complete in-memory implementation used by
// tests and the glaze CLI.
package rendertree
