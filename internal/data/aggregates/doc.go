// Package aggregates implements the versioned library aggregate over a
// graphstore.Store.
//
// Each write method owns one store transaction: it closes the open version
// edge with a compare-and-set, decides value reuse, writes the new edge and
// links, repoints incoming references and moves the LATEST* pointers before
// committing. Read methods reconstruct a root as of a version or an instant.
package aggregates
