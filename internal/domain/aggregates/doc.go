// Package aggregates defines domain-facing aggregate contracts for versioned
// library concepts.
//
// The contracts avoid persistence and transport details; each write method is
// a semantic boundary whose invariants hold atomically.
package aggregates
