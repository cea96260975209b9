// Package library models versioned library concepts: roots with an
// append-only chain of immutable values, HAS_VERSION edges carrying
// status/version/validity windows, LATEST* pointers and typed links between
// values. It holds the ordering, lifecycle and dedup rules; it performs no I/O.
package library
