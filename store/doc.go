// Package store persists trigger rules and the dedup log in SQLite.
//
// The dedup log is the idempotency ledger: TryClaim's insert-if-absent is
// atomic per rule id and is the sole serialization point between
// overlapping evaluation ticks.
package store
