// Package reconcile merges the local and remote record snapshots into the
// canonical set.
//
// # Merge rules
//
// Records are keyed by ID. Local records are inserted first, then remote
// records; a remote record replaces a local one with the same ID and is
// always marked synced. The result is ordered by transaction date, newest
// first.
//
// # Date order
//
// Dates are parsed with the layouts in dateLayouts. Parsed dates sort before
// unparseable or empty ones; unparseable dates sort among themselves by their
// raw string, descending. Remaining ties keep insertion order.
package reconcile
