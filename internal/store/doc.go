// Package store provides the local tier: durable snapshot persistence of the
// full record set.
//
// # Semantics
//
// Load returns the whole snapshot in the order it was saved. Save replaces
// the whole snapshot; there are no partial or append writes. The local tier
// is always available, with or without a remote tier.
//
// Implementations
//
//   - SQLiteStore: modernc.org/sqlite database with goose migrations
//   - FileStore: single JSON document, written atomically
//
// Typical Usage
//
//	st, _ := store.Open(ctx, "sqlite", "receipts.db")
//	defer st.Close()
//	records, _ := st.Load(ctx)
//	_ = st.Save(ctx, records)
package store
