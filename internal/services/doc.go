// Package services holds the application layer: ReceiptService owns the
// canonical record set and runs the load, scan, sync and export flows over
// the local store, the optional remote tier and the ingest pipeline.
package services
