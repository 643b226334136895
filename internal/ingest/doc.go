// Package ingest turns an uploaded receipt image into a Record.
//
// The flow is OCR (an external HTTP service) followed by structuring (a
// language model that maps raw text onto the record shape). Neither step is
// implemented here; this package only talks to those services and validates
// what comes back. Any failure yields no record.
package ingest
