// Package common defines shared sentinel errors used across receiptkeeper
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup and invariant errors.
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate record id")

	// Ingest errors: the upload produces no record.
	ErrOCR   = errors.New("ocr failed")
	ErrParse = errors.New("receipt parsing failed")

	// Remote tier errors.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrRemote            = errors.New("remote store error")
)
