package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

// Store persists the local snapshot.
type Store interface {
	// Load returns every record in saved order. An empty store yields an
	// empty slice.
	Load(ctx context.Context) ([]models.Record, error)

	// Save atomically replaces the stored snapshot with records.
	Save(ctx context.Context, records []models.Record) error

	Close() error
}

// Open returns the store implementation named by kind ("sqlite" or "json").
func Open(ctx context.Context, kind, path string) (Store, error) {
	switch kind {
	case "sqlite":
		return OpenSQLite(ctx, path)
	case "json":
		return OpenFile(path)
	default:
		return nil, fmt.Errorf("unknown local store %q", kind)
	}
}
