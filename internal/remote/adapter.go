package remote

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

// Adapter is the remote tier contract used by the merge and sync flows.
type Adapter interface {
	// FetchAll returns every remote record with its items, newest first.
	// Returned records are always marked synced.
	FetchAll(ctx context.Context) ([]models.Record, error)

	// Exists reports whether a header with id is present remotely.
	Exists(ctx context.Context, id string) (bool, error)

	// Insert writes the header and then its items.
	Insert(ctx context.Context, r models.Record) error

	Close() error
}

// Mode tells whether the remote tier is available to this process.
type Mode int

const (
	ModeUnconfigured Mode = iota
	ModeConfigured
)

func (m Mode) String() string {
	switch m {
	case ModeConfigured:
		return "remote"
	case ModeUnconfigured:
		return "local-only"
	default:
		return "unknown"
	}
}

// Tier is either Configured with an Adapter or Unconfigured.
type Tier struct {
	adapter Adapter
}

// Configured wraps a. A nil adapter yields an unconfigured tier.
func Configured(a Adapter) Tier {
	return Tier{adapter: a}
}

// Unconfigured is the local-only tier.
func Unconfigured() Tier {
	return Tier{}
}

func (t Tier) Mode() Mode {
	if t.adapter == nil {
		return ModeUnconfigured
	}
	return ModeConfigured
}

// Adapter returns the configured adapter, or nil in ModeUnconfigured.
func (t Tier) Adapter() Adapter {
	return t.adapter
}

// Close releases the adapter, if any.
func (t Tier) Close() error {
	if t.adapter == nil {
		return nil
	}
	return t.adapter.Close()
}
