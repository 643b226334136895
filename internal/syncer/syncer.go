// Package syncer pushes local-only records to the remote tier.
//
// Records are processed one at a time. Each one is checked with Exists and
// inserted only when absent, so a retried sync never duplicates remote rows.
// A failed record stays local and does not stop the batch.
package syncer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote"
)

// Failure records why one record could not be synced.
type Failure struct {
	ID  string
	Err error
}

// Result describes one SyncAll run.
type Result struct {
	// Records is the input, in input order, with newly synced flags set.
	Records []models.Record
	// Synced counts records that became synced in this run.
	Synced int
	// Attempted counts records that were local when the run started.
	Attempted int
	Failures  []Failure
	// Interrupted is set when cancellation stopped the run early.
	Interrupted bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithProgress registers fn to be called after each attempted record.
func WithProgress(fn func(done, total int)) Option {
	return func(c *Coordinator) { c.progress = fn }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator runs sync batches against a remote tier.
type Coordinator struct {
	tier     remote.Tier
	log      logging.Logger
	progress func(done, total int)
}

// New returns a Coordinator pushing to tier.
func New(tier remote.Tier, opts ...Option) *Coordinator {
	c := &Coordinator{tier: tier, log: logging.Nop{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SyncAll upserts every unsynced record. The input slice is not modified.
//
// Cancellation is checked before each record. The record in flight when ctx
// is cancelled still completes, then the partial Result is returned along
// with ctx.Err().
func (c *Coordinator) SyncAll(ctx context.Context, records []models.Record) (Result, error) {
	res := Result{Records: models.CloneAll(records)}

	if c.tier.Mode() != remote.ModeConfigured {
		return res, nil
	}

	var pending []int
	for i, r := range res.Records {
		if !r.Synced {
			pending = append(pending, i)
		}
	}
	res.Attempted = len(pending)
	if len(pending) == 0 {
		return res, nil
	}

	adapter := c.tier.Adapter()
	for n, i := range pending {
		if err := ctx.Err(); err != nil {
			res.Interrupted = true
			c.log.Warn(ctx, "sync interrupted", "done", n, "total", len(pending))
			return res, err
		}

		id := res.Records[i].ID
		if err := c.syncOne(context.WithoutCancel(ctx), adapter, res.Records[i]); err != nil {
			res.Failures = append(res.Failures, Failure{ID: id, Err: err})
			c.log.Warn(ctx, "receipt sync failed", "id", id, "error", err)
		} else {
			res.Records[i].Synced = true
			res.Synced++
			c.log.Debug(ctx, "receipt synced", "id", id)
		}

		if c.progress != nil {
			c.progress(n+1, len(pending))
		}
	}

	c.log.Info(ctx, "sync finished", "synced", res.Synced, "attempted", res.Attempted, "failed", len(res.Failures))
	return res, nil
}

func (c *Coordinator) syncOne(ctx context.Context, a remote.Adapter, r models.Record) error {
	exists, err := a.Exists(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("check %s: %w", r.ID, err)
	}
	if exists {
		return nil
	}
	return a.Insert(ctx, r)
}
