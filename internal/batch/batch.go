// Package batch walks the court roster round-robin, dispatching one scrape
// unit of work per court each tick and wrapping around when the roster is
// exhausted.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
)

// Store is the persistence surface the orchestrator needs: the singleton
// rotating cursor, roster paging and session cleanup.
type Store interface {
	BatchNextIndex(ctx context.Context) (int, error)
	SetBatchNextIndex(ctx context.Context, idx int) error
	CourtsPage(ctx context.Context, offset, limit int) ([]model.Court, error)
	DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error)
}

// Enqueuer hands units of work to the task queue. Enqueueing must not block
// on the work itself.
type Enqueuer interface {
	EnqueueCourtScrape(ctx context.Context, court model.Court) error
	EnqueueMetroScrape(ctx context.Context) error
}

// Orchestrator advances the roster cursor one page per tick. Ticks must not
// overlap: the cursor update is read-then-write, so the scheduler is
// responsible for never running two ticks concurrently.
type Orchestrator struct {
	store    Store
	queue    Enqueuer
	pageSize int
	log      *zap.Logger
}

func New(st Store, queue Enqueuer, pageSize int, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: st, queue: queue, pageSize: pageSize, log: log}
}

// Tick dispatches one page of courts and advances the cursor. The
// metropolitan aggregator sits outside the roster and is re-dispatched once
// per full cycle, at cursor position 0. An empty page resets the cursor, so
// the next tick starts the roster over.
func (o *Orchestrator) Tick(ctx context.Context) error {
	idx, err := o.store.BatchNextIndex(ctx)
	if err != nil {
		return eris.Wrap(err, "batch: read cursor")
	}

	courts, err := o.store.CourtsPage(ctx, idx*o.pageSize, o.pageSize)
	if err != nil {
		return eris.Wrap(err, "batch: page courts")
	}

	if idx == 0 {
		if err := o.queue.EnqueueMetroScrape(ctx); err != nil {
			return eris.Wrap(err, "batch: enqueue aggregator")
		}
	}
	for _, court := range courts {
		if err := o.queue.EnqueueCourtScrape(ctx, court); err != nil {
			return eris.Wrapf(err, "batch: enqueue court %s", court.Code)
		}
	}

	next := idx + 1
	if len(courts) == 0 {
		next = 0
	}
	if err := o.store.SetBatchNextIndex(ctx, next); err != nil {
		return eris.Wrap(err, "batch: advance cursor")
	}

	o.log.Info("batch tick dispatched",
		zap.Int("index", idx),
		zap.Int("courts", len(courts)),
		zap.Int("next_index", next))
	return nil
}

// CleanSessions drops aged sessions that recorded no case changes.
func (o *Orchestrator) CleanSessions(ctx context.Context, retention time.Duration) error {
	deleted, err := o.store.DeleteStaleSessions(ctx, retention)
	if err != nil {
		return eris.Wrap(err, "batch: clean sessions")
	}
	o.log.Info("cleaned stale sessions", zap.Int64("deleted", deleted))
	return nil
}
