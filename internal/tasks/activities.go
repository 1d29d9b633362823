package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/batch"
	"github.com/openjustice/courtwatch/internal/reconcile"
	"github.com/openjustice/courtwatch/internal/scraper"
)

// Activities holds the worker-side pipeline: the scrape runner, the
// reconciler and the batch orchestrator.
type Activities struct {
	Runner    *scraper.Runner
	Recon     *reconcile.Reconciler
	Orch      *batch.Orchestrator
	Inputs    ScrapeInputs
	Retention time.Duration
	Log       *zap.Logger
}

// ScrapeCourt runs one (court, article, subtype) search and reconciles the
// envelope. A failed run that still yielded rows becomes a failed session
// with its rows reconciled; a failed run with nothing to show fails the
// activity, as does any storage error.
func (a *Activities) ScrapeCourt(ctx context.Context, args ScrapeCourtArgs) error {
	adapter := a.newAdapter(args.CourtCode)
	q := scraper.Query{
		Article:       args.Article,
		SubType:       args.SubType,
		EntryDateFrom: a.Inputs.EntryDateFrom,
	}
	env := a.Runner.Run(ctx, adapter, q)
	totals, err := a.Recon.Apply(ctx, reconcile.Input{
		CourtCode: args.CourtCode,
		Article:   args.Article,
		SubType:   args.SubType,
		Env:       env,
	})
	if err != nil {
		return err
	}
	a.Log.Info("reconciled scrape run",
		zap.String("court_code", args.CourtCode),
		zap.String("article", args.Article),
		zap.String("sub_type", args.SubType),
		zap.Int("created", totals.Created),
		zap.Int("updated", totals.Updated),
		zap.Int("ignored", totals.Ignored))
	return nil
}

// ListScrapeInputs hands the configured search matrix to workflows, which
// must not read configuration directly.
func (a *Activities) ListScrapeInputs(context.Context) (ScrapeInputs, error) {
	return a.Inputs, nil
}

// newAdapter builds a fresh adapter per run: adapters keep per-run request
// state and must not be shared.
func (a *Activities) newAdapter(courtCode string) scraper.Adapter {
	if courtCode == scraper.MetroCode {
		return scraper.NewMetroAdapter()
	}
	return scraper.NewRegionalAdapter(courtCode)
}

// BatchTick advances the roster cursor and dispatches one page of courts.
func (a *Activities) BatchTick(ctx context.Context) error {
	return a.Orch.Tick(ctx)
}

// CleanSessions drops aged sessions that produced no case changes.
func (a *Activities) CleanSessions(ctx context.Context) error {
	return a.Orch.CleanSessions(ctx, a.Retention)
}
