package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
	"github.com/openjustice/courtwatch/internal/scraper"
)

// Queue dispatches scrape workflows. It implements batch.Enqueuer.
type Queue struct {
	client client.Client
	log    *zap.Logger
}

func NewQueue(c client.Client, log *zap.Logger) *Queue {
	return &Queue{client: c, log: log}
}

func (q *Queue) EnqueueCourtScrape(ctx context.Context, court model.Court) error {
	return q.enqueue(ctx, court.Code)
}

func (q *Queue) EnqueueMetroScrape(ctx context.Context) error {
	return q.enqueue(ctx, scraper.MetroCode)
}

// EnqueueScrape dispatches a scrape for a bare court code. The manual CLI
// path uses this.
func (q *Queue) EnqueueScrape(ctx context.Context, courtCode string) error {
	return q.enqueue(ctx, courtCode)
}

func (q *Queue) enqueue(ctx context.Context, courtCode string) error {
	opts := client.StartWorkflowOptions{
		// Unique per dispatch: the same court is legitimately re-dispatched
		// every roster cycle.
		ID:        fmt.Sprintf("scrape-%s-%s", courtCode, uuid.NewString()),
		TaskQueue: TaskQueue,
	}
	run, err := q.client.ExecuteWorkflow(ctx, opts, ScrapeAllArticlesWorkflow, ScrapeAllArticlesArgs{CourtCode: courtCode})
	if err != nil {
		return eris.Wrapf(err, "tasks: enqueue scrape %s", courtCode)
	}
	q.log.Info("enqueued scrape",
		zap.String("court_code", courtCode),
		zap.String("workflow_id", run.GetID()))
	return nil
}
