package tasks

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflows are thin shells over single activities: the pipeline's retry
// semantics live in the scrape loop itself, so activities run at most once
// and a failed run surfaces as a failed session for the next roster cycle.

func ScrapeCourtWorkflow(ctx workflow.Context, args ScrapeCourtArgs) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.ScrapeCourt, args).Get(ctx, nil)
}

// ScrapeAllArticlesWorkflow fans one court out into a child workflow per
// (article, subtype) combination. Children run independently, so one run's
// failure leaves the rest of the matrix untouched; failed runs are already
// recorded as failed sessions by the reconciler.
func ScrapeAllArticlesWorkflow(ctx workflow.Context, args ScrapeAllArticlesArgs) error {
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var a *Activities
	var inputs ScrapeInputs
	if err := workflow.ExecuteActivity(actx, a.ListScrapeInputs).Get(actx, &inputs); err != nil {
		return err
	}

	var futures []workflow.ChildWorkflowFuture
	for _, article := range inputs.Articles {
		for _, subType := range inputs.SubTypes {
			futures = append(futures, workflow.ExecuteChildWorkflow(ctx, ScrapeCourtWorkflow, ScrapeCourtArgs{
				CourtCode: args.CourtCode,
				Article:   article,
				SubType:   subType,
			}))
		}
	}

	failed := 0
	for _, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			failed++
		}
	}
	if failed > 0 {
		workflow.GetLogger(ctx).Warn("scrape runs failed",
			"court_code", args.CourtCode, "failed", failed)
	}
	return nil
}

func BatchTickWorkflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.BatchTick).Get(ctx, nil)
}

func CleanSessionsWorkflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.CleanSessions).Get(ctx, nil)
}
