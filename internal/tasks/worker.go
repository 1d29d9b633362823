package tasks

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// NewWorker builds the task-queue worker with every workflow and activity
// registered.
func NewWorker(c client.Client, a *Activities) worker.Worker {
	w := worker.New(c, TaskQueue, worker.Options{})
	w.RegisterWorkflow(ScrapeCourtWorkflow)
	w.RegisterWorkflow(ScrapeAllArticlesWorkflow)
	w.RegisterWorkflow(BatchTickWorkflow)
	w.RegisterWorkflow(CleanSessionsWorkflow)
	w.RegisterActivity(a)
	return w
}
