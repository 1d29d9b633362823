package tasks

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// EnsureSchedules registers the recurring batch tick and session cleanup.
// Both use overlap policy SKIP: the batch tick's cursor update is a
// read-then-write critical section, so a tick still running when the next
// fires must suppress it rather than run beside it. Existing schedules are
// left as they are.
func EnsureSchedules(ctx context.Context, c client.Client, tickCron, cleanCron string, log *zap.Logger) error {
	schedules := []client.ScheduleOptions{
		{
			ID:      BatchTickScheduleID,
			Spec:    client.ScheduleSpec{CronExpressions: []string{tickCron}},
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			Action: &client.ScheduleWorkflowAction{
				ID:        BatchTickScheduleID,
				Workflow:  BatchTickWorkflow,
				TaskQueue: TaskQueue,
			},
		},
		{
			ID:      CleanSessionsScheduleID,
			Spec:    client.ScheduleSpec{CronExpressions: []string{cleanCron}},
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			Action: &client.ScheduleWorkflowAction{
				ID:        CleanSessionsScheduleID,
				Workflow:  CleanSessionsWorkflow,
				TaskQueue: TaskQueue,
			},
		},
	}

	for _, opts := range schedules {
		_, err := c.ScheduleClient().Create(ctx, opts)
		if err != nil {
			if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
				log.Info("schedule already registered", zap.String("schedule_id", opts.ID))
				continue
			}
			return eris.Wrapf(err, "tasks: create schedule %s", opts.ID)
		}
		log.Info("registered schedule", zap.String("schedule_id", opts.ID))
	}
	return nil
}
