package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/batch"
	"github.com/openjustice/courtwatch/internal/tasks"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch orchestrator maintenance commands",
}

var batchTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one orchestrator tick: dispatch the next roster page",
	Long:  "Reads the rotating cursor, enqueues one page of courts onto the worker pool and advances the cursor. The recurring schedule does this automatically; this command exists for manual runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		queue := tasks.NewQueue(tc, zap.L())
		return batch.New(st, queue, cfg.Batch.PageSize, zap.L()).Tick(ctx)
	},
}

var batchCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete aged sessions that recorded no case changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return batch.New(st, nil, cfg.Batch.PageSize, zap.L()).CleanSessions(ctx, cfg.Batch.Retention())
	},
}

func init() {
	batchCmd.AddCommand(batchTickCmd)
	batchCmd.AddCommand(batchCleanCmd)
	rootCmd.AddCommand(batchCmd)
}
