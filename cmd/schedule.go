package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/tasks"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Register the recurring batch tick and session cleanup schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		return tasks.EnsureSchedules(cmd.Context(), tc, cfg.Batch.TickCron, cfg.Batch.CleanCron, zap.L())
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
