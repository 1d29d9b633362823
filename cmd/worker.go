package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/tasks"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scrape pipeline worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
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
		w := tasks.NewWorker(tc, newActivities(st, queue))

		zap.L().Info("worker starting", zap.String("task_queue", tasks.TaskQueue))
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "cmd: run worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
