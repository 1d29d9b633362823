package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/tasks"
)

var (
	scrapeArticles []string
	scrapeSubTypes []string
	scrapeEnqueue  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <court-code>",
	Short: "Scrape one court (or the aggregator meta code) immediately",
	Long:  "Runs the full search matrix for the given court code. With --enqueue the work is dispatched to the worker pool instead of running in-process.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		courtCode := args[0]

		if scrapeEnqueue {
			tc, err := dialTemporal()
			if err != nil {
				return err
			}
			defer tc.Close()
			return tasks.NewQueue(tc, zap.L()).EnqueueScrape(ctx, courtCode)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		a := newActivities(st, nil)
		if len(scrapeArticles) > 0 {
			a.Inputs.Articles = scrapeArticles
		}
		if len(scrapeSubTypes) > 0 {
			a.Inputs.SubTypes = scrapeSubTypes
		}
		for _, article := range a.Inputs.Articles {
			for _, subType := range a.Inputs.SubTypes {
				err := a.ScrapeCourt(ctx, tasks.ScrapeCourtArgs{
					CourtCode: courtCode,
					Article:   article,
					SubType:   subType,
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeArticles, "article", nil, "restrict to these articles (default: configured roster)")
	scrapeCmd.Flags().StringSliceVar(&scrapeSubTypes, "subtype", nil, "restrict to these case subtypes")
	scrapeCmd.Flags().BoolVar(&scrapeEnqueue, "enqueue", false, "dispatch to the worker pool instead of running in-process")
	rootCmd.AddCommand(scrapeCmd)
}
