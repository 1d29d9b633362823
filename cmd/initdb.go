package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/catalog"
)

var initdbSeed bool

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema, optionally seeding the court roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("schema ready")

		if !initdbSeed {
			return nil
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		created, err := cat.Seed(ctx, st)
		if err != nil {
			return err
		}
		zap.L().Info("roster seeded",
			zap.String("path", cfg.Catalog.Path),
			zap.Int("created", created))
		return nil
	},
}

func init() {
	initdbCmd.Flags().BoolVar(&initdbSeed, "seed", false, "seed the court roster from the catalog file")
	rootCmd.AddCommand(initdbCmd)
}
