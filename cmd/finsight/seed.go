package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finsight/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the transaction store and load sample data",
	Long: `Seed drops and recreates the transactions table, then loads a
deterministic sample data set spanning two banks and four accounts.
Any existing transaction data is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.DatabasePath, logger.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Seed(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d transactions into %s\n", n, cfg.Store.DatabasePath)
		return nil
	},
}
