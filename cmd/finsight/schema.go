package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finsight/internal/store"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the transaction store schema with sample rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.DatabasePath, logger.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()

		desc, err := st.SchemaDescription(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), desc)
		return nil
	},
}

var idsCmd = &cobra.Command{
	Use:   "ids",
	Short: "List the bank and account IDs present in the store",
	Long: `Ids lists the distinct bank_id and account_id values in the
transaction store, for use with the --banks and --accounts flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.DatabasePath, logger.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()

		banks, err := st.BankIDs(cmd.Context())
		if err != nil {
			return err
		}
		if len(banks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No transactions found; run 'finsight seed' first.")
			return nil
		}

		for _, bank := range banks {
			accounts, err := st.AccountIDs(cmd.Context(), []int64{bank})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bank %d: accounts %s\n", bank, joinIDs(accounts))
		}
		return nil
	},
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
