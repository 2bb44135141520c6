package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [cik]",
	Short: "Show the filing fetch log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cik := ""
		if len(args) == 1 {
			c, err := model.NormalizeCIK(args[0])
			if err != nil {
				return err
			}
			cik = c
		}

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListFetches(ctx, cik, statusLimit)
		if err != nil {
			return eris.Wrap(err, "list fetches")
		}
		if len(entries) == 0 {
			zap.L().Info("no fetch entries found, run 'fetch <cik>' to download filings")
			return nil
		}
		formatFetchEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "max entries")
	rootCmd.AddCommand(statusCmd)
}
