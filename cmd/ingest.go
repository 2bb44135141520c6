package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [cik]",
	Short: "Re-ingest staged filings without downloading",
	Long:  "Parses the documents already in the staging area and upserts their holdings. With no CIK every staged fund is ingested.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var res *ingest.IngestResult
		if len(args) == 1 {
			cik, err := model.NormalizeCIK(args[0])
			if err != nil {
				return err
			}
			res, err = env.Fetcher.Ingest(ctx, cik)
			if err != nil {
				return err
			}
		} else {
			res, err = env.Fetcher.IngestAll(ctx)
			if err != nil {
				return err
			}
		}
		formatStagedIngest(os.Stdout, res, env.Area.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
