package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/model"
)

var (
	latestType  string
	latestCount int
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "List the most recent 13F-HR or NPORT-P filings on EDGAR",
	RunE: func(cmd *cobra.Command, args []string) error {
		form := model.FilingType(latestType)
		switch form {
		case model.FilingType13F, model.FilingTypeNPORT:
		default:
			return eris.Errorf("--type must be %s or %s", model.FilingType13F, model.FilingTypeNPORT)
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		filings, err := newEdgarClient().LatestFilings(cmd.Context(), form, latestCount)
		if err != nil {
			return err
		}
		formatLatest(os.Stdout, filings)
		return nil
	},
}

func init() {
	latestCmd.Flags().StringVar(&latestType, "type", string(model.FilingType13F), "form type: 13F-HR or NPORT-P")
	latestCmd.Flags().IntVar(&latestCount, "count", 20, "number of entries")
	rootCmd.AddCommand(latestCmd)
}
