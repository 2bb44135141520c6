package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	holdingsStart string
	holdingsEnd   string
)

var holdingsCmd = &cobra.Command{
	Use:   "holdings <cik>",
	Short: "Compare a fund's latest holdings with the previous filing",
	Long:  "Shows the fund's submissions and the latest-vs-previous position comparison. Filings are fetched first when none are stored for the CIK.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end, err := parseWindow(holdingsStart, holdingsEnd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Service.FetchAndProcessHoldings(ctx, args[0], start, end)
		if err != nil {
			return err
		}
		formatSubmissions(os.Stdout, snap)
		formatComparison(os.Stdout, env.Service.ProcessHoldings(snap))
		return nil
	},
}

func init() {
	holdingsCmd.Flags().StringVar(&holdingsStart, "start", "", "fetch window start when nothing is stored, YYYY-MM-DD")
	holdingsCmd.Flags().StringVar(&holdingsEnd, "end", "", "fetch window end when nothing is stored, YYYY-MM-DD")
	rootCmd.AddCommand(holdingsCmd)
}
