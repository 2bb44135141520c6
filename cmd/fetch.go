package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	fetchStart string
	fetchEnd   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <cik>",
	Short: "Download and ingest a fund's 13F-HR and NPORT-P filings",
	Long:  "Downloads every 13F-HR and NPORT-P filing for the CIK within the date window, stages them on disk, and upserts their holdings. Without --start/--end the configured default window is used.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end, err := parseWindow(fetchStart, fetchEnd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.AddSubmissions(ctx, args[0], start, end)
		if err != nil {
			return err
		}
		formatFetchResult(os.Stdout, res)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "first filing date, YYYY-MM-DD (default from config)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "last filing date, YYYY-MM-DD (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
