package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/export"
)

var (
	exportOut     string
	exportPeriods int
)

var exportCmd = &cobra.Command{
	Use:   "export <cik>",
	Short: "Write the comparison and monitor tables to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Service.FetchAndProcessHoldings(ctx, args[0], time.Time{}, time.Time{})
		if err != nil {
			return err
		}

		wb := export.NewWorkbook()
		if err := wb.AddComparison(env.Service.ProcessHoldings(snap)); err != nil {
			return err
		}
		rows, headers := env.Service.ProcessMonitorHoldings(snap, exportPeriods)
		if err := wb.AddMonitor(rows, headers); err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = snap.CIK + ".xlsx"
		}
		if err := wb.Save(path); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", path), zap.String("cik", snap.CIK))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default <cik>.xlsx)")
	exportCmd.Flags().IntVar(&exportPeriods, "periods", 0, "filings in the monitor sheet (default from config, negative for all)")
	rootCmd.AddCommand(exportCmd)
}
