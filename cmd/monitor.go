package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/store"
)

var (
	monitorPeriods int
	monitorUser    string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [cik]",
	Short: "Show share counts across the most recent filings",
	Long:  "Prints one row per issuer with its share count in each of the last N filings, oldest first. Without a CIK the first favorite of --user is shown.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cik := ""
		if len(args) == 1 {
			cik = args[0]
		} else {
			cik, err = firstFavoriteCIK(ctx, env.Store, monitorUser)
			if err != nil {
				return err
			}
		}

		snap, err := env.Service.FetchAndProcessHoldings(ctx, cik, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		rows, headers := env.Service.ProcessMonitorHoldings(snap, monitorPeriods)
		formatMonitor(os.Stdout, rows, headers)
		return nil
	},
}

// firstFavoriteCIK resolves the CIK of the user's earliest favorite fund.
func firstFavoriteCIK(ctx context.Context, st store.Store, user string) (string, error) {
	if user == "" {
		return "", eris.New("a CIK or --user is required")
	}
	if _, err := uuid.Parse(user); err != nil {
		return "", eris.Wrapf(err, "parse --user %q", user)
	}
	favs, err := st.ListFavorites(ctx, user)
	if err != nil {
		return "", eris.Wrap(err, "list favorites")
	}
	if len(favs) == 0 {
		return "", eris.Errorf("user %s has no favorite funds", user)
	}
	return favs[0].CIK, nil
}

func init() {
	monitorCmd.Flags().IntVar(&monitorPeriods, "periods", 0, "number of filings to show (default from config, negative for all)")
	monitorCmd.Flags().StringVar(&monitorUser, "user", "", "user ID whose first favorite is shown when no CIK is given")
	rootCmd.AddCommand(monitorCmd)
}
