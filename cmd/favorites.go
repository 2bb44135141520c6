package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

var favoritesUser string

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Manage a user's favorite funds",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if _, err := uuid.Parse(favoritesUser); err != nil {
			return eris.Wrapf(err, "parse --user %q", favoritesUser)
		}
		return nil
	},
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite funds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		funds, err := st.ListFavorites(ctx, favoritesUser)
		if err != nil {
			return err
		}
		formatFunds(os.Stdout, funds)
		return nil
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <cik>",
	Short: "Add a fund to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cik, err := model.NormalizeCIK(args[0])
		if err != nil {
			return err
		}
		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fund, err := st.GetFundByCIK(ctx, cik)
		if err != nil {
			return eris.Wrapf(err, "look up fund %s", cik)
		}
		if _, err := st.AddFavorite(ctx, favoritesUser, fund.ID); err != nil {
			return err
		}
		zap.L().Info("favorite added", zap.String("cik", cik), zap.String("fund", fund.FundName))
		return nil
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <cik>",
	Short: "Remove a fund from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cik, err := model.NormalizeCIK(args[0])
		if err != nil {
			return err
		}
		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fund, err := st.GetFundByCIK(ctx, cik)
		if err != nil {
			return eris.Wrapf(err, "look up fund %s", cik)
		}
		if err := st.RemoveFavorite(ctx, favoritesUser, fund.ID); err != nil {
			return eris.Wrapf(err, "remove favorite %s", cik)
		}
		zap.L().Info("favorite removed", zap.String("cik", cik))
		return nil
	},
}

func init() {
	favoritesCmd.PersistentFlags().StringVar(&favoritesUser, "user", "", "user ID (UUID)")
	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd)
	rootCmd.AddCommand(favoritesCmd)
}
