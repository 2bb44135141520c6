package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

const registryBatchSize = 5000

var (
	registrySearchLimit int
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the fund registry",
}

var registryLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load every EDGAR filer from the SEC company registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Merging concatenates names, so a second load would duplicate them.
		existing, err := st.CountFunds(ctx)
		if err != nil {
			return eris.Wrap(err, "count funds")
		}
		if existing > 0 {
			return eris.Errorf("registry already holds %d funds", existing)
		}

		client := newEdgarClient()
		loaded, err := loadRegistry(ctx, st, func(fn func(model.Fund) error) (int, error) {
			return client.Registry(ctx, fn)
		})
		if err != nil {
			return err
		}

		total, err := st.CountFunds(ctx)
		if err != nil {
			return eris.Wrap(err, "count funds")
		}
		zap.L().Info("registry loaded", zap.Int64("inserted", loaded), zap.Int64("funds", total))
		return nil
	},
}

var registrySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in list of well-known funds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		funds, err := edgar.WellKnownFunds()
		if err != nil {
			return err
		}
		loaded, err := loadRegistry(ctx, st, func(fn func(model.Fund) error) (int, error) {
			for _, f := range funds {
				if _, err := st.GetFundByCIK(ctx, f.CIK); err == nil {
					continue
				} else if !errors.Is(err, store.ErrNotFound) {
					return 0, err
				}
				if err := fn(f); err != nil {
					return 0, err
				}
			}
			return len(funds), nil
		})
		if err != nil {
			return err
		}
		zap.L().Info("well-known funds seeded", zap.Int64("inserted", loaded))
		return nil
	},
}

var registrySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search funds by name or CIK",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		funds, err := st.SearchFunds(ctx, store.FundFilter{Query: args[0], Limit: registrySearchLimit})
		if err != nil {
			return eris.Wrap(err, "search funds")
		}
		formatFunds(os.Stdout, funds)
		return nil
	},
}

// registrySource streams funds into the callback and returns how many it read.
type registrySource func(fn func(model.Fund) error) (int, error)

// loadRegistry inserts funds from src in batches and merges duplicate CIKs.
func loadRegistry(ctx context.Context, st store.Store, src registrySource) (int64, error) {
	var inserted int64
	batch := make([]model.Fund, 0, registryBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := st.InsertFunds(ctx, batch)
		inserted += n
		if err != nil {
			return eris.Wrap(err, "insert funds")
		}
		batch = batch[:0]
		return nil
	}

	read, err := src(func(f model.Fund) error {
		batch = append(batch, f)
		if len(batch) >= registryBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return inserted, eris.Wrap(err, "read registry")
	}
	if err := flush(); err != nil {
		return inserted, err
	}

	merged, err := st.MergeDuplicateFunds(ctx)
	if err != nil {
		return inserted, eris.Wrap(err, "merge duplicate funds")
	}
	zap.L().Info("registry batch complete",
		zap.Int("read", read),
		zap.Int64("inserted", inserted),
		zap.Int64("merged", merged),
	)
	return inserted, nil
}

func init() {
	registrySearchCmd.Flags().IntVar(&registrySearchLimit, "limit", 20, "max results")
	registryCmd.AddCommand(registryLoadCmd, registrySeedCmd, registrySearchCmd)
	rootCmd.AddCommand(registryCmd)
}
