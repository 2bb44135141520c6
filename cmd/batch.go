package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
)

var (
	batchFile        string
	batchConcurrency int
	batchStart       string
	batchEnd         string
	batchMissingOnly bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [cik...]",
	Short: "Fetch filings for many funds concurrently",
	Long:  "Fetches and ingests filings for every CIK given as an argument or listed in --file (one per line, # starts a comment). Funds are processed concurrently; a failing fund does not stop the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end, err := parseWindow(batchStart, batchEnd)
		if err != nil {
			return err
		}

		ciks := args
		if batchFile != "" {
			f, err := os.Open(batchFile)
			if err != nil {
				return eris.Wrapf(err, "open %s", batchFile)
			}
			fromFile, err := readCIKList(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			ciks = append(ciks, fromFile...)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentFunds
		}

		var fetch fetchFunc = func(ctx context.Context, cik string) (*ingest.FetchResult, error) {
			return env.Service.AddSubmissions(ctx, cik, start, end)
		}
		if batchMissingOnly {
			fetch = onlyMissing(env.Store, fetch)
		}

		sum, err := processBatch(ctx, ciks, concurrency, fetch)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return eris.Errorf("batch: %d of %d funds failed", sum.Failed, sum.Funds)
		}
		return nil
	},
}

// fetchFunc fetches and ingests one fund.
type fetchFunc func(ctx context.Context, cik string) (*ingest.FetchResult, error)

// errAlreadyStored marks a fund skipped because it has stored submissions.
var errAlreadyStored = eris.New("fund already has stored submissions")

// submissionChecker is satisfied by store.Store.
type submissionChecker interface {
	HasSubmissions(ctx context.Context, cik string) (bool, error)
}

// onlyMissing wraps fetch so funds that already have submissions are skipped.
func onlyMissing(st submissionChecker, fetch fetchFunc) fetchFunc {
	return func(ctx context.Context, cik string) (*ingest.FetchResult, error) {
		has, err := st.HasSubmissions(ctx, cik)
		if err != nil {
			return nil, eris.Wrapf(err, "check stored submissions %s", cik)
		}
		if has {
			return nil, errAlreadyStored
		}
		return fetch(ctx, cik)
	}
}

// batchSummary totals a batch run.
type batchSummary struct {
	Funds     int
	Succeeded int64
	Skipped   int64
	Failed    int64
	Documents int64
	Holdings  int64
}

// processBatch normalizes and dedups ciks, then fetches them with at most
// concurrency funds in flight. Individual failures are counted, not returned.
func processBatch(ctx context.Context, ciks []string, concurrency int, fetch fetchFunc) (*batchSummary, error) {
	seen := make(map[string]bool, len(ciks))
	var normalized []string
	for _, raw := range ciks {
		cik, err := model.NormalizeCIK(raw)
		if err != nil {
			zap.L().Warn("skipping invalid cik", zap.String("cik", raw))
			continue
		}
		if seen[cik] {
			continue
		}
		seen[cik] = true
		normalized = append(normalized, cik)
	}

	sum := &batchSummary{Funds: len(normalized)}
	if len(normalized) == 0 {
		zap.L().Info("no funds to fetch")
		return sum, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("funds", len(normalized)),
		zap.Int("concurrency", concurrency),
	)
	begin := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, skipped, failed, documents, holdingsCount atomic.Int64

	for _, cik := range normalized {
		g.Go(func() error {
			log := zap.L().With(zap.String("cik", cik))

			res, err := fetch(gctx, cik)
			if errors.Is(err, errAlreadyStored) {
				skipped.Add(1)
				log.Debug("fund already stored; skipping")
				return nil
			}
			if err != nil {
				failed.Add(1)
				log.Error("fund fetch failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			documents.Add(int64(res.Ingest.Documents))
			holdingsCount.Add(int64(res.Ingest.Holdings))
			log.Info("fund fetch complete",
				zap.Int("documents", res.Ingest.Documents),
				zap.Int("upserted", res.Ingest.Upserted),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "batch processing")
	}
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "batch processing")
	}

	sum.Succeeded = succeeded.Load()
	sum.Skipped = skipped.Load()
	sum.Failed = failed.Load()
	sum.Documents = documents.Load()
	sum.Holdings = holdingsCount.Load()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("failed", sum.Failed),
		zap.Int64("documents", sum.Documents),
		zap.Duration("elapsed", time.Since(begin)),
	)
	return sum, nil
}

// readCIKList reads one CIK per line, ignoring blanks and # comments.
func readCIKList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read cik list")
	}
	return out, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one CIK per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "funds fetched at once (default from config)")
	batchCmd.Flags().StringVar(&batchStart, "start", "", "first filing date, YYYY-MM-DD (default from config)")
	batchCmd.Flags().StringVar(&batchEnd, "end", "", "last filing date, YYYY-MM-DD (default from config)")
	batchCmd.Flags().BoolVar(&batchMissingOnly, "missing-only", false, "skip funds that already have stored submissions")
	rootCmd.AddCommand(batchCmd)
}
