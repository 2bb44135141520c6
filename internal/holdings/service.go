// Package holdings is the boundary between the presentation layer and the
// ingestion pipeline. It owns the fetch-if-absent policy and serializes
// fetches per CIK.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
)

var (
	// ErrNoFilings is returned when a fund has no holdings filings even after a fetch.
	ErrNoFilings = eris.New("this fund provides no holdings filings")

	// ErrBadWindow is returned when the resolved fetch window ends before it starts.
	ErrBadWindow = eris.New("fetch window ends before it starts")
)

// FilingFetcher downloads and ingests a CIK's filings.
type FilingFetcher interface {
	Fetch(ctx context.Context, cik string, start, end time.Time) (*ingest.FetchResult, error)
}

// Options configures a Service.
type Options struct {
	// DefaultStart and DefaultEnd bound fetches when the caller gives no window.
	DefaultStart time.Time
	DefaultEnd   time.Time
	// MonitorPeriods is the default depth of the monitor table.
	MonitorPeriods int
}

// Service serves fund snapshots, fetching filings on first access.
type Service struct {
	loader  SnapshotLoader
	fetcher FilingFetcher
	opts    Options
	group   singleflight.Group
}

// NewService creates a Service.
func NewService(loader SnapshotLoader, fetcher FilingFetcher, opts Options) *Service {
	if opts.MonitorPeriods == 0 {
		opts.MonitorPeriods = 5
	}
	return &Service{loader: loader, fetcher: fetcher, opts: opts}
}

// MonitorPeriods returns the configured monitor depth.
func (s *Service) MonitorPeriods() int { return s.opts.MonitorPeriods }

// FetchAndProcessHoldings returns the fund's snapshot. When nothing is stored
// for the CIK, its filings within [start, end] are fetched first; zero times
// select the configured window. Returns ErrNoFilings if the fund still has
// no submissions.
func (s *Service) FetchAndProcessHoldings(ctx context.Context, cik string, start, end time.Time) (*Snapshot, error) {
	cik, err := model.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}

	start, end, err = s.window(start, end)
	if err != nil {
		return nil, err
	}

	v, err := s.do(ctx, flightKey("snapshot", cik, start, end), func(ctx context.Context) (any, error) {
		snap, err := s.loader.LoadSnapshot(ctx, cik)
		if !errors.Is(err, ErrNoFilings) {
			return snap, err
		}

		zap.L().Info("no stored filings; fetching",
			zap.String("component", "holdings"),
			zap.String("cik", cik),
		)
		if _, err := s.fetch(ctx, cik, start, end); err != nil {
			return nil, err
		}
		return s.loader.LoadSnapshot(ctx, cik)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// AddSubmissions fetches the fund's filings within [start, end] regardless of
// what is stored and drops any cached snapshot.
func (s *Service) AddSubmissions(ctx context.Context, cik string, start, end time.Time) (*ingest.FetchResult, error) {
	cik, err := model.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}
	start, end, err = s.window(start, end)
	if err != nil {
		return nil, err
	}

	v, err := s.do(ctx, flightKey("fetch", cik, start, end), func(ctx context.Context) (any, error) {
		return s.fetch(ctx, cik, start, end)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ingest.FetchResult), nil
}

// window fills zero bounds from the configured defaults.
func (s *Service) window(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		start = s.opts.DefaultStart
	}
	if end.IsZero() {
		end = s.opts.DefaultEnd
	}
	if end.Before(start) {
		return start, end, eris.Wrapf(ErrBadWindow, "holdings: end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}

func flightKey(kind, cik string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, cik, start.Format(time.DateOnly), end.Format(time.DateOnly))
}

// do coalesces concurrent calls sharing key. The shared work runs detached
// from any one caller's cancellation; each caller still stops waiting when
// its own ctx is done.
func (s *Service) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) { return fn(detached) })

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "holdings: request cancelled")
	case r := <-ch:
		if r.Shared {
			zap.L().Debug("request coalesced", zap.String("key", key))
		}
		return r.Val, r.Err
	}
}

func (s *Service) fetch(ctx context.Context, cik string, start, end time.Time) (*ingest.FetchResult, error) {
	res, err := s.fetcher.Fetch(ctx, cik, start, end)
	if invErr := s.loader.Invalidate(ctx, cik); invErr != nil {
		zap.L().Warn("failed to invalidate snapshot", zap.String("cik", cik), zap.Error(invErr))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "holdings: fetch %s", cik)
	}
	return res, nil
}

// ProcessHoldings returns the latest-vs-previous comparison for snap.
func (s *Service) ProcessHoldings(snap *Snapshot) []reconcile.ComparisonRow {
	return reconcile.Compare(snap.Holdings, snap.Submissions)
}

// ProcessMonitorHoldings returns the wide table over the n most recent
// submissions (all when n < 0, the configured depth when n == 0).
func (s *Service) ProcessMonitorHoldings(snap *Snapshot, n int) ([]reconcile.MonitorRow, []string) {
	if n == 0 {
		n = s.opts.MonitorPeriods
	}
	return reconcile.Monitor(snap.Holdings, snap.Submissions, n)
}
