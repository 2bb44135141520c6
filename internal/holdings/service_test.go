package holdings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
	"github.com/sells-group/holdings-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const cik = "0001067983"

var (
	defaultStart = time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)
	defaultEnd   = time.Date(2024, 7, 24, 0, 0, 0, 0, time.UTC)
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, cik string, start, end time.Time) (*ingest.FetchResult, error) {
	args := m.Called(ctx, cik, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.FetchResult), args.Error(1)
}

type countingLoader struct {
	SnapshotLoader
	invalidated atomic.Int32
}

func (l *countingLoader) Invalidate(ctx context.Context, cik string) error {
	l.invalidated.Add(1)
	return l.SnapshotLoader.Invalidate(ctx, cik)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "holdings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seed stores one submission per accession with the given share counts.
func seed(t *testing.T, st store.Store, filings map[string]map[string]float64, filed map[string]string) {
	t.Helper()
	ctx := context.Background()
	funds := []model.Fund{{FundName: "BERKSHIRE HATHAWAY INC", CIK: cik}}
	if _, err := st.GetFundByCIK(ctx, cik); errors.Is(err, store.ErrNotFound) {
		_, err := st.InsertFunds(ctx, funds)
		require.NoError(t, err)
	}
	fund, err := st.GetFundByCIK(ctx, cik)
	require.NoError(t, err)

	for acc, positions := range filings {
		d, err := time.Parse(time.DateOnly, filed[acc])
		require.NoError(t, err)
		err = st.WithTx(ctx, func(tx store.Tx) error {
			sub := &model.Submission{
				CIK: cik, CompanyName: fund.FundName, SubmissionType: "13F-HR",
				FiledOfDate: d, AccessionNumber: acc, PeriodOfPortfolio: fmt.Sprintf("%d Q%d", d.Year(), (int(d.Month())-1)/3+1),
				FundID: fund.ID,
			}
			if err := tx.InsertSubmission(ctx, sub); err != nil {
				return err
			}
			for name, shares := range positions {
				h := &model.Holding{CompanyName: name, ShareAmount: shares, ValueUSD: shares * 10, CIK: cik, AccessionNumber: acc, FundID: fund.ID}
				if err := tx.InsertHolding(ctx, h); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func newService(st store.Store, f FilingFetcher) (*Service, *countingLoader) {
	loader := &countingLoader{SnapshotLoader: NewStoreLoader(st)}
	return NewService(loader, f, Options{DefaultStart: defaultStart, DefaultEnd: defaultEnd}), loader
}

func TestFetchAndProcessHoldings_StoredSkipsFetch(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, map[string]map[string]float64{
		"0000950123-24-000002": {"APPLE INC": 150, "CHEVRON": 10},
		"0000950123-24-000001": {"APPLE INC": 100, "KRAFT": 5},
	}, map[string]string{
		"0000950123-24-000002": "2024-05-15",
		"0000950123-24-000001": "2024-02-14",
	})
	f := &mockFetcher{}
	svc, _ := newService(st, f)

	snap, err := svc.FetchAndProcessHoldings(context.Background(), "1067983", time.Time{}, time.Time{})
	require.NoError(t, err)
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, cik, snap.CIK)
	require.NotNil(t, snap.Fund)
	assert.Equal(t, "BERKSHIRE HATHAWAY INC", snap.Fund.FundName)
	assert.Equal(t, "0000950123-24-000002", snap.Latest.AccessionNumber)
	require.Len(t, snap.Submissions, 2)
	assert.Equal(t, "2024 Q2_1", snap.Submissions[0].PeriodOfPortfolio)
	require.Len(t, snap.Holdings, 4)
	assert.Equal(t, "APPLE INC", snap.Holdings[0].CompanyName)
	assert.Equal(t, "0000950123-24-000002", snap.Holdings[0].AccessionNumber)

	rows := svc.ProcessHoldings(snap)
	require.Len(t, rows, 3)
	assert.Equal(t, "APPLE INC", rows[0].CompanyName)
	assert.Equal(t, reconcile.StatusIncreased, rows[0].ChangeStatus)
	assert.Equal(t, 50.0, rows[0].ChangePercentage)
	assert.Equal(t, reconcile.StatusNewInvestment, rows[1].ChangeStatus)
	assert.Equal(t, "KRAFT", rows[2].CompanyName)
	assert.Equal(t, reconcile.StatusPositionClosed, rows[2].ChangeStatus)

	wide, headers := svc.ProcessMonitorHoldings(snap, 0)
	assert.Equal(t, []string{"Company Name", "2024 Q1_1", "2024 Q2_1"}, headers)
	require.Len(t, wide, 3)
	assert.Equal(t, []int64{100, 150}, wide[0].Shares)
}

func TestFetchAndProcessHoldings_FetchesWhenEmpty(t *testing.T) {
	st := newTestStore(t)
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, defaultStart, defaultEnd).
		Run(func(mock.Arguments) {
			seed(t, st, map[string]map[string]float64{"0000950123-24-000001": {"APPLE INC": 1}},
				map[string]string{"0000950123-24-000001": "2024-02-14"})
		}).
		Return(&ingest.FetchResult{CIK: cik}, nil).Once()
	svc, loader := newService(st, f)

	snap, err := svc.FetchAndProcessHoldings(context.Background(), cik, time.Time{}, time.Time{})
	require.NoError(t, err)
	f.AssertExpectations(t)
	assert.Equal(t, int32(1), loader.invalidated.Load())

	rows := svc.ProcessHoldings(snap)
	require.Len(t, rows, 1)
	assert.Equal(t, reconcile.StatusNewInvestment, rows[0].ChangeStatus)
	assert.Equal(t, 100.0, rows[0].ChangePercentage)
}

func TestFetchAndProcessHoldings_ExplicitWindow(t *testing.T) {
	st := newTestStore(t)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, start, defaultEnd).Return(&ingest.FetchResult{CIK: cik}, nil).Once()
	svc, _ := newService(st, f)

	_, err := svc.FetchAndProcessHoldings(context.Background(), cik, start, time.Time{})
	assert.ErrorIs(t, err, ErrNoFilings)
	f.AssertExpectations(t)
}

func TestFetchAndProcessHoldings_NoFilings(t *testing.T) {
	st := newTestStore(t)
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, defaultStart, defaultEnd).Return(&ingest.FetchResult{CIK: cik}, nil)
	svc, _ := newService(st, f)

	_, err := svc.FetchAndProcessHoldings(context.Background(), cik, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFilings)
	assert.Equal(t, "this fund provides no holdings filings", ErrNoFilings.Error())
}

func TestFetchAndProcessHoldings_InvalidCIK(t *testing.T) {
	svc, _ := newService(newTestStore(t), &mockFetcher{})
	_, err := svc.FetchAndProcessHoldings(context.Background(), "not-a-cik", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cik")
}

func TestFetchAndProcessHoldings_ConcurrentCallsShareOneFetch(t *testing.T) {
	st := newTestStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, defaultStart, defaultEnd).
		Run(func(mock.Arguments) {
			calls.Add(1)
			<-release
			seed(t, st, map[string]map[string]float64{"0000950123-24-000001": {"APPLE INC": 1}},
				map[string]string{"0000950123-24-000001": "2024-02-14"})
		}).
		Return(&ingest.FetchResult{CIK: cik}, nil)
	svc, _ := newService(st, f)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.FetchAndProcessHoldings(context.Background(), cik, time.Time{}, time.Time{})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAndProcessHoldings_DifferentWindowsFetchSeparately(t *testing.T) {
	st := newTestStore(t)
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	release := make(chan struct{})
	var calls atomic.Int32
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, mock.AnythingOfType("time.Time"), defaultEnd).
		Run(func(mock.Arguments) {
			calls.Add(1)
			<-release
		}).
		Return(&ingest.FetchResult{CIK: cik}, nil)
	svc, _ := newService(st, f)

	var wg sync.WaitGroup
	for _, start := range []time.Time{early, defaultStart} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.FetchAndProcessHoldings(context.Background(), cik, start, time.Time{})
			assert.ErrorIs(t, err, ErrNoFilings)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	f.AssertCalled(t, "Fetch", mock.Anything, cik, early, defaultEnd)
	f.AssertCalled(t, "Fetch", mock.Anything, cik, defaultStart, defaultEnd)
}

func TestFetchAndProcessHoldings_CancelledCallerDoesNotFailOthers(t *testing.T) {
	st := newTestStore(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var fetchCtxErr atomic.Value
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, defaultStart, defaultEnd).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
			if err := args.Get(0).(context.Context).Err(); err != nil {
				fetchCtxErr.Store(err)
			}
			seed(t, st, map[string]map[string]float64{"0000950123-24-000001": {"APPLE INC": 1}},
				map[string]string{"0000950123-24-000001": "2024-02-14"})
		}).
		Return(&ingest.FetchResult{CIK: cik}, nil).Once()
	svc, _ := newService(st, f)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.FetchAndProcessHoldings(first, cik, time.Time{}, time.Time{})
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		snap, err := svc.FetchAndProcessHoldings(context.Background(), cik, time.Time{}, time.Time{})
		if err == nil && len(snap.Submissions) != 1 {
			err = fmt.Errorf("got %d submissions", len(snap.Submissions))
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.NoError(t, <-second)
	assert.Nil(t, fetchCtxErr.Load())
	f.AssertExpectations(t)
}

func TestAddSubmissions(t *testing.T) {
	st := newTestStore(t)
	want := &ingest.FetchResult{CIK: cik, Ingest: ingest.IngestResult{Upserted: 3}}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, start, end).Return(want, nil).Once()
	svc, loader := newService(st, f)

	got, err := svc.AddSubmissions(context.Background(), cik, start, end)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), loader.invalidated.Load())
}

func TestAddSubmissions_BadWindow(t *testing.T) {
	svc, _ := newService(newTestStore(t), &mockFetcher{})
	_, err := svc.AddSubmissions(context.Background(), cik,
		time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadWindow)
	assert.Contains(t, err.Error(), "before start")
}

func TestAddSubmissions_FetchError(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, cik, defaultStart, defaultEnd).Return(nil, context.Canceled)
	svc, loader := newService(newTestStore(t), f)

	_, err := svc.AddSubmissions(context.Background(), cik, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), loader.invalidated.Load())
}

func TestProcessMonitorHoldings_Depth(t *testing.T) {
	svc := NewService(nil, nil, Options{MonitorPeriods: 1})
	snap := &Snapshot{Submissions: []reconcile.SubmissionSummary{
		{AccessionNumber: "2", PeriodOfPortfolio: "B"},
		{AccessionNumber: "1", PeriodOfPortfolio: "A"},
	}}

	_, headers := svc.ProcessMonitorHoldings(snap, 0)
	assert.Equal(t, []string{"Company Name", "B"}, headers)
	_, headers = svc.ProcessMonitorHoldings(snap, -1)
	assert.Equal(t, []string{"Company Name", "A", "B"}, headers)
	assert.Equal(t, 1, svc.MonitorPeriods())
}
