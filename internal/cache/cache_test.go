package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const cik = "0001067983"

type stubLoader struct {
	snap        *holdings.Snapshot
	err         error
	loads       int
	invalidated int
}

func (s *stubLoader) LoadSnapshot(context.Context, string) (*holdings.Snapshot, error) {
	s.loads++
	return s.snap, s.err
}

func (s *stubLoader) Invalidate(context.Context, string) error {
	s.invalidated++
	return nil
}

func testSnapshot() *holdings.Snapshot {
	return &holdings.Snapshot{
		CIK:    cik,
		Fund:   &model.Fund{ID: "f1", FundName: "BERKSHIRE HATHAWAY INC", CIK: cik},
		Latest: model.Submission{AccessionNumber: "0000950123-24-000002", FiledOfDate: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		Submissions: []reconcile.SubmissionSummary{
			{AccessionNumber: "0000950123-24-000002", PeriodOfPortfolio: "2024 Q2_1", FiledOfDate: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		},
		Holdings: []reconcile.HoldingRow{
			{CompanyName: "APPLE INC", ShareAmount: 150, ValueUSD: 1500, AccessionNumber: "0000950123-24-000002"},
		},
	}
}

func TestNewSnapshotLoader_Defaults(t *testing.T) {
	tests := []struct {
		name          string
		ttl           time.Duration
		namespace     string
		wantTTL       time.Duration
		wantNamespace string
	}{
		{"defaults", 0, "", 5 * time.Minute, "holdings"},
		{"negative ttl", -time.Minute, "", 5 * time.Minute, "holdings"},
		{"custom", 10 * time.Minute, "custom", 10 * time.Minute, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSnapshotLoader(nil, tt.ttl, &stubLoader{}, tt.namespace)
			assert.Equal(t, tt.wantTTL, c.ttl)
			assert.Equal(t, tt.wantNamespace, c.namespace)
		})
	}
}

func TestLoadSnapshot_NilRedisBypasses(t *testing.T) {
	inner := &stubLoader{snap: testSnapshot()}
	c := NewSnapshotLoader(nil, time.Minute, inner, "")

	got, err := c.LoadSnapshot(context.Background(), cik)
	require.NoError(t, err)
	assert.Equal(t, inner.snap, got)
	assert.Equal(t, 1, inner.loads)

	require.NoError(t, c.Invalidate(context.Background(), cik))
	assert.Equal(t, 1, inner.invalidated)
}

func TestLoadSnapshot_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cached, err := json.Marshal(testSnapshot())
	require.NoError(t, err)
	mock.ExpectGet("holdings:snapshot:" + cik).SetVal(string(cached))

	inner := &stubLoader{}
	c := NewSnapshotLoader(rdb, 5*time.Minute, inner, "")

	got, err := c.LoadSnapshot(context.Background(), cik)
	require.NoError(t, err)
	assert.Zero(t, inner.loads)
	assert.Equal(t, testSnapshot(), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_Miss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	snap := testSnapshot()
	encoded, err := json.Marshal(snap)
	require.NoError(t, err)
	mock.ExpectGet("holdings:snapshot:" + cik).RedisNil()
	mock.ExpectSet("holdings:snapshot:"+cik, encoded, 5*time.Minute).SetVal("OK")

	inner := &stubLoader{snap: snap}
	c := NewSnapshotLoader(rdb, 5*time.Minute, inner, "")

	got, err := c.LoadSnapshot(context.Background(), cik)
	require.NoError(t, err)
	assert.Same(t, snap, got)
	assert.Equal(t, 1, inner.loads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_InnerErrorNotCached(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet("holdings:snapshot:" + cik).RedisNil()

	c := NewSnapshotLoader(rdb, 5*time.Minute, &stubLoader{err: holdings.ErrNoFilings}, "")

	_, err := c.LoadSnapshot(context.Background(), cik)
	assert.ErrorIs(t, err, holdings.ErrNoFilings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_CorruptedEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	snap := testSnapshot()
	encoded, err := json.Marshal(snap)
	require.NoError(t, err)
	mock.ExpectGet("holdings:snapshot:" + cik).SetVal("{not json")
	mock.ExpectDel("holdings:snapshot:" + cik).SetVal(1)
	mock.ExpectSet("holdings:snapshot:"+cik, encoded, 5*time.Minute).SetVal("OK")

	c := NewSnapshotLoader(rdb, 5*time.Minute, &stubLoader{snap: snap}, "")

	_, err = c.LoadSnapshot(context.Background(), cik)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectDel("funds:snapshot:" + cik).SetVal(1)
	inner := &stubLoader{}
	c := NewSnapshotLoader(rdb, time.Minute, inner, "funds")

	require.NoError(t, c.Invalidate(context.Background(), cik))
	assert.Equal(t, 1, inner.invalidated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectDel("holdings:snapshot:" + cik).SetErr(errors.New("connection refused"))
	inner := &stubLoader{}
	c := NewSnapshotLoader(rdb, time.Minute, inner, "")

	err := c.Invalidate(context.Background(), cik)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: invalidate")
	assert.Zero(t, inner.invalidated)
}
