package holdings

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
	"github.com/sells-group/holdings-cli/internal/store"
)

// Snapshot is everything reconciliation needs for one fund.
type Snapshot struct {
	CIK         string                        `json:"cik"`
	Fund        *model.Fund                   `json:"fund,omitempty"`
	Latest      model.Submission              `json:"latest_submission"`
	Submissions []reconcile.SubmissionSummary `json:"submissions"`
	Holdings    []reconcile.HoldingRow        `json:"holdings"`
}

// SnapshotLoader reads fund snapshots. LoadSnapshot returns ErrNoFilings when
// the CIK has no stored submissions.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, cik string) (*Snapshot, error)
	Invalidate(ctx context.Context, cik string) error
}

// StoreLoader builds snapshots straight from the store.
type StoreLoader struct {
	store store.Store
}

// NewStoreLoader creates a StoreLoader.
func NewStoreLoader(st store.Store) *StoreLoader {
	return &StoreLoader{store: st}
}

// LoadSnapshot implements SnapshotLoader.
func (l *StoreLoader) LoadSnapshot(ctx context.Context, cik string) (*Snapshot, error) {
	subs, err := l.store.ListSubmissionsByCIK(ctx, cik)
	if err != nil {
		return nil, eris.Wrapf(err, "holdings: list submissions %s", cik)
	}
	if len(subs) == 0 {
		return nil, ErrNoFilings
	}

	accessions := make([]string, len(subs))
	for i, s := range subs {
		accessions[i] = s.AccessionNumber
	}
	rows, err := l.store.ListHoldings(ctx, accessions)
	if err != nil {
		return nil, eris.Wrapf(err, "holdings: list holdings %s", cik)
	}

	snap := &Snapshot{
		CIK:         cik,
		Latest:      subs[0],
		Submissions: reconcile.OrderSubmissions(subs),
		Holdings:    reconcile.RowsFromHoldings(rows),
	}

	fund, err := l.store.GetFundByCIK(ctx, cik)
	switch {
	case err == nil:
		snap.Fund = fund
	case !errors.Is(err, store.ErrNotFound):
		return nil, eris.Wrapf(err, "holdings: get fund %s", cik)
	}
	return snap, nil
}

// Invalidate implements SnapshotLoader. The store is always current.
func (l *StoreLoader) Invalidate(context.Context, string) error { return nil }
