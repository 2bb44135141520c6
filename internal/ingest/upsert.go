// Package ingest turns staged filings into persisted funds' submissions and
// holdings, and drives the fetch-then-ingest cycle for one CIK.
package ingest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/filing"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

var (
	// ErrFundNotFound is returned when a filing's CIK has no registered fund.
	// Nothing is written in that case.
	ErrFundNotFound = eris.New("ingest: fund not found")

	// ErrIncompleteHeader is returned when a filing lacks its CIK, accession
	// number, or filed date.
	ErrIncompleteHeader = eris.New("ingest: filing header incomplete")
)

// UpsertResult summarizes one filing's upsert.
type UpsertResult struct {
	AccessionNumber   string
	SubmissionCreated bool
	HoldingsInserted  int
	HoldingsUpdated   int
	PositionsSkipped  int
}

// Upserter writes parsed filings to the store.
type Upserter struct {
	store store.Store
}

// NewUpserter creates an Upserter backed by st.
func NewUpserter(st store.Store) *Upserter {
	return &Upserter{store: st}
}

// Upsert writes pf in one transaction: the submission keyed by accession
// number, then each position keyed by (issuer name, accession number).
// Re-running it for the same filing leaves the store unchanged.
func (u *Upserter) Upsert(ctx context.Context, pf *filing.ParsedFiling) (*UpsertResult, error) {
	if pf.CIK == nil || pf.AccessionNumber == nil || pf.FiledDate == nil {
		return nil, ErrIncompleteHeader
	}
	cik, err := model.NormalizeCIK(*pf.CIK)
	if err != nil {
		return nil, eris.Wrap(ErrIncompleteHeader, err.Error())
	}
	accession := *pf.AccessionNumber

	log := zap.L().With(
		zap.String("component", "ingest.upsert"),
		zap.String("cik", cik),
		zap.String("accession", accession),
	)
	for _, skipped := range pf.Skipped {
		log.Warn("skipping malformed holding block", zap.Error(skipped))
	}

	result := &UpsertResult{AccessionNumber: accession}
	err = u.store.WithTx(ctx, func(tx store.Tx) error {
		fund, err := tx.GetFundByCIK(ctx, cik)
		if errors.Is(err, store.ErrNotFound) {
			return ErrFundNotFound
		}
		if err != nil {
			return err
		}

		sub, created, err := upsertSubmission(ctx, tx, fund, cik, pf)
		if err != nil {
			return err
		}
		result.SubmissionCreated = created

		for _, p := range pf.Positions {
			if p.IssuerName == nil {
				result.PositionsSkipped++
				continue
			}
			inserted, err := upsertHolding(ctx, tx, sub, p)
			if err != nil {
				return err
			}
			if inserted {
				result.HoldingsInserted++
			} else {
				result.HoldingsUpdated++
			}
		}
		return nil
	})
	if errors.Is(err, ErrFundNotFound) {
		log.Warn("no fund registered for filing cik; skipping")
		return nil, ErrFundNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: upsert %s", accession)
	}

	log.Debug("filing upserted",
		zap.Bool("submission_created", result.SubmissionCreated),
		zap.Int("inserted", result.HoldingsInserted),
		zap.Int("updated", result.HoldingsUpdated),
	)
	return result, nil
}

func upsertSubmission(ctx context.Context, tx store.Tx, fund *model.Fund, cik string, pf *filing.ParsedFiling) (*model.Submission, bool, error) {
	sub, err := tx.GetSubmission(ctx, *pf.AccessionNumber)
	created := errors.Is(err, store.ErrNotFound)
	if err != nil && !created {
		return nil, false, err
	}
	if created {
		sub = &model.Submission{AccessionNumber: *pf.AccessionNumber}
	}

	sub.CIK = cik
	sub.CompanyName = deref(pf.CompanyName)
	sub.SubmissionType = deref(pf.SubmissionType)
	sub.FiledOfDate = *pf.FiledDate
	sub.PeriodOfPortfolio = deref(pf.ReportingPeriod)
	sub.FundID = fund.ID
	sub.FundPortfolioValue = pf.PortfolioValue
	sub.FundOwnsCompanies = pf.OwnsCompanies

	if created {
		err = tx.InsertSubmission(ctx, sub)
	} else {
		err = tx.UpdateSubmission(ctx, sub)
	}
	return sub, created, err
}

func upsertHolding(ctx context.Context, tx store.Tx, sub *model.Submission, p filing.Position) (bool, error) {
	h, err := tx.FindHolding(ctx, *p.IssuerName, sub.AccessionNumber)
	inserted := errors.Is(err, store.ErrNotFound)
	if err != nil && !inserted {
		return false, err
	}
	if inserted {
		h = &model.Holding{CompanyName: *p.IssuerName, AccessionNumber: sub.AccessionNumber}
	}

	h.ValueUSD = p.Value
	h.ShareAmount = p.Shares
	h.CUSIP = deref(p.CUSIP)
	h.CIK = sub.CIK
	h.PeriodOfPortfolio = sub.PeriodOfPortfolio
	h.FundID = sub.FundID

	if inserted {
		return true, tx.InsertHolding(ctx, h)
	}
	return false, tx.UpdateHolding(ctx, h)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
