// Package reconcile computes period-over-period holdings comparisons from a
// fund's stored submissions and holding rows.
package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/holdings-cli/internal/model"
)

// ChangeStatus classifies one issuer's movement between two periods.
type ChangeStatus string

const (
	StatusIncreased      ChangeStatus = "Increased"
	StatusDecreased      ChangeStatus = "Decreased"
	StatusNewInvestment  ChangeStatus = "New Investment"
	StatusNoChange       ChangeStatus = "No Change"
	StatusPositionClosed ChangeStatus = "Position Closed"
)

// SubmissionSummary is a submission with its display period label.
type SubmissionSummary struct {
	FiledOfDate        time.Time `json:"filed_of_date"`
	PeriodOfPortfolio  string    `json:"period_of_portfolio"`
	SubmissionType     string    `json:"submission_type"`
	AccessionNumber    string    `json:"accession_number"`
	FundPortfolioValue float64   `json:"fund_portfolio_value"`
}

// HoldingRow is one stored holding, reduced to the columns reconciliation reads.
type HoldingRow struct {
	CompanyName     string  `json:"company_name"`
	ValueUSD        float64 `json:"value_usd"`
	ShareAmount     float64 `json:"share_amount"`
	AccessionNumber string  `json:"accession_number"`
}

// ComparisonRow is one issuer in the latest-vs-previous table.
type ComparisonRow struct {
	CompanyName         string       `json:"company_name"`
	ValueUSD            int64        `json:"value_usd"`
	ShareAmount         int64        `json:"share_amount"`
	PreviousShareAmount int64        `json:"previous_share_amount"`
	ChangeAmount        int64        `json:"change_amount"`
	ChangePercentage    float64      `json:"change_percentage"`
	ChangeStatus        ChangeStatus `json:"change_status"`
	NewCompany          bool         `json:"new_company"`
	AccessionNumber     string       `json:"accession_number"`
}

// OrderSubmissions groups subs by filed date (newest first), suffixes each
// period label with its 1-based position inside its date ("2024 Q1_1"), and
// returns the summaries sorted by accession number descending.
func OrderSubmissions(subs []model.Submission) []SubmissionSummary {
	byDate := make(map[time.Time][]model.Submission)
	var dates []time.Time
	for _, s := range subs {
		d := s.FiledOfDate
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], s)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return b.Compare(a) })

	out := make([]SubmissionSummary, 0, len(subs))
	for _, d := range dates {
		for i, s := range byDate[d] {
			out = append(out, SubmissionSummary{
				FiledOfDate:        s.FiledOfDate,
				PeriodOfPortfolio:  fmt.Sprintf("%s_%d", s.PeriodOfPortfolio, i+1),
				SubmissionType:     s.SubmissionType,
				AccessionNumber:    s.AccessionNumber,
				FundPortfolioValue: s.FundPortfolioValue,
			})
		}
	}

	slices.SortStableFunc(out, func(a, b SubmissionSummary) int {
		return cmp.Compare(b.AccessionNumber, a.AccessionNumber)
	})
	return out
}

// RowsFromHoldings converts stored holdings to reconciliation rows sorted by
// company name ascending, then accession number descending.
func RowsFromHoldings(holdings []model.Holding) []HoldingRow {
	rows := make([]HoldingRow, len(holdings))
	for i, h := range holdings {
		rows[i] = HoldingRow{
			CompanyName:     h.CompanyName,
			ValueUSD:        h.ValueUSD,
			ShareAmount:     h.ShareAmount,
			AccessionNumber: h.AccessionNumber,
		}
	}
	slices.SortStableFunc(rows, func(a, b HoldingRow) int {
		if c := cmp.Compare(a.CompanyName, b.CompanyName); c != 0 {
			return c
		}
		return cmp.Compare(b.AccessionNumber, a.AccessionNumber)
	})
	return rows
}

// Compare classifies the holdings of the most recent submission in ordered
// against the second most recent. Issuers held now come first, in row order,
// followed by issuers only held previously.
func Compare(rows []HoldingRow, ordered []SubmissionSummary) []ComparisonRow {
	if len(ordered) == 0 {
		return []ComparisonRow{}
	}
	current := rowsFor(rows, ordered[0].AccessionNumber)

	if len(ordered) == 1 {
		out := make([]ComparisonRow, 0, len(current))
		for _, r := range current {
			out = append(out, ComparisonRow{
				CompanyName:      r.CompanyName,
				ValueUSD:         int64(r.ValueUSD),
				ShareAmount:      int64(r.ShareAmount),
				ChangeAmount:     int64(r.ShareAmount),
				ChangePercentage: 100.0,
				ChangeStatus:     StatusNewInvestment,
				NewCompany:       true,
				AccessionNumber:  r.AccessionNumber,
			})
		}
		return out
	}

	previous := rowsFor(rows, ordered[1].AccessionNumber)
	prevShares := make(map[string]float64, len(previous))
	for _, r := range previous {
		if _, ok := prevShares[r.CompanyName]; !ok {
			prevShares[r.CompanyName] = r.ShareAmount
		}
	}
	held := make(map[string]bool, len(current))

	out := make([]ComparisonRow, 0, len(current)+len(previous))
	for _, r := range current {
		held[r.CompanyName] = true
		prev, hadPrev := prevShares[r.CompanyName]
		out = append(out, compareRow(r, prev, hadPrev))
	}
	for _, r := range previous {
		if held[r.CompanyName] {
			continue
		}
		out = append(out, ComparisonRow{
			CompanyName:         r.CompanyName,
			ValueUSD:            int64(r.ValueUSD),
			ShareAmount:         0,
			PreviousShareAmount: int64(r.ShareAmount),
			ChangeAmount:        int64(-r.ShareAmount),
			ChangePercentage:    -100,
			ChangeStatus:        StatusPositionClosed,
			AccessionNumber:     r.AccessionNumber,
		})
	}
	return out
}

func compareRow(r HoldingRow, prev float64, hadPrev bool) ComparisonRow {
	change := r.ShareAmount - prev

	var pct float64
	switch {
	case prev == 0 && r.ShareAmount > 0:
		pct = 100
	case prev == 0:
		pct = 0
	default:
		pct = change / prev * 100
	}

	status := StatusNoChange
	switch {
	case !hadPrev:
		status = StatusNewInvestment
	case r.ShareAmount > prev:
		status = StatusIncreased
	case r.ShareAmount < prev:
		status = StatusDecreased
	}

	return ComparisonRow{
		CompanyName:         r.CompanyName,
		ValueUSD:            int64(r.ValueUSD),
		ShareAmount:         int64(r.ShareAmount),
		PreviousShareAmount: int64(prev),
		ChangeAmount:        int64(change),
		ChangePercentage:    roundPercentage(pct),
		ChangeStatus:        status,
		NewCompany:          !hadPrev,
		AccessionNumber:     r.AccessionNumber,
	}
}

// roundPercentage rounds half-to-even at one decimal place.
func roundPercentage(p float64) float64 {
	return decimal.NewFromFloat(p).RoundBank(1).InexactFloat64()
}

func rowsFor(rows []HoldingRow, accession string) []HoldingRow {
	var out []HoldingRow
	for _, r := range rows {
		if r.AccessionNumber == accession {
			out = append(out, r)
		}
	}
	return out
}
