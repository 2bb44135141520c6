package reconcile

import (
	"cmp"
	"fmt"
	"slices"
)

// CompanyColumn is the first header of every monitor table.
const CompanyColumn = "Company Name"

// MonitorRow is one issuer across the monitored periods. Shares lines up with
// the monitor headers after CompanyColumn.
type MonitorRow struct {
	CompanyName string  `json:"company_name"`
	Shares      []int64 `json:"shares"`
}

// Monitor builds the wide share-count table over the n most recent
// submissions in ordered (all of them when n <= 0). Headers are CompanyColumn
// followed by period labels from oldest to newest; a label seen k > 1 times
// is suffixed with "_k". Rows are sorted by company name and absent
// issuer/period cells are 0.
func Monitor(rows []HoldingRow, ordered []SubmissionSummary, n int) ([]MonitorRow, []string) {
	if n > 0 && n < len(ordered) {
		ordered = ordered[:n]
	}

	// Labels are assigned newest first so the newest copy keeps the bare label.
	labels := make([]string, len(ordered))
	seen := make(map[string]int)
	for i, s := range ordered {
		seen[s.PeriodOfPortfolio]++
		label := s.PeriodOfPortfolio
		if k := seen[label]; k > 1 {
			label = fmt.Sprintf("%s_%d", label, k)
		}
		labels[i] = label
	}

	// column index, oldest first
	col := make(map[string]int, len(ordered))
	for i, s := range ordered {
		col[s.AccessionNumber] = len(ordered) - 1 - i
	}

	byCompany := make(map[string][]int64)
	for _, r := range rows {
		c, ok := col[r.AccessionNumber]
		if !ok {
			continue
		}
		shares, ok := byCompany[r.CompanyName]
		if !ok {
			shares = make([]int64, len(ordered))
			byCompany[r.CompanyName] = shares
		}
		shares[c] = int64(r.ShareAmount)
	}

	out := make([]MonitorRow, 0, len(byCompany))
	for name, shares := range byCompany {
		out = append(out, MonitorRow{CompanyName: name, Shares: shares})
	}
	slices.SortFunc(out, func(a, b MonitorRow) int { return cmp.Compare(a.CompanyName, b.CompanyName) })

	headers := make([]string, 0, len(ordered)+1)
	headers = append(headers, CompanyColumn)
	for i := len(labels) - 1; i >= 0; i-- {
		headers = append(headers, labels[i])
	}
	return out, headers
}
