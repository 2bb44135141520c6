package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
)

// formatUSD renders a dollar amount as "$1,234.56".
func formatUSD(amount float64) string {
	cents := decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// formatSubmissions writes the fund's filed submissions, newest first.
func formatSubmissions(out io.Writer, snap *holdings.Snapshot) {
	name := snap.Latest.CompanyName
	if snap.Fund != nil {
		name = snap.Fund.FundName
	}
	_, _ = fmt.Fprintf(out, "%s (CIK %s)\n\n", name, snap.CIK)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILED\tPERIOD\tTYPE\tACCESSION\tPORTFOLIO VALUE")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t---------\t---------------")
	for _, s := range snap.Submissions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.FiledOfDate.Format(time.DateOnly),
			s.PeriodOfPortfolio,
			s.SubmissionType,
			s.AccessionNumber,
			formatUSD(s.FundPortfolioValue),
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
}

// formatComparison writes the latest-vs-previous table.
func formatComparison(out io.Writer, rows []reconcile.ComparisonRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "COMPANY\tVALUE\tSHARES\tPREVIOUS\tCHANGE\tCHANGE %\tSTATUS\t")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%+d\t%.1f%%\t%s\t\n",
			truncate(r.CompanyName, 40),
			formatUSD(float64(r.ValueUSD)),
			r.ShareAmount,
			r.PreviousShareAmount,
			r.ChangeAmount,
			r.ChangePercentage,
			r.ChangeStatus,
		)
	}
	_ = w.Flush()
}

// formatMonitor writes the N-period share matrix.
func formatMonitor(out io.Writer, rows []reconcile.MonitorRow, headers []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t")+"\t")
	for _, r := range rows {
		cells := make([]string, 0, len(r.Shares)+1)
		cells = append(cells, truncate(r.CompanyName, 40))
		for _, n := range r.Shares {
			cells = append(cells, fmt.Sprintf("%d", n))
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	_ = w.Flush()
}

// formatFetchResult writes per-type download outcomes and ingest counts.
func formatFetchResult(out io.Writer, res *ingest.FetchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "CIK %s\n", res.CIK)
	_, _ = fmt.Fprintln(w, "TYPE\tDOCUMENTS\tRESULT")
	for _, t := range res.Types {
		result := "ok"
		switch {
		case t.Error != "":
			result = "error: " + truncate(t.Error, 60)
		case t.NotFound:
			result = "no filings"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", t.FilingType, t.Documents, result)
	}
	_ = w.Flush()
	formatIngestResult(out, &res.Ingest)
}

func formatIngestResult(out io.Writer, res *ingest.IngestResult) {
	_, _ = fmt.Fprintf(out, "ingested %d/%d documents (%d new submissions, %d holdings, %d without fund, %d failed)\n",
		res.Upserted, res.Documents, res.Submissions, res.Holdings, res.NoFund, res.Failed)
}

// formatStagedIngest reports an ingest-only run over the staging root.
func formatStagedIngest(out io.Writer, res *ingest.IngestResult, root string) {
	if res.Documents == 0 {
		_, _ = fmt.Fprintf(out, "no staged filings under %s\n", root)
		return
	}
	formatIngestResult(out, res)
}

// formatFetchEntries writes the fetch log.
func formatFetchEntries(out io.Writer, entries []model.FetchEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCIK\tTYPE\tSTATUS\tSTARTED\tDURATION\tDOCS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t---\t----\t------\t-------\t--------\t----\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.CIK,
			e.FilingType,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Documents,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

// formatFunds writes a fund list.
func formatFunds(out io.Writer, funds []model.Fund) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CIK\tNAME\tID")
	for _, f := range funds {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.CIK, f.FundName, f.ID)
	}
	_ = w.Flush()
}

// formatLatest writes the current-events feed.
func formatLatest(out io.Writer, filings []edgar.LatestFiling) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILED\tFORM\tCIK\tCOMPANY\tACCESSION")
	for _, f := range filings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.FiledDate, f.FormType, f.CIK, f.CompanyName, f.AccessionNumber)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
