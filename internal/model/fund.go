// Package model defines the entities shared by the ingestion pipeline, the store, and the API.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FilingType identifies an SEC form carrying holdings disclosures.
type FilingType string

const (
	FilingTypeNPORT FilingType = "NPORT-P"
	FilingType13F   FilingType = "13F-HR"
)

// FilingTypes lists the forms fetched for a fund, in fetch order.
var FilingTypes = []FilingType{FilingTypeNPORT, FilingType13F}

// Fund is a filing entity from the EDGAR company registry.
type Fund struct {
	ID       string `json:"id"`
	FundName string `json:"fund_name"`
	CIK      string `json:"cik"`
}

// Submission is one filed document, keyed by accession number.
type Submission struct {
	ID                 string    `json:"id"`
	CIK                string    `json:"cik"`
	CompanyName        string    `json:"company_name"`
	SubmissionType     string    `json:"submission_type"`
	FiledOfDate        time.Time `json:"filed_of_date"`
	AccessionNumber    string    `json:"accession_number"`
	PeriodOfPortfolio  string    `json:"period_of_portfolio"`
	FundID             string    `json:"fund_id"`
	FundPortfolioValue float64   `json:"fund_portfolio_value"`
	FundOwnsCompanies  int       `json:"fund_owns_companies"`
}

// Holding is one issuer position within a submission.
type Holding struct {
	ID                string  `json:"id"`
	CompanyName       string  `json:"company_name"`
	ValueUSD          float64 `json:"value_usd"`
	ShareAmount       float64 `json:"share_amount"`
	CUSIP             string  `json:"cusip"`
	CIK               string  `json:"cik"`
	AccessionNumber   string  `json:"accession_number"`
	PeriodOfPortfolio string  `json:"period_of_portfolio"`
	FundID            string  `json:"fund_id"`
}

// Favorite links an external user to a fund.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FundID    string    `json:"fund_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FetchStatus is the state of one archive fetch attempt.
type FetchStatus string

const (
	FetchStatusRunning  FetchStatus = "running"
	FetchStatusComplete FetchStatus = "complete"
	FetchStatusFailed   FetchStatus = "failed"
)

// FetchEntry represents a row in the fetch log.
type FetchEntry struct {
	ID          int64       `json:"id"`
	CIK         string      `json:"cik"`
	FilingType  FilingType  `json:"filing_type"`
	Status      FetchStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Documents   int         `json:"documents"`
	Error       string      `json:"error,omitempty"`
}

// NormalizeCIK returns the 10-digit zero-padded form of a CIK.
func NormalizeCIK(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.ToUpper(s), "CIK")
	if s == "" || len(s) > 10 {
		return "", eris.Errorf("model: invalid cik %q", raw)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", eris.Errorf("model: invalid cik %q", raw)
	}
	return fmt.Sprintf("%010d", n), nil
}

// TrimCIK strips leading zeros, as used in archive document paths.
func TrimCIK(cik string) string {
	t := strings.TrimLeft(cik, "0")
	if t == "" {
		return "0"
	}
	return t
}
