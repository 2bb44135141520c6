package filing

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Header holds the filing metadata found in the SEC-HEADER block.
// A field is nil when its line is absent or its value cannot be parsed.
type Header struct {
	CIK             *string
	AccessionNumber *string
	CompanyName     *string
	SubmissionType  *string
	FiledDate       *time.Time
	ReportingPeriod *string
}

// HeaderExtractor binds a header field to the line prefix that carries it and
// the parser that stores its value. Parse reports false when the value is
// unusable; the field then stays nil.
type HeaderExtractor struct {
	Field  string
	Prefix string
	Parse  func(value string, h *Header) bool
}

// HeaderExtractors is the field table applied by ExtractHeader.
var HeaderExtractors = []HeaderExtractor{
	{Field: "cik", Prefix: "CENTRAL INDEX KEY:", Parse: parseCIK},
	{Field: "accession_number", Prefix: "ACCESSION NUMBER:", Parse: setString(func(h *Header) **string { return &h.AccessionNumber })},
	{Field: "company_name", Prefix: "COMPANY CONFORMED NAME:", Parse: setString(func(h *Header) **string { return &h.CompanyName })},
	{Field: "submission_type", Prefix: "CONFORMED SUBMISSION TYPE:", Parse: setString(func(h *Header) **string { return &h.SubmissionType })},
	{Field: "filed_date", Prefix: "FILED AS OF DATE:", Parse: parseFiledDate},
	{Field: "reporting_period", Prefix: "CONFORMED PERIOD OF REPORT:", Parse: parseReportingPeriod},
}

// ExtractHeader scans raw line by line once, applying every extractor.
// Only the first occurrence of each prefix is considered.
func ExtractHeader(raw string) Header {
	var h Header
	done := make([]bool, len(HeaderExtractors))
	remaining := len(HeaderExtractors)

	for line := range strings.Lines(raw) {
		if remaining == 0 {
			break
		}
		for i, ex := range HeaderExtractors {
			if done[i] {
				continue
			}
			idx := strings.Index(line, ex.Prefix)
			if idx < 0 {
				continue
			}
			value := strings.TrimSpace(line[idx+len(ex.Prefix):])
			if value == "" {
				continue
			}
			ex.Parse(value, &h)
			done[i] = true
			remaining--
		}
	}
	return h
}

func setString(field func(h *Header) **string) func(string, *Header) bool {
	return func(value string, h *Header) bool {
		v := value
		*field(h) = &v
		return true
	}
}

func parseCIK(value string, h *Header) bool {
	end := strings.IndexFunc(value, func(r rune) bool { return !unicode.IsDigit(r) })
	if end < 0 {
		end = len(value)
	}
	if end == 0 {
		return false
	}
	cik := value[:end]
	h.CIK = &cik
	return true
}

func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse("20060102", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseFiledDate(value string, h *Header) bool {
	t, ok := parseDate(value)
	if !ok {
		return false
	}
	h.FiledDate = &t
	return true
}

func parseReportingPeriod(value string, h *Header) bool {
	t, ok := parseDate(value)
	if !ok {
		return false
	}
	label := QuarterLabel(t)
	h.ReportingPeriod = &label
	return true
}

// QuarterLabel formats t as "{year} Q{quarter}".
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("%d Q%d", t.Year(), (int(t.Month())-1)/3+1)
}
