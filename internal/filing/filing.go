// Package filing parses SEC full-submission text documents into header
// metadata and normalized holding positions.
package filing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ParsedFiling is the result of parsing one full-submission document.
type ParsedFiling struct {
	Header
	Positions []Position
	Skipped   []BlockError

	// PortfolioValue sums the non-zero position values.
	PortfolioValue float64
	// OwnsCompanies counts positions that carry an issuer name.
	OwnsCompanies int
}

// Parse extracts the header and all holding positions from raw. It never
// fails: missing header fields stay nil and malformed blocks land in Skipped.
func Parse(raw string) *ParsedFiling {
	pf := &ParsedFiling{Header: ExtractHeader(raw)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return pf
	}

	blocks, skipped := ExtractBlocks(doc)
	pf.Skipped = skipped

	total := decimal.Zero
	for _, b := range blocks {
		p := b.Position()
		pf.Positions = append(pf.Positions, p)
		if p.Value != 0 {
			total = total.Add(decimal.NewFromFloat(p.Value))
		}
		if p.IssuerName != nil {
			pf.OwnsCompanies++
		}
	}
	pf.PortfolioValue = total.InexactFloat64()
	return pf
}

// ParseBytes decodes b with DecodeText and parses the result.
func ParseBytes(b []byte) *ParsedFiling {
	return Parse(DecodeText(b))
}
