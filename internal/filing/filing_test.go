package filing

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestParse_13F(t *testing.T) {
	pf := Parse(thirteenFDoc)

	require.NotNil(t, pf.CIK)
	assert.Equal(t, "0001067983", *pf.CIK)
	require.NotNil(t, pf.AccessionNumber)
	assert.Equal(t, "0001067983-24-000012", *pf.AccessionNumber)
	require.NotNil(t, pf.CompanyName)
	assert.Equal(t, "BERKSHIRE HATHAWAY INC", *pf.CompanyName)
	require.NotNil(t, pf.SubmissionType)
	assert.Equal(t, "13F-HR", *pf.SubmissionType)
	require.NotNil(t, pf.FiledDate)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), *pf.FiledDate)
	require.NotNil(t, pf.ReportingPeriod)
	assert.Equal(t, "2024 Q1", *pf.ReportingPeriod)

	require.Len(t, pf.Positions, 2)
	assert.Equal(t, Position{
		IssuerName: strp("APPLE INC"),
		CUSIP:      strp("037833100"),
		Value:      135364000,
		Shares:     789368450,
	}, pf.Positions[0])
	assert.Equal(t, "CHEVRON CORP NEW", *pf.Positions[1].IssuerName)

	assert.InDelta(t, 154168000, pf.PortfolioValue, 0.001)
	assert.Equal(t, 2, pf.OwnsCompanies)
	assert.Empty(t, pf.Skipped)
}

func TestParse_13FNamespacePrefix(t *testing.T) {
	pf := Parse(prefixedDoc)

	require.Len(t, pf.Positions, 1)
	p := pf.Positions[0]
	assert.Equal(t, "MICROSOFT CORP", *p.IssuerName)
	assert.Equal(t, "594918104", *p.CUSIP)
	assert.Equal(t, 4200.0, p.Value)
	assert.Equal(t, 10.0, p.Shares)
	assert.Equal(t, "2023 Q4", *pf.ReportingPeriod)
}

func TestParse_NPORT(t *testing.T) {
	pf := Parse(nportDoc)

	require.Len(t, pf.Positions, 3)
	assert.Equal(t, "Brookfield Corp", *pf.Positions[0].IssuerName)
	assert.Equal(t, "11271J107", *pf.Positions[0].CUSIP)
	assert.Equal(t, 52021.25, pf.Positions[0].Value)
	assert.Equal(t, 1250.5, pf.Positions[0].Shares)

	assert.Nil(t, pf.Positions[2].IssuerName)

	// Zero values are skipped in the sum; nameless positions are not counted.
	assert.InDelta(t, 52091.75, pf.PortfolioValue, 1e-9)
	assert.Equal(t, 2, pf.OwnsCompanies)
	assert.Equal(t, "NPORT-P", *pf.SubmissionType)
	assert.Equal(t, "2024 Q3", *pf.ReportingPeriod)
}

func TestParse_MalformedBlockSkipped(t *testing.T) {
	pf := Parse(malformedDoc)

	require.Len(t, pf.Positions, 2)
	assert.Equal(t, "GOOD CO", *pf.Positions[0].IssuerName)

	partial := pf.Positions[1]
	assert.Equal(t, "PARTIAL CO", *partial.IssuerName)
	assert.Nil(t, partial.CUSIP)
	assert.Zero(t, partial.Value)
	assert.Zero(t, partial.Shares)

	require.Len(t, pf.Skipped, 1)
	assert.Equal(t, 1, pf.Skipped[0].Index)
	assert.Contains(t, pf.Skipped[0].Error(), "parse value")

	assert.Equal(t, 100.0, pf.PortfolioValue)
	assert.Equal(t, 2, pf.OwnsCompanies)
}

func TestParse_NonFiniteBlockSkipped(t *testing.T) {
	for _, tc := range []struct{ name, value, balance string }{
		{"nan value", "NaN", "10"},
		{"infinite balance", "250.5", "Infinity"},
		{"negative inf value", "-Inf", "10"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := `<invstOrSec><name>BAD FUND</name><valUSD>` + tc.value + `</valUSD><balance>` + tc.balance + `</balance></invstOrSec>
<invstOrSec><name>GOOD FUND</name><cusip>11271J107</cusip><valUSD>75.5</valUSD><balance>3</balance></invstOrSec>`

			var pf *ParsedFiling
			require.NotPanics(t, func() { pf = Parse(raw) })

			require.Len(t, pf.Positions, 1)
			assert.Equal(t, "GOOD FUND", *pf.Positions[0].IssuerName)
			require.Len(t, pf.Skipped, 1)
			assert.Equal(t, 0, pf.Skipped[0].Index)
			assert.Contains(t, pf.Skipped[0].Error(), "not a finite number")
			assert.Equal(t, 75.5, pf.PortfolioValue)
			assert.Equal(t, 1, pf.OwnsCompanies)
		})
	}
}

func TestParse_NoHeaderNoBlocks(t *testing.T) {
	pf := Parse("just some text\nwithout any structure\n")

	assert.Nil(t, pf.CIK)
	assert.Nil(t, pf.AccessionNumber)
	assert.Nil(t, pf.FiledDate)
	assert.Empty(t, pf.Positions)
	assert.Zero(t, pf.PortfolioValue)
	assert.Zero(t, pf.OwnsCompanies)
}

func TestExtractBlocks_Variants(t *testing.T) {
	raw := `<infotable><nameofissuer>A</nameofissuer><value>3</value><sshprnamt>4</sshprnamt></infotable>
<invstorsec><name>B</name><valusd>1.5</valusd><balance>2.25</balance></invstorsec>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	blocks, errs := ExtractBlocks(doc)
	require.Empty(t, errs)
	require.Len(t, blocks, 2)

	ib, ok := blocks[0].(IntegerBlock)
	require.True(t, ok)
	assert.Equal(t, int64(3), ib.Value)
	assert.Equal(t, int64(4), ib.Shares)

	fb, ok := blocks[1].(FloatBlock)
	require.True(t, ok)
	assert.Equal(t, 1.5, fb.Value)
	assert.Equal(t, Position{IssuerName: strp("B"), Value: 1.5, Shares: 2.25}, fb.Position())
}

func TestExtractHeader(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		assert func(t *testing.T, h Header)
	}{
		{
			name: "first occurrence wins",
			raw:  "COMPANY CONFORMED NAME:\tFILER ONE\nCOMPANY CONFORMED NAME:\tFILER TWO\n",
			assert: func(t *testing.T, h Header) {
				require.NotNil(t, h.CompanyName)
				assert.Equal(t, "FILER ONE", *h.CompanyName)
			},
		},
		{
			name: "value trimmed",
			raw:  "ACCESSION NUMBER:   0000000001-24-000001   \r\n",
			assert: func(t *testing.T, h Header) {
				require.NotNil(t, h.AccessionNumber)
				assert.Equal(t, "0000000001-24-000001", *h.AccessionNumber)
			},
		},
		{
			name: "unparseable date is nil",
			raw:  "FILED AS OF DATE:\t2024-05-15\nCONFORMED PERIOD OF REPORT:\tQ1\n",
			assert: func(t *testing.T, h Header) {
				assert.Nil(t, h.FiledDate)
				assert.Nil(t, h.ReportingPeriod)
			},
		},
		{
			name: "cik keeps leading digits",
			raw:  "CENTRAL INDEX KEY:\t0000320193 (Apple)\n",
			assert: func(t *testing.T, h Header) {
				require.NotNil(t, h.CIK)
				assert.Equal(t, "0000320193", *h.CIK)
			},
		},
		{
			name: "cik without digits is nil",
			raw:  "CENTRAL INDEX KEY:\tunknown\n",
			assert: func(t *testing.T, h Header) {
				assert.Nil(t, h.CIK)
			},
		},
		{
			name: "empty value line ignored",
			raw:  "CONFORMED SUBMISSION TYPE:\nCONFORMED SUBMISSION TYPE:\tNPORT-P\n",
			assert: func(t *testing.T, h Header) {
				require.NotNil(t, h.SubmissionType)
				assert.Equal(t, "NPORT-P", *h.SubmissionType)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assert(t, ExtractHeader(tt.raw))
		})
	}
}

func TestQuarterLabel(t *testing.T) {
	cases := map[time.Month]string{
		time.January:   "2024 Q1",
		time.March:     "2024 Q1",
		time.April:     "2024 Q2",
		time.June:      "2024 Q2",
		time.July:      "2024 Q3",
		time.September: "2024 Q3",
		time.October:   "2024 Q4",
		time.December:  "2024 Q4",
	}
	for m, want := range cases {
		assert.Equal(t, want, QuarterLabel(time.Date(2024, m, 28, 0, 0, 0, 0, time.UTC)), m.String())
	}
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain ascii", DecodeText([]byte("plain ascii")))
	assert.Equal(t, "Café", DecodeText([]byte("Café")))
	// 0x92 is a right single quote in Windows-1252 and invalid UTF-8.
	assert.Equal(t, "O’NEIL", DecodeText([]byte{'O', 0x92, 'N', 'E', 'I', 'L'}))
}

func TestParseBytes_Windows1252(t *testing.T) {
	raw := []byte("COMPANY CONFORMED NAME:\tL\xe9on Capital\n")
	pf := ParseBytes(raw)
	require.NotNil(t, pf.CompanyName)
	assert.Equal(t, "Léon Capital", *pf.CompanyName)
}
