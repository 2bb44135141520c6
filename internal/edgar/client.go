// Package edgar talks to the SEC EDGAR archive: per-CIK filing indexes,
// full-submission documents, the company registry, and the latest-filings feeds.
package edgar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
)

const (
	DefaultArchiveURL = "https://www.sec.gov"
	DefaultDataURL    = "https://data.sec.gov"
)

// Options configures the archive hosts. Empty fields fall back to the public SEC hosts.
type Options struct {
	ArchiveURL string
	DataURL    string
}

// Client reads filing indexes and documents from the archive.
type Client struct {
	f          fetcher.Fetcher
	archiveURL string
	dataURL    string
}

// NewClient creates a Client that downloads through f.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.ArchiveURL == "" {
		opts.ArchiveURL = DefaultArchiveURL
	}
	if opts.DataURL == "" {
		opts.DataURL = DefaultDataURL
	}
	return &Client{
		f:          f,
		archiveURL: strings.TrimRight(opts.ArchiveURL, "/"),
		dataURL:    strings.TrimRight(opts.DataURL, "/"),
	}
}

// FilingRef identifies one filing in a CIK's index.
type FilingRef struct {
	CIK             string
	AccessionNumber string
	Form            string
	FilingDate      time.Time
}

// submissionsIndex is the subset of data.sec.gov/submissions/CIK##########.json we read.
type submissionsIndex struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent filingArrays `json:"recent"`
		Files  []struct {
			Name       string `json:"name"`
			FilingFrom string `json:"filingFrom"`
			FilingTo   string `json:"filingTo"`
		} `json:"files"`
	} `json:"filings"`
}

// filingArrays holds the parallel arrays of one index page.
type filingArrays struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
}

// ListFilings returns the filings of the given form for a CIK with a filing date in
// [start, end], inclusive. Older index pages are read only when they overlap the window.
func (c *Client) ListFilings(ctx context.Context, cik string, form model.FilingType, start, end time.Time) ([]FilingRef, error) {
	log := zap.L().With(zap.String("component", "edgar.index"), zap.String("cik", cik))

	idx, err := c.fetchIndex(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, cik))
	if err != nil {
		return nil, err
	}

	refs := idx.Filings.Recent.filter(cik, form, start, end)

	for _, page := range idx.Filings.Files {
		from, errFrom := time.Parse(time.DateOnly, page.FilingFrom)
		to, errTo := time.Parse(time.DateOnly, page.FilingTo)
		if errFrom == nil && errTo == nil && (to.Before(start) || from.After(end)) {
			continue
		}
		arrays, err := c.fetchPage(ctx, fmt.Sprintf("%s/submissions/%s", c.dataURL, page.Name))
		if err != nil {
			return nil, err
		}
		refs = append(refs, arrays.filter(cik, form, start, end)...)
	}

	log.Debug("filing index read", zap.String("form", string(form)), zap.Int("filings", len(refs)))
	return refs, nil
}

func (c *Client) fetchIndex(ctx context.Context, url string) (*submissionsIndex, error) {
	idx, err := fetcher.DownloadJSON[submissionsIndex](ctx, c.f, url)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: read filing index")
	}
	return idx, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (*filingArrays, error) {
	page, err := fetcher.DownloadJSON[filingArrays](ctx, c.f, url)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: read filing index page")
	}
	return page, nil
}

func (a *filingArrays) filter(cik string, form model.FilingType, start, end time.Time) []FilingRef {
	n := min(len(a.AccessionNumber), len(a.FilingDate), len(a.Form))
	var refs []FilingRef
	for i := range n {
		if a.Form[i] != string(form) {
			continue
		}
		filed, err := time.Parse(time.DateOnly, a.FilingDate[i])
		if err != nil {
			zap.L().Warn("edgar: skipping filing with bad date",
				zap.String("accession", a.AccessionNumber[i]),
				zap.String("filing_date", a.FilingDate[i]),
			)
			continue
		}
		if filed.Before(start) || filed.After(end) {
			continue
		}
		refs = append(refs, FilingRef{
			CIK:             cik,
			AccessionNumber: a.AccessionNumber[i],
			Form:            a.Form[i],
			FilingDate:      filed,
		})
	}
	return refs
}

// DocumentURL returns the full-submission text URL for a filing.
func (c *Client) DocumentURL(ref FilingRef) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s.txt",
		c.archiveURL,
		model.TrimCIK(ref.CIK),
		strings.ReplaceAll(ref.AccessionNumber, "-", ""),
		ref.AccessionNumber,
	)
}

// DownloadFiling saves the full-submission text of a filing to path.
func (c *Client) DownloadFiling(ctx context.Context, ref FilingRef, path string) (int64, error) {
	n, err := c.f.DownloadToFile(ctx, c.DocumentURL(ref), path)
	if err != nil {
		return n, eris.Wrapf(err, "edgar: download filing %s", ref.AccessionNumber)
	}
	return n, nil
}
