package edgar

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

// LatestFiling is one entry of the EDGAR "current events" feed.
type LatestFiling struct {
	CompanyName     string `json:"company_name"`
	FormType        string `json:"form_type"`
	CIK             string `json:"cik"`
	FiledDate       string `json:"filed_date"`
	AccessionNumber string `json:"accession_number"`
	Link            string `json:"link,omitempty"`
}

var (
	// "13F-HR - BERKSHIRE HATHAWAY INC (0001067983) (Filer)"
	feedTitleRe     = regexp.MustCompile(`^(\S+)\s+-\s+(.+?)\s+\((\d{1,10})\)\s+\(([^)]*)\)\s*$`)
	feedFiledRe     = regexp.MustCompile(`<b>Filed:</b>\s*(\d{4}-\d{2}-\d{2})`)
	feedAccessionRe = regexp.MustCompile(`<b>AccNo:</b>\s*([\d-]+)`)
)

// FeedURL returns the atom feed of the most recent filings of a form.
func (c *Client) FeedURL(form model.FilingType, count int) string {
	return fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcurrent&type=%s&company=&dateb=&owner=include&start=0&count=%d&output=atom",
		c.archiveURL, strings.ToLower(string(form)), count)
}

// LatestFilings reads the current-events feed for a form. Entries whose title or
// summary cannot be parsed are logged and skipped.
func (c *Client) LatestFilings(ctx context.Context, form model.FilingType, count int) ([]LatestFiling, error) {
	if count <= 0 {
		count = 20
	}
	body, err := c.f.Download(ctx, c.FeedURL(form, count))
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: fetch %s feed", form)
	}
	defer body.Close() //nolint:errcheck

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: parse %s feed", form)
	}

	out := make([]LatestFiling, 0, len(feed.Items))
	for _, item := range feed.Items {
		lf, ok := parseFeedItem(item)
		if !ok {
			zap.L().Warn("edgar: skipping unparseable feed entry", zap.String("title", item.Title))
			continue
		}
		out = append(out, lf)
	}
	return out, nil
}

func parseFeedItem(item *gofeed.Item) (LatestFiling, bool) {
	m := feedTitleRe.FindStringSubmatch(strings.TrimSpace(item.Title))
	if m == nil {
		return LatestFiling{}, false
	}
	cik, err := model.NormalizeCIK(m[3])
	if err != nil {
		return LatestFiling{}, false
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	filed := feedFiledRe.FindStringSubmatch(summary)
	acc := feedAccessionRe.FindStringSubmatch(summary)
	if filed == nil || acc == nil {
		return LatestFiling{}, false
	}

	return LatestFiling{
		CompanyName:     m[2],
		FormType:        m[1],
		CIK:             cik,
		FiledDate:       filed[1],
		AccessionNumber: acc[1],
		Link:            item.Link,
	}, true
}
