package ingest

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/filing"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/staging"
	"github.com/sells-group/holdings-cli/internal/store"
)

// Archive is the subset of the EDGAR client used to fetch filings.
type Archive interface {
	ListFilings(ctx context.Context, cik string, form model.FilingType, start, end time.Time) ([]edgar.FilingRef, error)
	DownloadFiling(ctx context.Context, ref edgar.FilingRef, path string) (int64, error)
}

// TypeResult reports the download outcome for one filing type.
type TypeResult struct {
	FilingType model.FilingType `json:"filing_type"`
	Documents  int              `json:"documents"`
	NotFound   bool             `json:"not_found,omitempty"`
	Error      string           `json:"error,omitempty"`

	// Ingest is the ingestion pass run right after this type was fetched.
	// It covers everything staged for the CIK at that point.
	Ingest *IngestResult `json:"ingest,omitempty"`
}

// IngestResult counts the outcome of ingesting staged documents.
type IngestResult struct {
	Documents   int `json:"documents"`
	Upserted    int `json:"upserted"`
	NoFund      int `json:"no_fund"`
	Failed      int `json:"failed"`
	Holdings    int `json:"holdings"`
	Submissions int `json:"new_submissions"`
}

// FetchResult reports one Fetch call. Ingest is the final ingestion pass,
// with Submissions counting every submission created during the call.
type FetchResult struct {
	CIK    string       `json:"cik"`
	Types  []TypeResult `json:"types"`
	Ingest IngestResult `json:"ingest"`
}

// Fetcher downloads a CIK's filings into the staging area and ingests them.
type Fetcher struct {
	archive  Archive
	area     *staging.Area
	store    store.Store
	upserter *Upserter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFetcher creates a Fetcher.
func NewFetcher(archive Archive, area *staging.Area, st store.Store) *Fetcher {
	return &Fetcher{
		archive:  archive,
		area:     area,
		store:    st,
		upserter: NewUpserter(st),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockCIK serializes work on one CIK's staging directory.
func (f *Fetcher) lockCIK(cik string) func() {
	f.mu.Lock()
	l, ok := f.locks[cik]
	if !ok {
		l = &sync.Mutex{}
		f.locks[cik] = l
	}
	f.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Fetch downloads NPORT-P then 13F-HR filings for cik filed within
// [start, end]. After each type it ingests everything staged for the CIK,
// so earlier documents are upserted again. Download failures are logged and
// recorded in the result; only cancellation is returned.
func (f *Fetcher) Fetch(ctx context.Context, cik string, start, end time.Time) (*FetchResult, error) {
	unlock := f.lockCIK(cik)
	defer unlock()

	log := zap.L().With(zap.String("component", "ingest.fetch"), zap.String("cik", cik))
	log.Info("fetching filings",
		zap.Time("start", start),
		zap.Time("end", end),
	)

	result := &FetchResult{CIK: cik}
	var created int
	for _, ft := range model.FilingTypes {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "ingest: fetch cancelled")
		}
		tr := f.fetchType(ctx, log, cik, ft, start, end)

		ir, err := f.ingestCIK(ctx, cik)
		if ir != nil {
			tr.Ingest = ir
			created += ir.Submissions
			result.Ingest = *ir
		}
		result.Types = append(result.Types, tr)
		if err != nil {
			result.Ingest.Submissions = created
			return result, err
		}
	}
	result.Ingest.Submissions = created
	return result, nil
}

func (f *Fetcher) fetchType(ctx context.Context, log *zap.Logger, cik string, ft model.FilingType, start, end time.Time) TypeResult {
	log = log.With(zap.String("filing_type", string(ft)))
	tr := TypeResult{FilingType: ft}

	fetchID, logErr := f.store.StartFetch(ctx, cik, ft)
	if logErr != nil {
		log.Warn("failed to record fetch start", zap.Error(logErr))
	}

	n, err := f.download(ctx, cik, ft, start, end)
	tr.Documents = n

	if _, rmErr := f.area.RemoveIfEmpty(cik, ft); rmErr != nil {
		log.Warn("failed to remove empty staging dir", zap.Error(rmErr))
	}

	switch {
	case err == nil:
		log.Info("filings downloaded", zap.Int("documents", n))
	case fetcher.IsNotFound(err):
		tr.NotFound = true
		err = nil
		log.Info("no filings of this type for cik")
	default:
		tr.Error = err.Error()
		log.Error("fetch failed", zap.Error(err), zap.Int("documents", n))
	}

	if logErr == nil {
		if err != nil {
			logErr = f.store.FailFetch(ctx, fetchID, err.Error())
		} else {
			logErr = f.store.CompleteFetch(ctx, fetchID, n)
		}
		if logErr != nil {
			log.Warn("failed to record fetch outcome", zap.Error(logErr))
		}
	}
	return tr
}

func (f *Fetcher) download(ctx context.Context, cik string, ft model.FilingType, start, end time.Time) (int, error) {
	if err := f.area.Reset(cik, ft); err != nil {
		return 0, err
	}

	refs, err := f.archive.ListFilings(ctx, cik, ft, start, end)
	if err != nil {
		return 0, err
	}

	var n int
	for _, ref := range refs {
		path, err := f.area.DocumentPath(cik, ft, ref.AccessionNumber)
		if err != nil {
			return n, err
		}
		if _, err := f.archive.DownloadFiling(ctx, ref, path); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Ingest parses and upserts every document staged for cik.
func (f *Fetcher) Ingest(ctx context.Context, cik string) (*IngestResult, error) {
	unlock := f.lockCIK(cik)
	defer unlock()
	return f.ingestCIK(ctx, cik)
}

// IngestAll ingests every CIK present in the staging area.
func (f *Fetcher) IngestAll(ctx context.Context) (*IngestResult, error) {
	ciks, err := f.area.CIKs()
	if err != nil {
		return nil, err
	}
	total := &IngestResult{}
	for _, cik := range ciks {
		r, err := f.Ingest(ctx, cik)
		if err != nil {
			return total, err
		}
		total.add(r)
	}
	return total, nil
}

func (f *Fetcher) ingestCIK(ctx context.Context, cik string) (*IngestResult, error) {
	log := zap.L().With(zap.String("component", "ingest.ingest"), zap.String("cik", cik))

	docs, err := f.area.Documents(cik)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Documents: len(docs)}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "ingest: cancelled")
		}

		raw, err := os.ReadFile(doc.Path)
		if err != nil {
			result.Failed++
			log.Error("failed to read staged filing", zap.String("path", doc.Path), zap.Error(err))
			continue
		}

		ur, err := f.upserter.Upsert(ctx, filing.ParseBytes(raw))
		switch {
		case errors.Is(err, ErrFundNotFound):
			result.NoFund++
		case err != nil:
			result.Failed++
			log.Error("failed to ingest filing", zap.String("accession", doc.Accession), zap.Error(err))
		default:
			result.Upserted++
			result.Holdings += ur.HoldingsInserted + ur.HoldingsUpdated
			if ur.SubmissionCreated {
				result.Submissions++
			}
		}
	}

	log.Info("staged filings ingested",
		zap.Int("documents", result.Documents),
		zap.Int("upserted", result.Upserted),
		zap.Int("no_fund", result.NoFund),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *IngestResult) add(o *IngestResult) {
	r.Documents += o.Documents
	r.Upserted += o.Upserted
	r.NoFund += o.NoFund
	r.Failed += o.Failed
	r.Holdings += o.Holdings
	r.Submissions += o.Submissions
}
