package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

var (
	// ErrNotFound is returned when a lookup by natural key matches no row.
	ErrNotFound = eris.New("store: not found")

	// ErrAlreadyFavorite is returned when a (user, fund) pair already exists.
	ErrAlreadyFavorite = eris.New("store: fund is already in favorites")
)

// FundFilter specifies criteria for searching funds.
type FundFilter struct {
	Query string `json:"q,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the holdings pipeline.
type Store interface {
	// Funds
	GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error)
	SearchFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error)
	InsertFunds(ctx context.Context, funds []model.Fund) (int64, error)
	MergeDuplicateFunds(ctx context.Context) (int64, error)
	CountFunds(ctx context.Context) (int64, error)

	// Submissions and holdings
	ListSubmissionsByCIK(ctx context.Context, cik string) ([]model.Submission, error)
	GetSubmission(ctx context.Context, accession string) (*model.Submission, error)
	HasSubmissions(ctx context.Context, cik string) (bool, error)
	ListHoldings(ctx context.Context, accessions []string) ([]model.Holding, error)

	// Favorites
	AddFavorite(ctx context.Context, userID, fundID string) (*model.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, fundID string) error
	ListFavorites(ctx context.Context, userID string) ([]model.Fund, error)

	// Fetch log
	StartFetch(ctx context.Context, cik string, filingType model.FilingType) (int64, error)
	CompleteFetch(ctx context.Context, fetchID int64, documents int) error
	FailFetch(ctx context.Context, fetchID int64, errMsg string) error
	ListFetches(ctx context.Context, cik string, limit int) ([]model.FetchEntry, error)

	// WithTx runs fn in one transaction. Any error returned by fn rolls back
	// every write made through the Tx.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the transactional view used by the holdings upserter.
type Tx interface {
	GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error)
	GetSubmission(ctx context.Context, accession string) (*model.Submission, error)
	InsertSubmission(ctx context.Context, sub *model.Submission) error
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	FindHolding(ctx context.Context, companyName, accession string) (*model.Holding, error)
	InsertHolding(ctx context.Context, h *model.Holding) error
	UpdateHolding(ctx context.Context, h *model.Holding) error
}

const defaultSearchLimit = 50

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}
