package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/db"
	"github.com/sells-group/holdings-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	submissionColumns = `id, cik, company_name, submission_type, filed_of_date, accession_number,
		period_of_portfolio, fund_id, fund_portfolio_value, fund_owns_companies`
	holdingColumns = `id, company_name, value_usd, share_amount, cusip, cik, accession_number,
		period_of_portfolio, fund_id`
)

// preparedStatements lists the ingestion lookups prepared on each new connection.
var preparedStatements = map[string]string{
	"get_fund_by_cik": `SELECT id, fund_name, cik FROM funds WHERE cik = $1 ORDER BY seq LIMIT 1`,
	"get_submission":  `SELECT ` + submissionColumns + ` FROM submissions WHERE accession_number = $1`,
	"find_holding":    `SELECT ` + holdingColumns + ` FROM holdings WHERE accession_number = $1 AND company_name = $2 LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// querier is satisfied by both db.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Funds ---

func (s *PostgresStore) GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error) {
	return pgGetFundByCIK(ctx, s.pool, cik)
}

func pgGetFundByCIK(ctx context.Context, q querier, cik string) (*model.Fund, error) {
	var f model.Fund
	err := q.QueryRow(ctx,
		`SELECT id, fund_name, cik FROM funds WHERE cik = $1 ORDER BY seq LIMIT 1`,
		cik,
	).Scan(&f.ID, &f.FundName, &f.CIK)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get fund %s", cik)
	}
	return &f, nil
}

func (s *PostgresStore) SearchFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fund_name, cik FROM funds
		 WHERE fund_name ILIKE '%' || $1 || '%' OR cik = $2
		 ORDER BY fund_name, seq LIMIT $3`,
		filter.Query, padCIKQuery(filter.Query), searchLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search funds")
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.FundName, &f.CIK); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fund")
		}
		funds = append(funds, f)
	}
	return funds, eris.Wrap(rows.Err(), "postgres: search funds iterate")
}

// InsertFunds bulk-loads funds with COPY. IDs are generated for rows that lack one.
func (s *PostgresStore) InsertFunds(ctx context.Context, funds []model.Fund) (int64, error) {
	rows := make([][]any, 0, len(funds))
	for i := range funds {
		if funds[i].ID == "" {
			funds[i].ID = uuid.New().String()
		}
		rows = append(rows, []any{funds[i].ID, funds[i].FundName, funds[i].CIK})
	}
	return db.CopyChunked(ctx, s.pool, "funds", []string{"id", "fund_name", "cik"}, rows, db.DefaultCopyChunk)
}

// MergeDuplicateFunds collapses funds sharing a CIK onto the earliest-inserted row,
// concatenating names in insertion order. References are repointed before the
// duplicates are deleted. Returns the number of rows removed.
func (s *PostgresStore) MergeDuplicateFunds(ctx context.Context) (int64, error) {
	var removed int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		steps := []struct {
			name string
			sql  string
		}{
			{"plan", `CREATE TEMP TABLE fund_merge ON COMMIT DROP AS
				SELECT id, keep_id FROM (
					SELECT id, first_value(id) OVER (PARTITION BY cik ORDER BY seq) AS keep_id
					FROM funds
				) ranked WHERE id <> keep_id`},
			{"rename", `UPDATE funds f SET fund_name = agg.names
				FROM (
					SELECT cik, string_agg(fund_name, ', ' ORDER BY seq) AS names
					FROM funds GROUP BY cik HAVING count(*) > 1
				) agg
				WHERE f.cik = agg.cik AND f.id IN (SELECT keep_id FROM fund_merge)`},
			{"submissions", `UPDATE submissions s SET fund_id = m.keep_id FROM fund_merge m WHERE s.fund_id = m.id`},
			{"holdings", `UPDATE holdings h SET fund_id = m.keep_id FROM fund_merge m WHERE h.fund_id = m.id`},
			{"favorites dedup", `DELETE FROM favorites fav USING fund_merge m
				WHERE fav.fund_id = m.id AND EXISTS (
					SELECT 1 FROM favorites k WHERE k.user_id = fav.user_id AND k.fund_id = m.keep_id
				)`},
			{"favorites", `UPDATE favorites fav SET fund_id = m.keep_id FROM fund_merge m WHERE fav.fund_id = m.id`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, step.sql); err != nil {
				return eris.Wrapf(err, "postgres: merge funds: %s", step.name)
			}
		}

		tag, err := tx.Exec(ctx, `DELETE FROM funds f USING fund_merge m WHERE f.id = m.id`)
		if err != nil {
			return eris.Wrap(err, "postgres: merge funds: delete")
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *PostgresStore) CountFunds(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM funds`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count funds")
	}
	return n, nil
}

// --- Submissions and holdings ---

func (s *PostgresStore) ListSubmissionsByCIK(ctx context.Context, cik string) ([]model.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE cik = $1 ORDER BY filed_of_date DESC, accession_number ASC`,
		cik,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list submissions %s", cik)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := pgScanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list submissions iterate")
}

func (s *PostgresStore) GetSubmission(ctx context.Context, accession string) (*model.Submission, error) {
	return pgGetSubmission(ctx, s.pool, accession)
}

func pgGetSubmission(ctx context.Context, q querier, accession string) (*model.Submission, error) {
	row := q.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE accession_number = $1`,
		accession,
	)
	sub, err := pgScanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func pgScanSubmission(row pgx.Row) (*model.Submission, error) {
	var sub model.Submission
	err := row.Scan(&sub.ID, &sub.CIK, &sub.CompanyName, &sub.SubmissionType, &sub.FiledOfDate,
		&sub.AccessionNumber, &sub.PeriodOfPortfolio, &sub.FundID, &sub.FundPortfolioValue, &sub.FundOwnsCompanies)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan submission")
	}
	return &sub, nil
}

func (s *PostgresStore) HasSubmissions(ctx context.Context, cik string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE cik = $1)`,
		cik,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has submissions %s", cik)
	}
	return exists, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context, accessions []string) ([]model.Holding, error) {
	if len(accessions) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+holdingColumns+` FROM holdings
		 WHERE accession_number = ANY($1)
		 ORDER BY company_name ASC, accession_number DESC`,
		accessions,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list holdings")
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h, err := pgScanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *h)
	}
	return holdings, eris.Wrap(rows.Err(), "postgres: list holdings iterate")
}

func pgScanHolding(row pgx.Row) (*model.Holding, error) {
	var h model.Holding
	err := row.Scan(&h.ID, &h.CompanyName, &h.ValueUSD, &h.ShareAmount, &h.CUSIP, &h.CIK,
		&h.AccessionNumber, &h.PeriodOfPortfolio, &h.FundID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan holding")
	}
	return &h, nil
}

// --- Favorites ---

func (s *PostgresStore) AddFavorite(ctx context.Context, userID, fundID string) (*model.Favorite, error) {
	fav := &model.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		FundID:    fundID,
		CreatedAt: time.Now().UTC(),
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO favorites (id, user_id, fund_id, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, fund_id) DO NOTHING`,
		fav.ID, fav.UserID, fav.FundID, fav.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: add favorite %s", fundID)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyFavorite
	}
	return fav, nil
}

func (s *PostgresStore) RemoveFavorite(ctx context.Context, userID, fundID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND fund_id = $2`,
		userID, fundID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove favorite %s", fundID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]model.Fund, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.fund_name, f.cik FROM favorites fav
		 JOIN funds f ON f.id = fav.fund_id
		 WHERE fav.user_id = $1 ORDER BY fav.created_at, fav.id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list favorites %s", userID)
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.FundName, &f.CIK); err != nil {
			return nil, eris.Wrap(err, "postgres: scan favorite")
		}
		funds = append(funds, f)
	}
	return funds, eris.Wrap(rows.Err(), "postgres: list favorites iterate")
}

// --- Fetch log ---

func (s *PostgresStore) StartFetch(ctx context.Context, cik string, filingType model.FilingType) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO fetch_log (cik, filing_type, status, started_at)
		 VALUES ($1, $2, 'running', now()) RETURNING id`,
		cik, string(filingType),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: start fetch %s %s", cik, filingType)
	}
	return id, nil
}

func (s *PostgresStore) CompleteFetch(ctx context.Context, fetchID int64, documents int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE fetch_log SET status = 'complete', completed_at = now(), documents = $1 WHERE id = $2`,
		documents, fetchID,
	)
	return eris.Wrapf(err, "postgres: complete fetch %d", fetchID)
}

func (s *PostgresStore) FailFetch(ctx context.Context, fetchID int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE fetch_log SET status = 'failed', completed_at = now(), error = $1 WHERE id = $2`,
		errMsg, fetchID,
	)
	return eris.Wrapf(err, "postgres: fail fetch %d", fetchID)
}

func (s *PostgresStore) ListFetches(ctx context.Context, cik string, limit int) ([]model.FetchEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cik, filing_type, status, started_at, completed_at, documents, error
		 FROM fetch_log WHERE ($1 = '' OR cik = $1)
		 ORDER BY started_at DESC, id DESC LIMIT $2`,
		cik, searchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fetches")
	}
	defer rows.Close()

	var entries []model.FetchEntry
	for rows.Next() {
		var e model.FetchEntry
		var errStr *string
		if err := rows.Scan(&e.ID, &e.CIK, &e.FilingType, &e.Status, &e.StartedAt, &e.CompletedAt, &e.Documents, &errStr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fetch entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list fetches iterate")
}

// --- Transactions ---

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error) {
	return pgGetFundByCIK(ctx, t.tx, cik)
}

func (t *pgTx) GetSubmission(ctx context.Context, accession string) (*model.Submission, error) {
	return pgGetSubmission(ctx, t.tx, accession)
}

func (t *pgTx) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.CIK, sub.CompanyName, sub.SubmissionType, sub.FiledOfDate, sub.AccessionNumber,
		sub.PeriodOfPortfolio, sub.FundID, sub.FundPortfolioValue, sub.FundOwnsCompanies,
	)
	return eris.Wrapf(err, "postgres: insert submission %s", sub.AccessionNumber)
}

func (t *pgTx) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE submissions SET cik = $1, company_name = $2, submission_type = $3, filed_of_date = $4,
		 period_of_portfolio = $5, fund_id = $6, fund_portfolio_value = $7, fund_owns_companies = $8
		 WHERE id = $9`,
		sub.CIK, sub.CompanyName, sub.SubmissionType, sub.FiledOfDate,
		sub.PeriodOfPortfolio, sub.FundID, sub.FundPortfolioValue, sub.FundOwnsCompanies, sub.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update submission %s", sub.AccessionNumber)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %s", sub.AccessionNumber)
	}
	return nil
}

func (t *pgTx) FindHolding(ctx context.Context, companyName, accession string) (*model.Holding, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE accession_number = $1 AND company_name = $2 LIMIT 1`,
		accession, companyName,
	)
	h, err := pgScanHolding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

func (t *pgTx) InsertHolding(ctx context.Context, h *model.Holding) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO holdings (`+holdingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.CompanyName, h.ValueUSD, h.ShareAmount, h.CUSIP, h.CIK,
		h.AccessionNumber, h.PeriodOfPortfolio, h.FundID,
	)
	return eris.Wrapf(err, "postgres: insert holding %s", h.CompanyName)
}

func (t *pgTx) UpdateHolding(ctx context.Context, h *model.Holding) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE holdings SET value_usd = $1, share_amount = $2, cusip = $3, cik = $4,
		 period_of_portfolio = $5, fund_id = $6 WHERE id = $7`,
		h.ValueUSD, h.ShareAmount, h.CUSIP, h.CIK, h.PeriodOfPortfolio, h.FundID, h.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update holding %s", h.CompanyName)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("holding not found: %s", h.ID)
	}
	return nil
}

// padCIKQuery returns the normalized CIK for an all-digit query, or "" otherwise.
func padCIKQuery(q string) string {
	cik, err := model.NormalizeCIK(q)
	if err != nil {
		return ""
	}
	return cik
}
