package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/holdings-cli/internal/model"
)

// sqliteInsertBatch is the number of funds inserted per transaction during seeding.
const sqliteInsertBatch = 1000

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer keeps per-filing transactions from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS funds (
	id        TEXT PRIMARY KEY,
	fund_name TEXT NOT NULL,
	cik       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_funds_cik ON funds(cik);

CREATE TABLE IF NOT EXISTS submissions (
	id                   TEXT PRIMARY KEY,
	cik                  TEXT NOT NULL,
	company_name         TEXT NOT NULL DEFAULT '',
	submission_type      TEXT NOT NULL DEFAULT '',
	filed_of_date        TEXT NOT NULL,
	accession_number     TEXT NOT NULL UNIQUE,
	period_of_portfolio  TEXT NOT NULL DEFAULT '',
	fund_id              TEXT NOT NULL REFERENCES funds(id),
	fund_portfolio_value REAL NOT NULL DEFAULT 0,
	fund_owns_companies  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_submissions_cik_filed ON submissions(cik, filed_of_date DESC);

CREATE TABLE IF NOT EXISTS holdings (
	id                  TEXT PRIMARY KEY,
	company_name        TEXT NOT NULL,
	value_usd           REAL NOT NULL DEFAULT 0,
	share_amount        REAL NOT NULL DEFAULT 0,
	cusip               TEXT NOT NULL DEFAULT '',
	cik                 TEXT NOT NULL,
	accession_number    TEXT NOT NULL REFERENCES submissions(accession_number),
	period_of_portfolio TEXT NOT NULL DEFAULT '',
	fund_id             TEXT NOT NULL REFERENCES funds(id)
);

CREATE INDEX IF NOT EXISTS idx_holdings_accession_company ON holdings(accession_number, company_name);

CREATE TABLE IF NOT EXISTS favorites (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	fund_id    TEXT NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, fund_id)
);

CREATE TABLE IF NOT EXISTS fetch_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	cik          TEXT NOT NULL,
	filing_type  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	documents    INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_fetch_log_cik_started ON fetch_log(cik, started_at DESC);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Funds ---

func (s *SQLiteStore) GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error) {
	return sqliteGetFundByCIK(ctx, s.db, cik)
}

func sqliteGetFundByCIK(ctx context.Context, q sqlQuerier, cik string) (*model.Fund, error) {
	var f model.Fund
	err := q.QueryRowContext(ctx,
		`SELECT id, fund_name, cik FROM funds WHERE cik = ? ORDER BY rowid LIMIT 1`,
		cik,
	).Scan(&f.ID, &f.FundName, &f.CIK)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get fund %s", cik)
	}
	return &f, nil
}

func (s *SQLiteStore) SearchFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fund_name, cik FROM funds
		 WHERE fund_name LIKE '%' || ? || '%' OR cik = ?
		 ORDER BY fund_name, rowid LIMIT ?`,
		filter.Query, padCIKQuery(filter.Query), searchLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search funds")
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.FundName, &f.CIK); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fund")
		}
		funds = append(funds, f)
	}
	return funds, eris.Wrap(rows.Err(), "sqlite: search funds iterate")
}

// InsertFunds inserts funds in batched transactions. IDs are generated for rows that lack one.
func (s *SQLiteStore) InsertFunds(ctx context.Context, funds []model.Fund) (int64, error) {
	var total int64
	for start := 0; start < len(funds); start += sqliteInsertBatch {
		end := min(start+sqliteInsertBatch, len(funds))
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO funds (id, fund_name, cik) VALUES (?, ?, ?)`)
			if err != nil {
				return eris.Wrap(err, "sqlite: prepare fund insert")
			}
			defer stmt.Close() //nolint:errcheck

			for i := start; i < end; i++ {
				if funds[i].ID == "" {
					funds[i].ID = uuid.New().String()
				}
				if _, err := stmt.ExecContext(ctx, funds[i].ID, funds[i].FundName, funds[i].CIK); err != nil {
					return eris.Wrapf(err, "sqlite: insert fund %s", funds[i].CIK)
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += int64(end - start)
	}
	return total, nil
}

// MergeDuplicateFunds collapses funds sharing a CIK onto the earliest-inserted row,
// concatenating names in insertion order. Returns the number of rows removed.
func (s *SQLiteStore) MergeDuplicateFunds(ctx context.Context) (int64, error) {
	log := zap.L().With(zap.String("component", "store.merge"))

	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, cik, fund_name FROM funds
			 WHERE cik IN (SELECT cik FROM funds GROUP BY cik HAVING count(*) > 1)
			 ORDER BY cik, rowid`,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: query duplicate funds")
		}

		type group struct {
			keepID string
			drop   []string
			names  []string
		}
		var groups []*group
		var cur *group
		var curCIK string
		for rows.Next() {
			var id, cik, name string
			if err := rows.Scan(&id, &cik, &name); err != nil {
				rows.Close()
				return eris.Wrap(err, "sqlite: scan duplicate fund")
			}
			if cur == nil || cik != curCIK {
				cur = &group{keepID: id}
				curCIK = cik
				groups = append(groups, cur)
			} else {
				cur.drop = append(cur.drop, id)
			}
			cur.names = append(cur.names, name)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return eris.Wrap(err, "sqlite: iterate duplicate funds")
		}

		for _, g := range groups {
			if _, err := tx.ExecContext(ctx, `UPDATE funds SET fund_name = ? WHERE id = ?`,
				strings.Join(g.names, ", "), g.keepID); err != nil {
				return eris.Wrapf(err, "sqlite: rename fund %s", g.keepID)
			}
			for _, id := range g.drop {
				for _, q := range []string{
					`UPDATE submissions SET fund_id = ? WHERE fund_id = ?`,
					`UPDATE holdings SET fund_id = ? WHERE fund_id = ?`,
					`UPDATE OR IGNORE favorites SET fund_id = ? WHERE fund_id = ?`,
				} {
					if _, err := tx.ExecContext(ctx, q, g.keepID, id); err != nil {
						return eris.Wrapf(err, "sqlite: repoint fund %s", id)
					}
				}
				if _, err := tx.ExecContext(ctx, `DELETE FROM funds WHERE id = ?`, id); err != nil {
					return eris.Wrapf(err, "sqlite: delete fund %s", id)
				}
				removed++
			}
		}
		log.Debug("merged duplicate funds", zap.Int("groups", len(groups)), zap.Int64("removed", removed))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *SQLiteStore) CountFunds(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM funds`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count funds")
	}
	return n, nil
}

// --- Submissions and holdings ---

func (s *SQLiteStore) ListSubmissionsByCIK(ctx context.Context, cik string) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE cik = ? ORDER BY filed_of_date DESC, accession_number ASC`,
		cik,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list submissions %s", cik)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list submissions iterate")
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, accession string) (*model.Submission, error) {
	return sqliteGetSubmission(ctx, s.db, accession)
}

func sqliteGetSubmission(ctx context.Context, q sqlQuerier, accession string) (*model.Submission, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE accession_number = ?`,
		accession,
	)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sub, err
}

func (s *SQLiteStore) HasSubmissions(ctx context.Context, cik string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE cik = ?)`,
		cik,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has submissions %s", cik)
	}
	return exists, nil
}

func (s *SQLiteStore) ListHoldings(ctx context.Context, accessions []string) ([]model.Holding, error) {
	if len(accessions) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(accessions)), ", ")
	args := make([]any, len(accessions))
	for i, a := range accessions {
		args[i] = a
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings
		 WHERE accession_number IN (`+placeholders+`)
		 ORDER BY company_name ASC, accession_number DESC`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list holdings")
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *h)
	}
	return holdings, eris.Wrap(rows.Err(), "sqlite: list holdings iterate")
}

// --- Favorites ---

func (s *SQLiteStore) AddFavorite(ctx context.Context, userID, fundID string) (*model.Favorite, error) {
	fav := &model.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		FundID:    fundID,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO favorites (id, user_id, fund_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, fund_id) DO NOTHING`,
		fav.ID, fav.UserID, fav.FundID, fav.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: add favorite %s", fundID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, ErrAlreadyFavorite
	}
	return fav, nil
}

func (s *SQLiteStore) RemoveFavorite(ctx context.Context, userID, fundID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND fund_id = ?`,
		userID, fundID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove favorite %s", fundID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListFavorites(ctx context.Context, userID string) ([]model.Fund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.fund_name, f.cik FROM favorites fav
		 JOIN funds f ON f.id = fav.fund_id
		 WHERE fav.user_id = ? ORDER BY fav.created_at, fav.rowid`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list favorites %s", userID)
	}
	defer rows.Close()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.FundName, &f.CIK); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan favorite")
		}
		funds = append(funds, f)
	}
	return funds, eris.Wrap(rows.Err(), "sqlite: list favorites iterate")
}

// --- Fetch log ---

func (s *SQLiteStore) StartFetch(ctx context.Context, cik string, filingType model.FilingType) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_log (cik, filing_type, status, started_at) VALUES (?, ?, 'running', ?)`,
		cik, string(filingType), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start fetch %s %s", cik, filingType)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: fetch log id")
}

func (s *SQLiteStore) CompleteFetch(ctx context.Context, fetchID int64, documents int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fetch_log SET status = 'complete', completed_at = ?, documents = ? WHERE id = ?`,
		time.Now().UTC(), documents, fetchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete fetch %d", fetchID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) FailFetch(ctx context.Context, fetchID int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fetch_log SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errMsg, fetchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail fetch %d", fetchID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListFetches(ctx context.Context, cik string, limit int) ([]model.FetchEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cik, filing_type, status, started_at, completed_at, documents, error
		 FROM fetch_log WHERE (? = '' OR cik = ?)
		 ORDER BY started_at DESC, id DESC LIMIT ?`,
		cik, cik, searchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fetches")
	}
	defer rows.Close()

	var entries []model.FetchEntry
	for rows.Next() {
		var e model.FetchEntry
		var filingType, status string
		var completedAt sql.NullTime
		var errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.CIK, &filingType, &status, &e.StartedAt, &completedAt, &e.Documents, &errStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fetch entry")
		}
		e.FilingType = model.FilingType(filingType)
		e.Status = model.FetchStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list fetches iterate")
}

// --- Transactions ---

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqliteTx{tx: tx})
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetFundByCIK(ctx context.Context, cik string) (*model.Fund, error) {
	return sqliteGetFundByCIK(ctx, t.tx, cik)
}

func (t *sqliteTx) GetSubmission(ctx context.Context, accession string) (*model.Submission, error) {
	return sqliteGetSubmission(ctx, t.tx, accession)
}

func (t *sqliteTx) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.CIK, sub.CompanyName, sub.SubmissionType, sub.FiledOfDate.Format(time.DateOnly),
		sub.AccessionNumber, sub.PeriodOfPortfolio, sub.FundID, sub.FundPortfolioValue, sub.FundOwnsCompanies,
	)
	return eris.Wrapf(err, "sqlite: insert submission %s", sub.AccessionNumber)
}

func (t *sqliteTx) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE submissions SET cik = ?, company_name = ?, submission_type = ?, filed_of_date = ?,
		 period_of_portfolio = ?, fund_id = ?, fund_portfolio_value = ?, fund_owns_companies = ?
		 WHERE id = ?`,
		sub.CIK, sub.CompanyName, sub.SubmissionType, sub.FiledOfDate.Format(time.DateOnly),
		sub.PeriodOfPortfolio, sub.FundID, sub.FundPortfolioValue, sub.FundOwnsCompanies, sub.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update submission %s", sub.AccessionNumber)
	}
	return checkRowsAffected(res)
}

func (t *sqliteTx) FindHolding(ctx context.Context, companyName, accession string) (*model.Holding, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE accession_number = ? AND company_name = ? LIMIT 1`,
		accession, companyName,
	)
	h, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return h, err
}

func (t *sqliteTx) InsertHolding(ctx context.Context, h *model.Holding) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO holdings (`+holdingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.CompanyName, h.ValueUSD, h.ShareAmount, h.CUSIP, h.CIK,
		h.AccessionNumber, h.PeriodOfPortfolio, h.FundID,
	)
	return eris.Wrapf(err, "sqlite: insert holding %s", h.CompanyName)
}

func (t *sqliteTx) UpdateHolding(ctx context.Context, h *model.Holding) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE holdings SET value_usd = ?, share_amount = ?, cusip = ?, cik = ?,
		 period_of_portfolio = ?, fund_id = ? WHERE id = ?`,
		h.ValueUSD, h.ShareAmount, h.CUSIP, h.CIK, h.PeriodOfPortfolio, h.FundID, h.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update holding %s", h.CompanyName)
	}
	return checkRowsAffected(res)
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubmission(row scannable) (*model.Submission, error) {
	var sub model.Submission
	var filed string
	err := row.Scan(&sub.ID, &sub.CIK, &sub.CompanyName, &sub.SubmissionType, &filed,
		&sub.AccessionNumber, &sub.PeriodOfPortfolio, &sub.FundID, &sub.FundPortfolioValue, &sub.FundOwnsCompanies)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan submission")
	}
	sub.FiledOfDate, err = time.Parse(time.DateOnly, filed)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse filed date %q", filed)
	}
	return &sub, nil
}

func scanHolding(row scannable) (*model.Holding, error) {
	var h model.Holding
	err := row.Scan(&h.ID, &h.CompanyName, &h.ValueUSD, &h.ShareAmount, &h.CUSIP, &h.CIK,
		&h.AccessionNumber, &h.PeriodOfPortfolio, &h.FundID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan holding")
	}
	return &h, nil
}
