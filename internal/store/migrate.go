package store

import (
	"cmp"
	"context"
	"embed"
	"io/fs"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID keys the advisory lock held while migrations run.
const migrationLockID = 7243013

const createMigrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type migration struct {
	name string
	sql  string
}

// loadMigrations returns the embedded Postgres migrations ordered by file name.
func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read migration dir")
	}
	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		data, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: read migration %s", e.Name())
		}
		out = append(out, migration{name: e.Name(), sql: string(data)})
	}
	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.name, b.name) })
	return out, nil
}

// migratePostgres applies every pending migration. Each file runs in its own
// transaction under a transaction-scoped advisory lock, so concurrent
// migrators serialize and the lock can never outlive its connection.
func migratePostgres(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	err = db.InTx(ctx, pool, func(tx pgx.Tx) error {
		if err := lockMigrations(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, createMigrationTable); err != nil {
			return eris.Wrap(err, "postgres: ensure migration table")
		}
		return nil
	})
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		err := db.InTx(ctx, pool, func(tx pgx.Tx) error {
			if err := lockMigrations(ctx, tx); err != nil {
				return err
			}
			// Another migrator may have applied it while we waited for the lock.
			var done bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)", m.name,
			).Scan(&done); err != nil {
				return eris.Wrapf(err, "postgres: check migration %s", m.name)
			}
			if done {
				log.Debug("migration applied concurrently", zap.String("file", m.name))
				return nil
			}

			log.Info("applying migration", zap.String("file", m.name))
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return eris.Wrapf(err, "postgres: apply migration %s", m.name)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", m.name); err != nil {
				return eris.Wrapf(err, "postgres: record migration %s", m.name)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func lockMigrations(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	return nil
}

func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan applied migrations")
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}
