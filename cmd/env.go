package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/cache"
	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/staging"
	"github.com/sells-group/holdings-cli/internal/store"
)

// appEnv holds the store, archive client, and services shared by the
// fetch/holdings/batch/serve commands.
type appEnv struct {
	Store   store.Store
	Edgar   *edgar.Client
	Area    *staging.Area
	Fetcher *ingest.Fetcher
	Service *holdings.Service
	Redis   *redis.Client // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "holdings.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initMigratedStore opens the configured store and applies migrations.
func initMigratedStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newEdgarClient() *edgar.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Edgar.UserAgent,
		Timeout:    time.Duration(cfg.Edgar.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Edgar.MaxRetries,
		HostRates:  fetcher.SECHostRates(),
	})
	return edgar.NewClient(f, edgar.Options{
		ArchiveURL: cfg.Edgar.ArchiveURL,
		DataURL:    cfg.Edgar.DataURL,
	})
}

// initEnv builds the full pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("fetch"); err != nil {
		return nil, err
	}
	start, end, err := cfg.Edgar.Window()
	if err != nil {
		return nil, err
	}

	st, err := initMigratedStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store: st,
		Edgar: newEdgarClient(),
		Area:  staging.New(cfg.Edgar.StagingDir),
	}
	env.Fetcher = ingest.NewFetcher(env.Edgar, env.Area, st)

	var loader holdings.SnapshotLoader = holdings.NewStoreLoader(st)
	if cfg.Cache.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			// The cache is optional; serve straight from the store.
			zap.L().Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		} else {
			env.Redis = rdb
			loader = cache.NewSnapshotLoader(rdb, cfg.Cache.TTL(), loader, "")
		}
	}

	env.Service = holdings.NewService(loader, env.Fetcher, holdings.Options{
		DefaultStart:   start,
		DefaultEnd:     end,
		MonitorPeriods: cfg.Monitor.Periods,
	})
	return env, nil
}

// parseWindow parses optional --start/--end flag values.
func parseWindow(startFlag, endFlag string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startFlag != "" {
		if start, err = time.Parse(time.DateOnly, startFlag); err != nil {
			return start, end, eris.Wrapf(err, "parse --start %q", startFlag)
		}
	}
	if endFlag != "" {
		if end, err = time.Parse(time.DateOnly, endFlag); err != nil {
			return start, end, eris.Wrapf(err, "parse --end %q", endFlag)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, eris.Errorf("--end %s is before --start %s", endFlag, startFlag)
	}
	return start, end, nil
}
