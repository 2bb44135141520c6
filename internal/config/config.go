package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Edgar   EdgarConfig   `yaml:"edgar" mapstructure:"edgar"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EdgarConfig configures access to the SEC archive and local staging.
type EdgarConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	ArchiveURL   string `yaml:"archive_url" mapstructure:"archive_url"`
	DataURL      string `yaml:"data_url" mapstructure:"data_url"`
	StagingDir   string `yaml:"staging_dir" mapstructure:"staging_dir"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DefaultStart string `yaml:"default_start" mapstructure:"default_start"`
	DefaultEnd   string `yaml:"default_end" mapstructure:"default_end"`
}

// Window parses the configured default fetch window.
func (e EdgarConfig) Window() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, e.DefaultStart)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "config: parse edgar.default_start")
	}
	end, err := time.Parse(time.DateOnly, e.DefaultEnd)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "config: parse edgar.default_end")
	}
	return start, end, nil
}

// CacheConfig configures the optional Redis snapshot cache.
type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr" mapstructure:"redis_addr"`
	Password   string `yaml:"password" mapstructure:"password"`
	DB         int    `yaml:"db" mapstructure:"db"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// MonitorConfig configures the N-period monitoring view.
type MonitorConfig struct {
	Periods int `yaml:"periods" mapstructure:"periods"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentFunds int `yaml:"max_concurrent_funds" mapstructure:"max_concurrent_funds"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file, and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOLDINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "holdings.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("edgar.user_agent", "")
	v.SetDefault("edgar.archive_url", "https://www.sec.gov")
	v.SetDefault("edgar.data_url", "https://data.sec.gov")
	v.SetDefault("edgar.staging_dir", "sec-edgar-filings")
	v.SetDefault("edgar.max_retries", 1)
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.default_start", "2022-02-01")
	v.SetDefault("edgar.default_end", "2024-07-24")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl_minutes", 5)
	v.SetDefault("monitor.periods", 5)
	v.SetDefault("batch.max_concurrent_funds", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command mode are present.
// Modes: "fetch" (archive access), "serve" (API server), "store" (database only).
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "store":
	case "fetch":
		if c.Edgar.UserAgent == "" {
			missing = append(missing, "edgar.user_agent is required (SEC fair-access policy)")
		}
		if c.Edgar.StagingDir == "" {
			missing = append(missing, "edgar.staging_dir is required")
		}
		if _, _, err := c.Edgar.Window(); err != nil {
			missing = append(missing, "edgar.default_start and edgar.default_end must be YYYY-MM-DD")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		missing = append(missing, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
