package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEDGERPULSE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. If path is empty,
// only defaults and environment overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LEDGERPULSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "LEDGERPULSE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LEDGERPULSE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LEDGERPULSE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LEDGERPULSE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LEDGERPULSE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LEDGERPULSE_SERVER_RATE_WINDOW")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LEDGERPULSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEDGERPULSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEDGERPULSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEDGERPULSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEDGERPULSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEDGERPULSE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "LEDGERPULSE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LEDGERPULSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LEDGERPULSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LEDGERPULSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LEDGERPULSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LEDGERPULSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LEDGERPULSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LEDGERPULSE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LEDGERPULSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LEDGERPULSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LEDGERPULSE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LEDGERPULSE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LEDGERPULSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEDGERPULSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEDGERPULSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEDGERPULSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEDGERPULSE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEDGERPULSE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEDGERPULSE_S3_FORCE_PATH_STYLE")

	// ── Binance ──
	setStr(&cfg.Binance.WsHost, "LEDGERPULSE_BINANCE_WS_HOST")
	setStr(&cfg.Binance.RestHost, "LEDGERPULSE_BINANCE_REST_HOST")
	setStr(&cfg.Binance.Symbol, "LEDGERPULSE_BINANCE_SYMBOL")

	// ── CoinGecko ──
	setStr(&cfg.CoinGecko.BaseURL, "LEDGERPULSE_COINGECKO_BASE_URL")
	setStr(&cfg.CoinGecko.CoinID, "LEDGERPULSE_COINGECKO_COIN_ID")

	// ── XRPL ──
	setStr(&cfg.XRPL.NodeURL, "LEDGERPULSE_XRPL_NODE_URL")

	// ── Ingest ──
	setDuration(&cfg.Ingest.FlushInterval, "LEDGERPULSE_INGEST_FLUSH_INTERVAL")
	setDuration(&cfg.Ingest.LabelRefreshInterval, "LEDGERPULSE_INGEST_LABEL_REFRESH_INTERVAL")
	setDuration(&cfg.Ingest.ArchiveInterval, "LEDGERPULSE_INGEST_ARCHIVE_INTERVAL")
	setInt(&cfg.Ingest.RetentionDays, "LEDGERPULSE_INGEST_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LEDGERPULSE_MODE")
	setStr(&cfg.LogLevel, "LEDGERPULSE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
