// Package config defines the top-level configuration for the ledgerpulse
// ingestion service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEDGERPULSE_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Binance   BinanceConfig   `toml:"binance"`
	CoinGecko CoinGeckoConfig `toml:"coingecko"`
	XRPL      XRPLConfig      `toml:"xrpl"`
	Ingest    IngestConfig    `toml:"ingest"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // if empty, authentication is disabled
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// RedisConfig holds Redis connection parameters. Redis is the backbone for
// the signal bus, the ingest lock, and the latest-tick cache, so it is
// required in every mode.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. The payment archive
// is optional; when Enabled is false the service keeps events in memory only.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the long-term
// JSONL payment archive. Optional.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BinanceConfig holds the price feed endpoints.
type BinanceConfig struct {
	WsHost   string `toml:"ws_host"`
	RestHost string `toml:"rest_host"`
	Symbol   string `toml:"symbol"`
}

// CoinGeckoConfig holds the market data endpoints.
type CoinGeckoConfig struct {
	BaseURL string `toml:"base_url"`
	CoinID  string `toml:"coin_id"`
}

// XRPLConfig holds the ledger stream endpoint.
type XRPLConfig struct {
	NodeURL string `toml:"node_url"`
}

// IngestConfig holds timing parameters for the ingestion loops.
type IngestConfig struct {
	FlushInterval        duration `toml:"flush_interval"`
	LabelRefreshInterval duration `toml:"label_refresh_interval"`
	ArchiveInterval      duration `toml:"archive_interval"`
	RetentionDays        int      `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "ledgerpulse",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ledgerpulse-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Binance: BinanceConfig{
			WsHost:   "wss://stream.binance.com:9443",
			RestHost: "https://api.binance.com",
			Symbol:   "XRPUSDT",
		},
		CoinGecko: CoinGeckoConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			CoinID:  "ripple",
		},
		XRPL: XRPLConfig{
			NodeURL: "wss://s1.ripple.com",
		},
		Ingest: IngestConfig{
			FlushInterval:        duration{30 * time.Second},
			LabelRefreshInterval: duration{15 * time.Minute},
			ArchiveInterval:      duration{24 * time.Hour},
			RetentionDays:        30,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"ingest": true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, ingest, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Feeds — required for the modes that ingest.
	ingests := c.Mode == "full" || c.Mode == "ingest"
	if ingests {
		if c.Binance.WsHost == "" {
			errs = append(errs, "binance: ws_host must not be empty")
		}
		if c.Binance.Symbol == "" {
			errs = append(errs, "binance: symbol must not be empty")
		}
		if c.XRPL.NodeURL == "" {
			errs = append(errs, "xrpl: node_url must not be empty")
		}
		if c.Ingest.FlushInterval.Duration <= 0 {
			errs = append(errs, "ingest: flush_interval must be > 0")
		}
		if c.Ingest.RetentionDays < 1 {
			errs = append(errs, "ingest: retention_days must be >= 1")
		}
	}
	if c.CoinGecko.BaseURL == "" {
		errs = append(errs, "coingecko: base_url must not be empty")
	}
	if c.CoinGecko.CoinID == "" {
		errs = append(errs, "coingecko: coin_id must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
