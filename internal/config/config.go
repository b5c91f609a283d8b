// Package config defines the top-level configuration for the daylight scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/crypto"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DAYLIGHT_* environment variables.
type Config struct {
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Scan       ScanConfig       `toml:"scan"`
	Storage    StorageConfig    `toml:"storage"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API endpoints and credentials. The RSA key
// is only needed for the portfolio endpoints; market data is public.
type KalshiConfig struct {
	BaseURL           string `toml:"base_url"`
	ApiKey            string `toml:"api_key"`
	RsaPrivateKey     string `toml:"rsa_private_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
	EventLimit        int    `toml:"event_limit"`
}

// Key returns the RSA key sources in the form crypto.LoadKey expects.
func (k KalshiConfig) Key() crypto.KeyConfig {
	return crypto.KeyConfig{
		RawPEM:           k.RsaPrivateKey,
		PEMPath:          k.RsaPrivateKeyPath,
		EncryptedKeyPath: k.EncryptedKeyPath,
		KeyPassword:      k.KeyPassword,
	}
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost  string `toml:"gamma_host"`
	EventLimit int    `toml:"event_limit"`
}

// ScanConfig holds scan-cycle parameters. The first five fields seed
// domain.ScanConfig; persisted overrides take precedence at startup.
type ScanConfig struct {
	MinSpread           int      `toml:"min_spread"`
	ViewMinSpread       int      `toml:"view_min_spread"`
	AutoAlert           bool     `toml:"auto_alert"`
	CheckInterval       duration `toml:"check_interval"`
	SimilarityThreshold float64  `toml:"similarity_threshold"`
	FetchTimeout        duration `toml:"fetch_timeout"`
	LockTTL             duration `toml:"lock_ttl"`
	LedgerCap           int      `toml:"ledger_cap"`
	HistoryCap          int      `toml:"history_cap"`
}

// Domain returns the scan parameters as a domain.ScanConfig.
func (s ScanConfig) Domain() domain.ScanConfig {
	return domain.ScanConfig{
		MinSpread:           s.MinSpread,
		ViewMinSpread:       s.ViewMinSpread,
		AutoAlert:           s.AutoAlert,
		CheckInterval:       s.CheckInterval.Duration,
		SimilarityThreshold: s.SimilarityThreshold,
	}
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "postgres" or "memory".
	Backend string `toml:"backend"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	KeyPrefix      string `toml:"key_prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// ArchiveCron schedules the price history snapshot, 5-field cron syntax in UTC.
	ArchiveCron    string `toml:"archive_cron"`
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on mutating endpoints as a Bearer token.
	APIKey string `toml:"api_key"`
	// RateLimit is requests per minute per client address; 0 disables.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	scan := domain.DefaultScanConfig()
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:    "https://api.elections.kalshi.com/trade-api/v2",
			EventLimit: 100,
		},
		Polymarket: PolymarketConfig{
			GammaHost:  "https://gamma-api.polymarket.com",
			EventLimit: 50,
		},
		Scan: ScanConfig{
			MinSpread:           scan.MinSpread,
			ViewMinSpread:       scan.ViewMinSpread,
			AutoAlert:           scan.AutoAlert,
			CheckInterval:       duration{scan.CheckInterval},
			SimilarityThreshold: scan.SimilarityThreshold,
			FetchTimeout:        duration{15 * time.Second},
			LockTTL:             duration{2 * time.Minute},
			LedgerCap:           200,
			HistoryCap:          20,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10_000,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "daylight-archive",
			ForcePathStyle: true,
			ArchiveCron:    "0 0 * * *",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_opened", "alert_triggered", "scan_error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venues
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.Key().Configured() && c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key is required when an RSA key is configured")
	}
	if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
		errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	// Scan
	if err := c.Scan.Domain().Validate(); err != nil {
		errs = append(errs, "scan: "+err.Error())
	}
	if c.Scan.FetchTimeout.Duration <= 0 {
		errs = append(errs, "scan: fetch_timeout must be > 0")
	}
	if c.Scan.LockTTL.Duration <= 0 {
		errs = append(errs, "scan: lock_ttl must be > 0")
	}
	if c.Scan.LedgerCap < 1 {
		errs = append(errs, "scan: ledger_cap must be >= 1")
	}
	if c.Scan.HistoryCap < 2 {
		errs = append(errs, "scan: history_cap must be >= 2")
	}

	// Storage
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: postgres, memory)", c.Storage.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Mode != "monitor" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
