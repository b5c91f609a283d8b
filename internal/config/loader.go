package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DAYLIGHT_* environment variable overrides, and
// returns the final Config. A missing file is not an error when path is empty
// or does not exist; the defaults and environment are used instead. The
// returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DAYLIGHT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "DAYLIGHT_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "DAYLIGHT_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.ApiKey, "KALSHI_API_KEY_ID") // compatibility alias
	setStr(&cfg.Kalshi.RsaPrivateKey, "DAYLIGHT_KALSHI_RSA_PRIVATE_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKey, "KALSHI_PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "DAYLIGHT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "DAYLIGHT_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "DAYLIGHT_KALSHI_KEY_PASSWORD")
	setInt(&cfg.Kalshi.EventLimit, "DAYLIGHT_KALSHI_EVENT_LIMIT")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "DAYLIGHT_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.EventLimit, "DAYLIGHT_POLYMARKET_EVENT_LIMIT")

	// ── Scan ──
	setInt(&cfg.Scan.MinSpread, "DAYLIGHT_SCAN_MIN_SPREAD")
	setInt(&cfg.Scan.ViewMinSpread, "DAYLIGHT_SCAN_VIEW_MIN_SPREAD")
	setBool(&cfg.Scan.AutoAlert, "DAYLIGHT_SCAN_AUTO_ALERT")
	setDuration(&cfg.Scan.CheckInterval, "DAYLIGHT_SCAN_CHECK_INTERVAL")
	setFloat64(&cfg.Scan.SimilarityThreshold, "DAYLIGHT_SCAN_SIMILARITY_THRESHOLD")
	setDuration(&cfg.Scan.FetchTimeout, "DAYLIGHT_SCAN_FETCH_TIMEOUT")
	setDuration(&cfg.Scan.LockTTL, "DAYLIGHT_SCAN_LOCK_TTL")
	setInt(&cfg.Scan.LedgerCap, "DAYLIGHT_SCAN_LEDGER_CAP")
	setInt(&cfg.Scan.HistoryCap, "DAYLIGHT_SCAN_HISTORY_CAP")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "DAYLIGHT_STORAGE_BACKEND")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "DAYLIGHT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "DAYLIGHT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "DAYLIGHT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "DAYLIGHT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "DAYLIGHT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "DAYLIGHT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "DAYLIGHT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "DAYLIGHT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "DAYLIGHT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "DAYLIGHT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DAYLIGHT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DAYLIGHT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DAYLIGHT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DAYLIGHT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DAYLIGHT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DAYLIGHT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DAYLIGHT_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "DAYLIGHT_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DAYLIGHT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DAYLIGHT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DAYLIGHT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DAYLIGHT_S3_BUCKET")
	setStr(&cfg.S3.KeyPrefix, "DAYLIGHT_S3_KEY_PREFIX")
	setStr(&cfg.S3.AccessKey, "DAYLIGHT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DAYLIGHT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DAYLIGHT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DAYLIGHT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchiveCron, "DAYLIGHT_S3_ARCHIVE_CRON")

	// ── Server ──
	setInt(&cfg.Server.Port, "DAYLIGHT_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setStringSlice(&cfg.Server.CORSOrigins, "DAYLIGHT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DAYLIGHT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DAYLIGHT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DAYLIGHT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DAYLIGHT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DAYLIGHT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DAYLIGHT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DAYLIGHT_MODE")
	setStr(&cfg.LogLevel, "DAYLIGHT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
