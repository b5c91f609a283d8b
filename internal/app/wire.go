package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/aaroncodesalot/daylight-prediction-markets/internal/blob/s3"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/cache/redis"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/config"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/crypto"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/notify"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/polymarket"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/memory"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/postgres"
)

// venueTimeout bounds a single venue API request.
const venueTimeout = 10 * time.Second

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Opportunities domain.OpportunityStore
	History       domain.PriceHistoryStore
	ScanConfig    domain.ScanConfigStore
	Alerts        domain.AlertStore
	Watchlist     domain.WatchlistStore
	Audit         domain.AuditStore

	// Caches and coordination
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil when S3 is disabled.
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Venues
	Kalshi *kalshi.Client
	Gamma  *polymarket.GammaClient

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Persistence ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		stores := pgClient.Stores()
		deps.Opportunities = stores.Opportunities
		deps.History = stores.History
		deps.ScanConfig = stores.ScanConfig
		deps.Alerts = stores.Alerts
		deps.Watchlist = stores.Watchlist
		deps.Audit = stores.Audit
	default:
		logger.WarnContext(ctx, "wire: memory storage selected, state is lost on restart")
		deps.Opportunities = memory.NewOpportunityStore()
		deps.History = memory.NewPriceHistoryStore()
		deps.ScanConfig = memory.NewScanConfigStore()
		deps.Alerts = memory.NewAlertStore()
		deps.Watchlist = memory.NewWatchlistStore()
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis (optional; in-process fallbacks otherwise) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.History = redis.NewHistoryStore(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
	} else {
		deps.MarketCache = memory.NewMarketCache()
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus(int(cfg.Redis.StreamMaxLen))
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			KeyPrefix:      cfg.S3.KeyPrefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3Client.Health(hctx); err != nil {
			logger.Warn("s3 bucket not reachable; archive uploads will retry on schedule",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		cancel()
		deps.BlobReader = s3Client
		deps.Archiver = s3blob.NewArchiver(s3Client, deps.Audit)
	}

	// --- Venues ---
	deps.Kalshi = kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, venueTimeout)
	if key := cfg.Kalshi.Key(); key.Configured() {
		pemBytes, err := crypto.LoadKey(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
		if err := deps.Kalshi.SetRSAPrivateKey(pemBytes); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
	}
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, venueTimeout)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, "Daylight"))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
