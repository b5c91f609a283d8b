package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/alert"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/pipeline"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/polymarket"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/scanner"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/handler"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/ws"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/service"
)

// MonitorMode runs the scan loop on its timer and the archiver, without the
// HTTP API.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.run(ctx, deps, false, false)
}

// ServerMode serves the HTTP API. Scan cycles run only when a client
// triggers or requests one.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.run(ctx, deps, true, true)
}

// FullMode runs the timed scan loop, the archiver and the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, false, true)
}

func (a *App) run(ctx context.Context, deps *Dependencies, manual, withHTTP bool) error {
	g, ctx := errgroup.WithContext(ctx)

	alerts := alert.NewService(deps.Alerts, deps.SignalBus, deps.Notifier, a.logger)
	scan := a.buildScanner(deps, alerts, manual)
	scan.Load(ctx)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, scan, a.logger)
	}
	orch := pipeline.NewOrchestrator(scan, archiver, a.cfg.S3.ArchiveCron, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if withHTTP {
		var archiveCron string
		if archiver != nil {
			archiveCron = a.cfg.S3.ArchiveCron
		}
		a.startHTTPServer(ctx, g, deps, scan, alerts, archiveCron)
	}

	return g.Wait()
}

// buildScanner wires the scan cycle to the venue feeds and the stores.
func (a *App) buildScanner(deps *Dependencies, alerts *alert.Service, manual bool) *scanner.Scanner {
	sc := a.cfg.Scan
	return scanner.New(scanner.Config{
		Kalshi:       kalshi.NewFeed(deps.Kalshi, a.cfg.Kalshi.EventLimit),
		Polymarket:   polymarket.NewFeed(deps.Gamma, a.cfg.Polymarket.EventLimit),
		Ledger:       deps.Opportunities,
		History:      deps.History,
		ScanConfig:   deps.ScanConfig,
		Watchlist:    deps.Watchlist,
		Audit:        deps.Audit,
		Alerts:       alerts,
		Locks:        deps.LockManager,
		Bus:          deps.SignalBus,
		Archiver:     deps.Archiver,
		Notifier:     deps.Notifier,
		Scan:         sc.Domain(),
		FetchTimeout: sc.FetchTimeout.Duration,
		LockTTL:      sc.LockTTL.Duration,
		LedgerCap:    sc.LedgerCap,
		HistoryCap:   sc.HistoryCap,
		Manual:       manual,
		Logger:       a.logger,
	})
}

// startHTTPServer registers the API handlers and the WebSocket hub, and runs
// the server until ctx is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	scan *scanner.Scanner,
	alerts *alert.Service,
	archiveCron string,
) {
	hub := ws.NewHub(deps.SignalBus, func() map[string]any {
		status := map[string]any{
			"mode":               a.cfg.Mode,
			"started_at":         a.startedAt,
			"open_opportunities": len(scan.Open()),
		}
		if rep, ok := scan.Last(); ok {
			status["last_scan"] = rep.Summary()
		}
		return status
	}, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	watchlist := service.NewWatchlistService(deps.Watchlist, deps.Audit, a.logger)
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, a.startedAt, scan).WithArchiveSchedule(archiveCron),
		Opportunities: handler.NewOpportunityHandler(scan),
		Scan:          handler.NewScanHandler(scan, a.logger),
		History:       handler.NewHistoryHandler(scan),
		Alerts:        handler.NewAlertHandler(alerts, a.logger),
		Watchlist:     handler.NewWatchlistHandler(watchlist, scan, a.logger),
		Markets:       handler.NewMarketHandler(service.NewMarketService(deps.Kalshi, deps.Gamma, deps.MarketCache, a.logger), a.logger),
		Portfolio:     handler.NewPortfolioHandler(service.NewPortfolioService(deps.Kalshi, a.logger)),
		Archive:       handler.NewArchiveHandler(deps.BlobReader, a.logger),
		Audit:         handler.NewAuditHandler(deps.Audit, a.logger),
		Events:        handler.NewEventHandler(deps.SignalBus, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Limiter:     deps.RateLimiter,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("HTTP server shutdown incomplete", slog.String("error", err.Error()))
		}
		return nil
	})
}
