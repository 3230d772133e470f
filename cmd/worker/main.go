// Command worker claims job batches from the queue, resolves each ZIP query
// to daily weather records, and submits the results. It exits once the job
// queue is empty.
//
// Usage:
//
//	worker [-config zip2wd.env]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/gojiplus/get-weather-data/internal/adapter/http"
	"github.com/gojiplus/get-weather-data/internal/archive"
	"github.com/gojiplus/get-weather-data/internal/config"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/gojiplus/get-weather-data/internal/resolver"
	"github.com/gojiplus/get-weather-data/internal/stationstore"
	"github.com/gojiplus/get-weather-data/internal/transport"
	"github.com/gojiplus/get-weather-data/internal/weather"
	"github.com/gojiplus/get-weather-data/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "dotenv file loaded before the environment is read")
	flag.Parse()

	if err := config.LoadEnvFile(*configPath); err != nil {
		slog.Error("failed to load config file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if code := run(cfg, logger, metrics); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := stationstore.Open(ctx, cfg.StationDBDriver, cfg.StationDBDSN)
	if err != nil {
		logger.Error("failed to open station store", "error", err)
		return 1
	}
	defer store.Close()

	stations, err := store.Stations(ctx)
	if err != nil {
		logger.Error("failed to load stations", "error", err)
		return 1
	}
	logger.Info("stations loaded", "count", len(stations))

	limits := resolver.Limits{MaxRank: cfg.MaxRank, MaxDistance: cfg.MaxDistance}
	ranker := resolver.NewCachedRanker(resolver.NewStationRanker(stations), cfg.RankCacheSize, cfg.RankCacheDepth, limits, metrics)
	fetcher := archive.NewFetcher(archive.Options{
		Downloader: archive.NewDownloader(cfg.DownloadTimeout),
		Backoff:    archive.LinearBackoff(cfg.RetryStep),
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
		Metrics:    metrics,
	})
	templates := archive.Templates{
		GHCND: cfg.ArchiveURLGHCND,
		GSOD:  cfg.ArchiveURLGSOD,
		COOP:  cfg.ArchiveURLCOOP,
	}
	opts := weather.Options{
		Columns: cfg.Columns,
		Limits:  limits,
		Policy:  weather.Policy(cfg.SelectionPolicy),
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.GHCNDSource == config.GHCNDSourceByYear {
		daily, err := stationstore.OpenDaily(ctx, cfg.GHCNDDBDSN, logger)
		if err != nil {
			logger.Error("failed to open ghcnd database", "error", err)
			return 1
		}
		defer daily.Close()
		templates.GHCNDByYear = cfg.ArchiveURLGHCNDByYear
		opts.Daily = daily
		logger.Info("ghcnd by-year source enabled", "dsn", cfg.GHCNDDBDSN)
	}
	locator := archive.NewLocator(cfg.CacheDir, templates)
	searcher := weather.NewSearcher(store, ranker, fetcher, locator, opts)

	workers := make([]*worker.Worker, 0, cfg.WorkerConcurrency)
	for range cfg.WorkerConcurrency {
		src, err := transport.NewClient(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to connect to queue", "error", err)
			_ = worker.NewPool(workers...).Close()
			return 1
		}
		workers = append(workers, worker.New(src, searcher, logger, metrics))
	}
	pool := worker.NewPool(workers...)
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("queue close error", "error", err)
		}
	}()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, pool, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	logger.Info("worker pool starting", "loops", len(workers), "backend", cfg.QueueBackend)
	if err := pool.Run(ctx); err != nil {
		logger.Error("worker pool failed", "error", err)
		return 1
	}
	logger.Info("worker pool finished", "missing_archives", fetcher.NotFound().Len())
	return 0
}
