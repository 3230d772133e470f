// Command coordinator reads ZIP query files, publishes them as job batches,
// and writes the workers' daily records to an output CSV.
//
// Usage:
//
//	coordinator [-config zip2wd.env] [-out output.csv] input.csv [input2.csv ...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/gojiplus/get-weather-data/internal/adapter/http"
	"github.com/gojiplus/get-weather-data/internal/config"
	"github.com/gojiplus/get-weather-data/internal/coordinator"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/gojiplus/get-weather-data/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "dotenv file loaded before the environment is read")
	outPath := flag.String("out", "output.csv", "output CSV path (truncated if it exists)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.csv [input.csv ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

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

	if code := run(cfg, *outPath, flag.Args(), logger, metrics); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, outPath string, inputs []string, logger *slog.Logger, metrics *observability.Metrics) int {
	queries, err := coordinator.ReadQueryFiles(inputs)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		return 1
	}
	logger.Info("input loaded", "files", len(inputs), "queries", len(queries))

	f, err := os.Create(outPath)
	if err != nil {
		logger.Error("failed to create output", "path", outPath, "error", err)
		return 1
	}
	defer f.Close()

	out := coordinator.NewCSVWriter(f, cfg.Columns)
	if err := out.WriteHeader(); err != nil {
		logger.Error("failed to write output header", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker, err := transport.NewBroker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to queue", "error", err)
		return 1
	}

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, broker, logger)
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

	c := coordinator.New(broker, coordinator.Options{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		ShutdownGrace: cfg.ShutdownGrace,
		Logger:        logger,
		Metrics:       metrics,
	})

	sum, err := c.Run(ctx, queries, out)
	if err != nil {
		logger.Error("coordinator failed", "error", err)
		return 1
	}
	if !sum.Complete() {
		logger.Warn("run interrupted; output is partial",
			"received", sum.Received, "queries", sum.Queries, "out", outPath)
		return 130
	}

	logger.Info("output written", "path", outPath, "rows", out.Rows())
	return 0
}
