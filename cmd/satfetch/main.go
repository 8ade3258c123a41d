// Command satfetch downloads satellite tiles for every row of the train and
// test coordinate tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"satfetch/internal/config"
	"satfetch/internal/dataset"
	"satfetch/internal/fetcher"
	"satfetch/internal/handlers"
	"satfetch/internal/logging"
	"satfetch/internal/metrics"
	"satfetch/internal/tiles"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func newFlagSet() *pflag.FlagSet {
	d := config.DefaultConfig()
	fs := pflag.NewFlagSet("satfetch", pflag.ContinueOnError)

	fs.String("config", "", "path to a satfetch.yaml config file")
	fs.String("split", "all", "which pass to run: train, test or all")
	fs.String("resume", d.Fetch.Resume, "row resume mode: last or all")
	fs.String("failure-policy", d.Fetch.FailurePolicy, "on tile failure: continue or stop")
	fs.Duration("delay", d.Fetch.Delay, "pause after every row that was fetched")
	fs.IntSlice("zooms", d.Fetch.Zooms, "zoom levels, the last one marks a row as done")
	fs.String("log-level", d.Log.Level, "debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "console or json")
	fs.String("metrics-addr", "", "serve /metrics and /health on this address")

	return fs
}

// selectSplits resolves the --split flag
func selectSplits(cfg *config.Config, name string) ([]config.Split, error) {
	if name == "" || name == "all" {
		return cfg.Splits(), nil
	}
	split, ok := cfg.Split(name)
	if !ok {
		return nil, fmt.Errorf("unknown split %q (want train, test or all)", name)
	}
	return []config.Split{split}, nil
}

func run(ctx context.Context, args []string) int {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	configPath, _ := fs.GetString("config")
	splitName, _ := fs.GetString("split")

	// Load configuration before any directory or network access
	cfg, err := config.LoadConfig(configPath, fs)
	if err != nil {
		boot := logging.NewDefault()
		boot.Error("Failed to load configuration", zap.Error(err))
		boot.Sync()
		return 1
	}

	splits, err := selectSplits(cfg, splitName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		return 1
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var running atomic.Bool
	if cfg.Metrics.Addr != "" {
		router := handlers.SetupRouter(m.Registry, &handlers.RouterOptions{Logger: logger, Ready: running.Load})
		srv, addr, err := startMetricsServer(cfg.Metrics.Addr, router, logger)
		if err != nil {
			logger.Error("Failed to start metrics server", zap.Error(err))
			return 1
		}
		logger.Info("Serving metrics", zap.String("addr", addr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server forced to shutdown", zap.Error(err))
			}
		}()
	}

	f := cfg.Fetch
	client := tiles.NewClient(tiles.ClientOptions{
		Timeout:           f.Timeout,
		RequestsPerSecond: f.RequestsPerSecond,
		Burst:             f.RequestBurst,
	})
	retriever := tiles.NewRetriever(client, tiles.URLBuilder{
		Endpoint:    f.Endpoint,
		Style:       f.Style,
		Width:       f.ImageWidth,
		Height:      f.ImageHeight,
		AccessToken: f.AccessToken,
	})
	source := dataset.NewRouter()

	failed := false
	for _, split := range splits {
		loop := fetcher.NewLoop(fetcher.OptionsFromConfig(f, split.Name), retriever, source, logger).
			WithRecorder(m)

		running.Store(true)
		sum, err := loop.Run(ctx, split.Table, split.ImageDir)
		running.Store(false)

		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted", zap.String("split", split.Name), zap.Object("summary", sum))
			return 1
		}
		if err != nil {
			logger.Error("Pass failed", zap.String("split", split.Name), zap.Error(err))
			failed = true
			continue
		}
		logger.Info("Pass complete", zap.String("split", split.Name), zap.Object("summary", sum))
	}

	if failed {
		return 1
	}
	return 0
}
