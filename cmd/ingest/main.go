// Command ingest loads gzip-compressed JSON lines tweet archives into the
// tweet store. Archives live in one directory per month (data/2020-01/...);
// files already loaded are skipped, so the command can be rerun as new
// archives arrive.
//
// Usage:
//
//	go run ./cmd/ingest [-config configs/development.yaml] [dataDir]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/middleware"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] [dataDir]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		return apperrors.ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitCode(err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	dataDir := cfg.Ingest.DataDir
	if flag.NArg() == 1 {
		dataDir = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, uuid.NewString())
	log := logger.FromContext(ctx).With("component", "ingest", "data_dir", dataDir)

	db, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		return apperrors.ExitCode(err)
	}
	defer db.Close()

	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(db.Ping))
	if err := checker.Run(ctx).Err(); err != nil {
		log.Error("pre-flight check failed", "error", err)
		return apperrors.ExitCode(err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		handler := middleware.Chain(metrics.NewMux(m, checker.ReadyHandler()),
			middleware.Metrics(m),
			middleware.Timeout(10*time.Second),
		)
		shutdown := metrics.StartServer(cfg.Metrics.Port, handler)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	sum, err := ingest.New(store.New(db), cfg.Ingest.Language, m).Run(ctx, dataDir)
	if err != nil {
		log.Error("ingest failed", "error", err)
		return apperrors.ExitCode(err)
	}
	log.Info("ingest finished",
		"files", sum.FilesLoaded,
		"files_empty", sum.FilesEmpty,
		"tweets", sum.Tweets,
		"duration", time.Since(start),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return apperrors.ExitInternal
	}
	return apperrors.ExitOK
}
