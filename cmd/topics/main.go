// Command topics prepares the tweet corpus of one month and trains or
// updates its topic model.
//
// analyze normalizes pending tweets and makes sure the bigram model and the
// dictionary exist. train does the same and then bootstraps the model, or
// updates it with the next pending batches, writing the model and its topic
// report after every step.
//
// Usage:
//
//	go run ./cmd/topics [-config configs/development.yaml] [-profile cpu|mem] [-rebuild] <YYYY-MM> <analyze|train>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/tracing"
	"github.com/google/uuid"
	"github.com/pkg/profile"
)

const (
	modeAnalyze = "analyze"
	modeTrain   = "train"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	profileMode := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	rebuild := flag.Bool("rebuild", false, "discard the bigram model and dictionary before analyzing")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: topics [flags] <YYYY-MM> <%s|%s>\n", modeAnalyze, modeTrain)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return apperrors.ExitUsage
	}
	date, mode := flag.Arg(0), flag.Arg(1)
	if mode != modeAnalyze && mode != modeTrain {
		fmt.Fprintf(os.Stderr, "unknown mode %q: use %s or %s\n", mode, modeAnalyze, modeTrain)
		return apperrors.ExitUsage
	}
	if !corpus.ValidDate(date) {
		fmt.Fprintf(os.Stderr, "invalid date %q: use YYYY-MM\n", date)
		return apperrors.ExitUsage
	}
	if *rebuild && mode != modeAnalyze {
		fmt.Fprintln(os.Stderr, "-rebuild only applies to analyze")
		return apperrors.ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitCode(err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		fmt.Fprintf(os.Stderr, "unknown profile %q: use cpu or mem\n", *profileMode)
		return apperrors.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.StartRun(ctx, "topics."+mode, runID)
	span.SetAttr("date", date)
	defer func() {
		span.End()
		span.Log(slog.Default())
	}()
	log := logger.FromContext(ctx).With("component", "topics", "date", date, "mode", mode)
	log.Info("starting run")

	db, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		return apperrors.ExitCode(err)
	}
	defer db.Close()

	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(db.Ping))
	artifacts, reports, closeArtifacts, err := openArtifacts(ctx, cfg, checker)
	if err != nil {
		log.Error("failed to open artifact store", "backend", cfg.Artifacts.Backend, "error", err)
		return apperrors.ExitCode(err)
	}
	defer closeArtifacts()
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

	deps := lifecycle.Deps{
		Documents: store.New(db),
		Artifacts: artifacts,
		Reports:   reports,
		Engine:    lda.NewOnlineLDA(lda.ParamsFromConfig(cfg.Model)),
		Metrics:   m,
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ModelUpdated)
		defer producer.Close()
		deps.Publisher = producer
	}
	manager := lifecycle.New(deps, lifecycle.OptionsFromConfig(cfg.Pipeline))

	var out any
	switch mode {
	case modeAnalyze:
		out, err = analyze(ctx, manager, date, *rebuild)
	case modeTrain:
		var res lifecycle.TrainResult
		res, err = manager.Train(ctx, date)
		if err == nil && res.Complete {
			log.Info("model is complete", "documents", res.Documents)
		}
		out = res
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("run failed", "error", err)
		return apperrors.ExitCode(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("writing result", "error", err)
		return apperrors.ExitInternal
	}
	log.Info("run finished")
	return apperrors.ExitOK
}

type analysis struct {
	Prepare lifecycle.PrepareResult `json:"prepare"`
	Status  lifecycle.Status        `json:"status"`
}

func analyze(ctx context.Context, manager *lifecycle.Manager, date string, rebuild bool) (analysis, error) {
	if rebuild {
		if err := manager.Rebuild(ctx, date); err != nil {
			return analysis{}, err
		}
	}
	prep, err := manager.Prepare(ctx, date)
	if err != nil {
		return analysis{}, err
	}
	status, err := manager.Inspect(ctx, date)
	if err != nil {
		return analysis{}, err
	}
	return analysis{Prepare: prep, Status: status}, nil
}

// openArtifacts builds the artifact and report stores for the configured
// backend and registers their health checks.
func openArtifacts(ctx context.Context, cfg *config.Config, checker *health.Checker) (artifacts, reports artifact.Store, closeFn func(), err error) {
	closeFn = func() {}
	switch cfg.Artifacts.Backend {
	case "redis":
		var client *redis.Client
		retry := resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}
		err = resilience.Retry(ctx, "connect redis", retry, func() error {
			var err error
			client, err = redis.NewClient(cfg.Redis)
			return err
		})
		if err != nil {
			return nil, nil, closeFn, err
		}
		checker.Register("redis", health.PingCheck(client.Ping))
		artifacts = artifact.NewRedisStore(client, cfg.Artifacts.KeyPrefix, cfg.Redis.TTL)
		closeFn = func() { client.Close() }
	default:
		dir := cfg.Artifacts.Dir
		checker.Register("artifacts", health.PingCheck(func(context.Context) error {
			return os.MkdirAll(dir, 0755)
		}))
		artifacts = artifact.NewFileStore(dir)
	}

	reports = artifacts
	if dir := cfg.Artifacts.ReportDir; dir != "" {
		checker.Register("reports", health.PingCheck(func(context.Context) error {
			return os.MkdirAll(dir, 0755)
		}))
		reports = artifact.NewFileStore(dir)
	}
	return artifacts, reports, closeFn, nil
}
