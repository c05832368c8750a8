package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/resilience"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(apperrors.ExitConfig)
	}

	cfg, err := config.Load(os.Getenv("INDEXER_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting the indexing process", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("indexing failed", "operation", apperrors.FailedOperation(err), "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	retryCfg := resilience.RetryConfig{
		MaxAttempts: cfg.Postgres.ConnectAttempts,
		// Only connection failures are worth another attempt.
		Retryable: func(err error) bool { return errors.Is(err, apperrors.ErrConnect) },
	}

	slog.Info("connecting to database", "url", cfg.Postgres.Redacted())
	var pg *postgres.Client
	err := resilience.Retry(ctx, "postgres", retryCfg, func(ctx context.Context) error {
		var err error
		pg, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		return err
	}
	defer pg.Close()

	checker := health.NewChecker(5 * time.Second)
	checker.Register("postgres", health.PingCheck(pg.Ping))

	opts := []indexer.Option{
		indexer.WithBatchSize(cfg.Indexer.BatchSize),
		indexer.WithReplaceEntries(cfg.Indexer.ReplaceEntries),
	}

	if cfg.Redis.Enabled() {
		var rc *redis.Client
		err := resilience.Retry(ctx, "redis", retryCfg, func(ctx context.Context) error {
			var err error
			rc, err = redis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		checker.Register("redis", health.PingCheck(rc.Ping))
		opts = append(opts, indexer.WithLock(redis.NewLock(rc), cfg.Indexer.LockName, cfg.Indexer.LockTTL))
	} else {
		opts = append(opts, indexer.WithLock(store.NewAdvisoryLock(pg), cfg.Indexer.LockName, cfg.Indexer.LockTTL))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		brokers := cfg.Kafka.Brokers
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, brokers)
		}))
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		opts = append(opts, indexer.WithNotifier(notify.NewKafkaNotifier(producer)))
	}

	m := metrics.New()
	opts = append(opts, indexer.WithMetrics(m))

	if err := checker.Preflight(ctx); err != nil {
		return err
	}

	engine, err := indexer.NewEngine(store.NewPostgres(pg, cfg.Postgres.StatementTimeout), opts...)
	if err != nil {
		return err
	}

	_, runErr := engine.RunBatch(ctx)
	flushSinks(ctx, cfg, m, producer)
	return runErr
}

// flushSinks pushes metrics and closes the producer. Failures here are
// logged; they never change the outcome of the batch.
func flushSinks(ctx context.Context, cfg *config.Config, m *metrics.Metrics, producer *kafka.Producer) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var g errgroup.Group
	if cfg.Metrics.Enabled() {
		g.Go(func() error {
			return m.Push(sctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
		})
	}
	if producer != nil {
		g.Go(producer.Close)
	}
	if err := g.Wait(); err != nil {
		slog.Warn("flushing run outputs failed", "error", err)
	}
}
