package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/bulk"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/geoip"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/input"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/keys"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/provision"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/predicate"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/record"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/elastic"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/resilience"
)

const metricsShutdownTimeout = 5 * time.Second

// run wires the configured collaborators and loads every input. The first
// fatal file error cancels the remaining loads and is returned.
func run(ctx context.Context, cfg *config.Config, patterns []string, stdout io.Writer) error {
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Quiet)
	log := logger.WithComponent("cli")

	var pred predicate.Expr
	if cfg.Processing.Filter != "" {
		p, err := predicate.Parse(cfg.Processing.Filter)
		if err != nil {
			return err
		}
		pred = p
	}

	paths, err := input.Discover(patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return apperrors.New(apperrors.ErrInput, apperrors.ExitInput, "no input files matched")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	} else {
		m = metrics.NewWithRegistry(prometheus.NewRegistry())
	}

	deps := loader.Deps{Predicate: pred, Metrics: m}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = redis.NewClient(cfg.Redis)
		if err != nil {
			return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "connecting to redis %s: %v", cfg.Redis.Addr, err)
		}
		defer rdb.Close()
	}

	filter, err := keyFilter(ctx, cfg.Keys, rdb)
	if err != nil {
		return err
	}
	if filter != nil {
		deps.KeyFilter = filter
		log.Info("key filter loaded", "field", filter.Field(), "keys", filter.Len())
	}

	keyLoggers, closeKeyLogs, err := keyLogs(cfg.Keys.Log, rdb, m)
	if err != nil {
		return err
	}
	defer closeKeyLogs(log)
	deps.KeyLoggers = keyLoggers

	if cfg.Enrichment.GeoIPDatabase != "" {
		enricher, err := geoip.Open(cfg.Enrichment.GeoIPDatabase)
		if err != nil {
			return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "geoip database: %v", err)
		}
		defer enricher.Close()
		deps.Enricher = enricher
	}

	switch cfg.Output.Mode {
	case config.OutputStdout:
		deps.Sink = bulk.NewStdoutSink(stdout)
	case config.OutputKafka:
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		deps.Sink = bulk.NewKafkaSink(producer)
		log.Info("kafka producer initialized", "topic", cfg.Kafka.Topic)
	default:
		client, err := elastic.NewClient(cfg.Elasticsearch)
		if err != nil {
			return err
		}
		deps.Sink = bulk.NewElasticSink(client)
		deps.Provisioner = provision.New(client, provisionOptions(cfg, m))
	}

	var lg *ledger.Ledger
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if lg, err = ledger.New(ctx, db); err != nil {
			return err
		}
	}

	l := loader.New(loader.OptionsFromConfig(cfg), deps)
	log.Info("loading", "files", len(paths), "output", cfg.Output.Mode, "workers", cfg.Processing.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Processing.Workers)
	for _, path := range paths {
		g.Go(func() error {
			stats, err := l.Load(gctx, path)
			m.FilesProcessed.WithLabelValues(ledger.Status(stats, err)).Inc()
			if lg != nil {
				if lerr := lg.Record(context.WithoutCancel(gctx), stats, err); lerr != nil {
					log.Warn("ledger write failed", "source", path, "error", lerr)
				}
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func keyFilter(ctx context.Context, cfg config.KeysConfig, store keys.SetStore) (*keys.Filter, error) {
	switch {
	case cfg.FilterFile != "":
		return keys.LoadFilterFile(cfg.FilterField, cfg.FilterFile)
	case cfg.FilterRedisKey != "":
		return keys.LoadFilterRedis(ctx, store, cfg.FilterField, cfg.FilterRedisKey)
	default:
		return nil, nil
	}
}

// keyLogs opens one logger per configured key log. The returned func closes
// them all.
func keyLogs(cfgs []config.KeyLogConfig, rdb *redis.Client, m *metrics.Metrics) ([]record.KeyLogger, func(*slog.Logger), error) {
	var (
		loggers []record.KeyLogger
		closers []io.Closer
	)
	closeAll := func(log *slog.Logger) {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn("closing key log failed", "error", err)
			}
		}
	}
	for _, kl := range cfgs {
		if kl.RedisKey != "" {
			rl := keys.NewRedisLogger(rdb, kl.Field, kl.RedisKey, m)
			loggers = append(loggers, rl)
			closers = append(closers, rl)
			continue
		}
		fl, err := keys.OpenFileLogger(kl.Field, kl.File, m)
		if err != nil {
			closeAll(slog.Default())
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closers = append(closers, fl)
	}
	return loggers, closeAll, nil
}

func provisionOptions(cfg *config.Config, m *metrics.Metrics) provision.Options {
	opts := provision.Options{
		DataStream: cfg.DataStream.Enabled,
		MaxShardGB: cfg.DataStream.MaxShardSizeGB,
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Provision.MaxAttempts,
			InitialDelay: cfg.Provision.InitialDelay,
		},
		Metrics: m,
	}
	if cfg.Enrichment.Pipeline {
		opts.Pipeline = cfg.Enrichment.PipelineName
		opts.SplitFields = cfg.Enrichment.SplitFields
	}
	return opts
}
