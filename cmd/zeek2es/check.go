package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/geoip"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/elastic"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/redis"
)

const checkTimeout = 10 * time.Second

func newCheckCmd(stdout io.Writer, onStart func(quiet bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured destinations and lookups are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				onStart(false)
				return err
			}
			onStart(cfg.Logging.Quiet)
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Quiet)
			return runCheck(cmd.Context(), cfg, stdout)
		},
	}
}

// runCheck probes every dependency the configuration would use and prints
// the report as JSON.
func runCheck(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	checker := health.NewChecker()

	switch cfg.Output.Mode {
	case config.OutputKafka:
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			return health.FromError(kafka.Ping(ctx, cfg.Kafka.Brokers))
		})
	case config.OutputElasticsearch:
		client, err := elastic.NewClient(cfg.Elasticsearch)
		if err != nil {
			return err
		}
		checker.Register("elasticsearch", func(ctx context.Context) health.ComponentHealth {
			res, err := client.Ping(ctx)
			if err == nil && res.IsError() {
				err = fmt.Errorf("unexpected response %s", res)
			}
			return health.FromError(err)
		})
	}
	if cfg.UsesRedis() {
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			rdb, err := redis.NewClient(cfg.Redis)
			if err == nil {
				rdb.Close()
			}
			return health.FromError(err)
		})
	}
	if cfg.Postgres.Enabled {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			db, err := postgres.New(ctx, cfg.Postgres)
			if err == nil {
				db.Close()
			}
			return health.FromError(err)
		})
	}
	if cfg.Enrichment.GeoIPDatabase != "" {
		checker.Register("geoip", func(context.Context) health.ComponentHealth {
			e, err := geoip.Open(cfg.Enrichment.GeoIPDatabase)
			if err == nil {
				e.Close()
			}
			return health.FromError(err)
		})
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	report := checker.Run(ctx)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if report.Status != health.StatusUp {
		return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "dependencies %s", report.Status)
	}
	return nil
}
