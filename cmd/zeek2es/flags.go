package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

const redisKeyPrefix = "redis:"

// configFromFlags loads the config file named by --config, applies every
// flag the user set on top of it, and validates the result.
func configFromFlags(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	setString(f, "es-url", &cfg.Elasticsearch.URL)
	setString(f, "username", &cfg.Elasticsearch.Username)
	setString(f, "password", &cfg.Elasticsearch.Password)
	setString(f, "index", &cfg.Elasticsearch.Index)
	if f.Changed("timeout") {
		cfg.Elasticsearch.RequestTimeout, _ = f.GetDuration("timeout")
	}

	if on, _ := f.GetBool("stdout"); on {
		cfg.Output.Mode = config.OutputStdout
	}
	if on, _ := f.GetBool("kafka"); on {
		cfg.Output.Mode = config.OutputKafka
	}
	if off, _ := f.GetBool("no-bulk-headers"); off {
		cfg.Output.BulkHeaders = false
	}
	setStrings(f, "kafka-brokers", &cfg.Kafka.Brokers)
	setString(f, "kafka-topic", &cfg.Kafka.Topic)

	setInt(f, "lines", &cfg.Processing.BatchSize)
	setString(f, "name", &cfg.Processing.SystemName)
	setBool(f, "json", &cfg.Processing.JSON)
	if on, _ := f.GetBool("millis"); on {
		cfg.Processing.TimeMode = config.TimeMillis
	}
	if on, _ := f.GetBool("origtime"); on {
		cfg.Processing.TimeMode = config.TimeOriginal
	}
	setStrings(f, "output-fields", &cfg.Processing.OutputFields)
	setStrings(f, "keywords", &cfg.Processing.KeywordFields)
	setString(f, "filter", &cfg.Processing.Filter)
	setInt(f, "workers", &cfg.Processing.Workers)
	setInt(f, "header-lines", &cfg.Processing.HeaderLines)

	setBool(f, "pipeline", &cfg.Enrichment.Pipeline)
	setString(f, "pipeline-name", &cfg.Enrichment.PipelineName)
	setStrings(f, "split-fields", &cfg.Enrichment.SplitFields)
	setString(f, "geoip-db", &cfg.Enrichment.GeoIPDatabase)

	setBool(f, "datastream", &cfg.DataStream.Enabled)
	setInt(f, "max-shard-size", &cfg.DataStream.MaxShardSizeGB)

	setString(f, "filter-field", &cfg.Keys.FilterField)
	setString(f, "filter-file", &cfg.Keys.FilterFile)
	setString(f, "filter-redis-key", &cfg.Keys.FilterRedisKey)
	if f.Changed("key-log") {
		specs, _ := f.GetStringArray("key-log")
		logs, err := parseKeyLogs(specs)
		if err != nil {
			return nil, err
		}
		cfg.Keys.Log = append(cfg.Keys.Log, logs...)
	}
	setString(f, "redis-addr", &cfg.Redis.Addr)

	setBool(f, "ledger", &cfg.Postgres.Enabled)
	if f.Changed("metrics-port") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port, _ = f.GetInt("metrics-port")
	}

	setBool(f, "quiet", &cfg.Logging.Quiet)
	setString(f, "log-level", &cfg.Logging.Level)
	setString(f, "log-format", &cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseKeyLogs reads field=path and field=redis:key specs.
func parseKeyLogs(specs []string) ([]config.KeyLogConfig, error) {
	logs := make([]config.KeyLogConfig, 0, len(specs))
	for _, spec := range specs {
		field, dest, ok := strings.Cut(spec, "=")
		if !ok || field == "" || dest == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitConfig,
				"key log %q: want field=path or field=redis:key", spec)
		}
		kl := config.KeyLogConfig{Field: field}
		if key, isRedis := strings.CutPrefix(dest, redisKeyPrefix); isRedis {
			kl.RedisKey = key
		} else {
			kl.File = dest
		}
		logs = append(logs, kl)
	}
	return logs, nil
}

func setString(f *pflag.FlagSet, name string, dst *string) {
	if f.Changed(name) {
		*dst, _ = f.GetString(name)
	}
}

func setStrings(f *pflag.FlagSet, name string, dst *[]string) {
	if f.Changed(name) {
		*dst, _ = f.GetStringSlice(name)
	}
}

func setInt(f *pflag.FlagSet, name string, dst *int) {
	if f.Changed(name) {
		*dst, _ = f.GetInt(name)
	}
}

func setBool(f *pflag.FlagSet, name string, dst *bool) {
	if f.Changed(name) {
		*dst, _ = f.GetBool(name)
	}
}
