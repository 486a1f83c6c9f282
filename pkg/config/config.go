// Package config loads and validates loader configuration from YAML files
// with environment-variable overrides. Command-line flags are applied on top by
// the CLI before Validate is called.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// Output modes.
const (
	OutputElasticsearch = "elasticsearch"
	OutputStdout        = "stdout"
	OutputKafka         = "kafka"
)

// Time output modes for time-typed fields.
const (
	TimeISO      = "iso"
	TimeMillis   = "millis"
	TimeOriginal = "original"
)

// Config is the top-level application configuration.
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Output        OutputConfig        `yaml:"output"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	DataStream    DataStreamConfig    `yaml:"dataStream"`
	Provision     ProvisionConfig     `yaml:"provision"`
	Keys          KeysConfig          `yaml:"keys"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ElasticsearchConfig holds the destination cluster address and credentials.
// Index overrides the derived index name.
type ElasticsearchConfig struct {
	URL                string        `yaml:"url"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	Index              string        `yaml:"index"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
}

// OutputConfig selects the bulk sink.
type OutputConfig struct {
	Mode        string `yaml:"mode"`
	BulkHeaders bool   `yaml:"bulkHeaders"`
}

// ProcessingConfig controls record building and batching.
type ProcessingConfig struct {
	BatchSize     int      `yaml:"batchSize"`
	SystemName    string   `yaml:"systemName"`
	JSON          bool     `yaml:"json"`
	TimeMode      string   `yaml:"timeMode"`
	OutputFields  []string `yaml:"outputFields"`
	KeywordFields []string `yaml:"keywordFields"`
	Filter        string   `yaml:"filter"`
	Workers       int      `yaml:"workers"`
	HeaderLines   int      `yaml:"headerLines"`
}

// EnrichmentConfig controls the server-side ingest pipeline and the optional
// local GeoIP lookup.
type EnrichmentConfig struct {
	Pipeline      bool     `yaml:"pipeline"`
	PipelineName  string   `yaml:"pipelineName"`
	SplitFields   []string `yaml:"splitFields"`
	GeoIPDatabase string   `yaml:"geoipDatabase"`
}

// DataStreamConfig enables data-stream mode with a size-based rollover policy.
type DataStreamConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxShardSizeGB int  `yaml:"maxShardSizeGB"`
}

// ProvisionConfig bounds provisioning retries.
type ProvisionConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
}

// KeysConfig configures the key filter and key logs.
type KeysConfig struct {
	FilterField    string         `yaml:"filterField"`
	FilterFile     string         `yaml:"filterFile"`
	FilterRedisKey string         `yaml:"filterRedisKey"`
	Log            []KeyLogConfig `yaml:"log"`
}

// KeyLogConfig writes every accepted value of Field to File or to the Redis
// set RedisKey.
type KeyLogConfig struct {
	Field    string `yaml:"field"`
	File     string `yaml:"file"`
	RedisKey string `yaml:"redisKey"`
}

// KafkaConfig holds Kafka broker and topic settings for the kafka sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run ledger.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Quiet  bool   `yaml:"quiet"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitConfig, "reading config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitConfig, "parsing config file %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Elasticsearch: ElasticsearchConfig{
			URL:            "http://localhost:9200",
			RequestTimeout: 60 * time.Second,
		},
		Output: OutputConfig{
			Mode:        OutputElasticsearch,
			BulkHeaders: true,
		},
		Processing: ProcessingConfig{
			BatchSize:   10000,
			TimeMode:    TimeISO,
			Workers:     1,
			HeaderLines: 64,
		},
		Enrichment: EnrichmentConfig{
			PipelineName: "zeek_enrich",
		},
		DataStream: DataStreamConfig{
			MaxShardSizeGB: 50,
		},
		Provision: ProvisionConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "zeek-documents",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "zeek2es",
			User:            "zeek2es",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads ZEEK2ES_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZEEK2ES_ES_URL"); v != "" {
		cfg.Elasticsearch.URL = v
	}
	if v := os.Getenv("ZEEK2ES_ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("ZEEK2ES_ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("ZEEK2ES_ES_INDEX"); v != "" {
		cfg.Elasticsearch.Index = v
	}
	if v := os.Getenv("ZEEK2ES_OUTPUT_MODE"); v != "" {
		cfg.Output.Mode = v
	}
	if v := os.Getenv("ZEEK2ES_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.BatchSize = n
		}
	}
	if v := os.Getenv("ZEEK2ES_SYSTEM_NAME"); v != "" {
		cfg.Processing.SystemName = v
	}
	if v := os.Getenv("ZEEK2ES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.Workers = n
		}
	}
	if v := os.Getenv("ZEEK2ES_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ZEEK2ES_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("ZEEK2ES_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ZEEK2ES_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ZEEK2ES_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ZEEK2ES_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ZEEK2ES_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ZEEK2ES_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ZEEK2ES_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// UsesRedis reports whether any key filter or key log is backed by Redis.
func (c *Config) UsesRedis() bool {
	if c.Keys.FilterRedisKey != "" {
		return true
	}
	for _, kl := range c.Keys.Log {
		if kl.RedisKey != "" {
			return true
		}
	}
	return false
}
