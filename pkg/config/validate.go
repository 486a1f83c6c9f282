package config

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// ValidationError holds per-option validation failure messages. Conflict is
// set when at least one failure is a pair of mutually exclusive options.
type ValidationError struct {
	Fields   map[string]string
	Conflict bool
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	if e.Conflict {
		return apperrors.ErrConfigConflict
	}
	return apperrors.ErrInvalidConfig
}

// Validate checks option combinations before any I/O happens.
func (c *Config) Validate() error {
	errs := make(map[string]string)
	conflict := false

	switch c.Output.Mode {
	case OutputElasticsearch, OutputStdout, OutputKafka:
	default:
		errs["output.mode"] = fmt.Sprintf("unknown output mode %q", c.Output.Mode)
	}
	if c.Output.Mode == OutputStdout && c.Elasticsearch.Index != "" {
		errs["elasticsearch.index"] = "an index name cannot be combined with stdout output"
		conflict = true
	}
	if !c.Output.BulkHeaders && c.Output.Mode != OutputStdout {
		errs["output.bulkHeaders"] = "bulk headers can only be disabled with stdout output"
		conflict = true
	}
	if c.Output.Mode == OutputElasticsearch && c.Elasticsearch.URL == "" {
		errs["elasticsearch.url"] = "url is required"
	}
	if c.Output.Mode == OutputKafka {
		if len(c.Kafka.Brokers) == 0 {
			errs["kafka.brokers"] = "at least one broker is required"
		}
		if c.Kafka.Topic == "" {
			errs["kafka.topic"] = "topic is required"
		}
	}

	if c.Processing.BatchSize <= 0 {
		errs["processing.batchSize"] = "must be positive"
	}
	if c.Processing.Workers <= 0 {
		errs["processing.workers"] = "must be positive"
	}
	if c.Processing.HeaderLines <= 0 {
		errs["processing.headerLines"] = "must be positive"
	}
	switch c.Processing.TimeMode {
	case TimeISO, TimeMillis, TimeOriginal:
	default:
		errs["processing.timeMode"] = fmt.Sprintf("unknown time mode %q", c.Processing.TimeMode)
	}
	if len(c.Processing.OutputFields) > 0 && !slices.Contains(c.Processing.OutputFields, "ts") {
		errs["processing.outputFields"] = "output fields must include ts"
	}

	if c.Enrichment.Pipeline && c.Enrichment.PipelineName == "" {
		errs["enrichment.pipelineName"] = "pipeline name is required"
	}
	if c.DataStream.Enabled && c.DataStream.MaxShardSizeGB <= 0 {
		errs["dataStream.maxShardSizeGB"] = "must be positive"
	}
	if c.DataStream.Enabled && c.Output.Mode == OutputStdout {
		errs["dataStream.enabled"] = "data streams require elasticsearch output"
		conflict = true
	}
	if c.Provision.MaxAttempts <= 0 {
		errs["provision.maxAttempts"] = "must be positive"
	}

	if c.Keys.FilterFile != "" && c.Keys.FilterRedisKey != "" {
		errs["keys.filterFile"] = "filter file and filter redis key are mutually exclusive"
		conflict = true
	}
	if (c.Keys.FilterFile != "" || c.Keys.FilterRedisKey != "") && c.Keys.FilterField == "" {
		errs["keys.filterField"] = "a filter field is required with a key filter"
	}
	if c.Keys.FilterField != "" && c.Keys.FilterFile == "" && c.Keys.FilterRedisKey == "" {
		errs["keys.filterField"] = "a filter file or redis key is required with a filter field"
	}
	for i, kl := range c.Keys.Log {
		key := fmt.Sprintf("keys.log[%d]", i)
		switch {
		case kl.Field == "":
			errs[key] = "field is required"
		case kl.File == "" && kl.RedisKey == "":
			errs[key] = "file or redisKey is required"
		case kl.File != "" && kl.RedisKey != "":
			errs[key] = "file and redisKey are mutually exclusive"
			conflict = true
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs, Conflict: conflict}
	}
	return nil
}
