package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeek2es.yaml")
	data := `
elasticsearch:
  url: http://es:9200
  requestTimeout: 5s
processing:
  batchSize: 500
  keywordFields: [service, query]
keys:
  log:
    - field: uid
      file: /tmp/uids.txt
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ZEEK2ES_SYSTEM_NAME", "sensor1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Elasticsearch.URL != "http://es:9200" {
		t.Errorf("url = %q", cfg.Elasticsearch.URL)
	}
	if cfg.Elasticsearch.RequestTimeout != 5*time.Second {
		t.Errorf("requestTimeout = %v", cfg.Elasticsearch.RequestTimeout)
	}
	if cfg.Processing.BatchSize != 500 {
		t.Errorf("batchSize = %d", cfg.Processing.BatchSize)
	}
	if cfg.Processing.TimeMode != TimeISO {
		t.Errorf("timeMode default lost: %q", cfg.Processing.TimeMode)
	}
	if cfg.Processing.SystemName != "sensor1" {
		t.Errorf("systemName = %q, want env override", cfg.Processing.SystemName)
	}
	if len(cfg.Keys.Log) != 1 || cfg.Keys.Log[0].Field != "uid" {
		t.Errorf("keys.log = %+v", cfg.Keys.Log)
	}
	if !cfg.Output.BulkHeaders {
		t.Error("bulkHeaders default lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if apperrors.ExitCode(err) != apperrors.ExitConfig {
		t.Fatalf("expected config exit code, got %v", err)
	}
}

func TestValidateConflicts(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		conflict bool
	}{
		{"stdout with index", func(c *Config) {
			c.Output.Mode = OutputStdout
			c.Elasticsearch.Index = "zeek"
		}, "elasticsearch.index", true},
		{"no headers without stdout", func(c *Config) {
			c.Output.BulkHeaders = false
		}, "output.bulkHeaders", true},
		{"output fields without ts", func(c *Config) {
			c.Processing.OutputFields = []string{"uid"}
		}, "processing.outputFields", false},
		{"filter field without source", func(c *Config) {
			c.Keys.FilterField = "uid"
		}, "keys.filterField", false},
		{"filter file and redis", func(c *Config) {
			c.Keys.FilterField = "uid"
			c.Keys.FilterFile = "a.txt"
			c.Keys.FilterRedisKey = "uids"
		}, "keys.filterFile", true},
		{"bad time mode", func(c *Config) {
			c.Processing.TimeMode = "nanos"
		}, "processing.timeMode", false},
		{"zero batch", func(c *Config) {
			c.Processing.BatchSize = 0
		}, "processing.batchSize", false},
		{"key log without target", func(c *Config) {
			c.Keys.Log = []KeyLogConfig{{Field: "uid"}}
		}, "keys.log[0]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !apperrors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected failure on %s, got %v", tt.field, verr.Fields)
			}
			if tt.conflict != apperrors.Is(err, apperrors.ErrConfigConflict) {
				t.Errorf("conflict = %v, want %v", !tt.conflict, tt.conflict)
			}
			if apperrors.ExitCode(err) != apperrors.ExitConfig {
				t.Errorf("exit code = %d", apperrors.ExitCode(err))
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err.Error(), tt.field)
			}
		})
	}
}
