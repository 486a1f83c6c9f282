// Command zeek2es loads Zeek logs into Elasticsearch with the bulk API.
//
// Each input is a Zeek TSV log (plain, gzip or zstd compressed) or, with
// --json, a Zeek JSON log. Records are converted to typed documents,
// batched, and delivered to Elasticsearch, written to stdout as bulk
// request lines, or published to Kafka. Inputs may be globs; "-" reads
// standard input.
//
// Usage:
//
//	zeek2es [flags] <file|glob|->...
//	zeek2es check [flags]
//	zeek2es --stdout --no-bulk-headers conn.log.gz
//	zeek2es -c configs/zeek2es.yaml --filter 'id.resp_p == 443' 'logs/*/conn.*.log.gz'
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code. Errors
// raised before the run starts (unknown flags, bad values, conflicting
// flag groups) are configuration errors.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		started bool
		quiet   bool
	)
	rootCmd := newRootCmd(stdout, func(q bool) {
		started = true
		quiet = q
	})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return apperrors.ExitOK
	}
	code := apperrors.ExitCode(err)
	if !started {
		code = apperrors.ExitConfig
	}
	if !quiet {
		fmt.Fprintf(stderr, "zeek2es: %v\n", err)
	}
	return code
}

func newRootCmd(stdout io.Writer, onStart func(quiet bool)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zeek2es [flags] <file|glob|->...",
		Short:         "Load Zeek logs into Elasticsearch",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				onStart(false)
				return err
			}
			onStart(cfg.Logging.Quiet)
			return run(cmd.Context(), cfg, args, stdout)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringP("config", "c", "", "YAML config file; flags override it")

	f.StringP("es-url", "u", "", "Elasticsearch URL")
	f.String("username", "", "Elasticsearch username")
	f.String("password", "", "Elasticsearch password")
	f.StringP("index", "i", "", "index to load into instead of the derived name")
	f.Duration("timeout", 0, "per-request timeout for bulk deliveries")

	f.BoolP("stdout", "s", false, "write bulk request lines to stdout instead of Elasticsearch")
	f.BoolP("no-bulk-headers", "b", false, "omit bulk action lines (stdout only)")
	f.Bool("kafka", false, "publish documents to Kafka instead of Elasticsearch")
	f.StringSlice("kafka-brokers", nil, "Kafka brokers")
	f.String("kafka-topic", "", "Kafka topic")

	f.IntP("lines", "l", 0, "documents per bulk batch")
	f.StringP("name", "n", "", "system name added to every document and index name")
	f.BoolP("json", "j", false, "inputs are Zeek JSON logs")
	f.BoolP("millis", "m", false, "write time fields as epoch milliseconds")
	f.BoolP("origtime", "t", false, "write time fields as the original epoch seconds")
	f.StringSliceP("output-fields", "o", nil, "only write these fields (must include ts)")
	f.StringSliceP("keywords", "k", nil, "map these string fields as keyword only")
	f.StringP("filter", "a", "", "only load records matching this expression")
	f.IntP("workers", "w", 0, "files loaded concurrently")
	f.Int("header-lines", 0, "leading lines searched for the TSV header")

	f.BoolP("pipeline", "p", false, "enrich documents with an ingest pipeline")
	f.String("pipeline-name", "", "ingest pipeline name")
	f.StringSlice("split-fields", nil, "fields the pipeline splits on the set separator")
	f.String("geoip-db", "", "MaxMind database for local address enrichment")

	f.BoolP("datastream", "d", false, "load into data streams with a rollover policy")
	f.Int("max-shard-size", 0, "rollover shard size in GB for data streams")

	f.String("filter-field", "", "field checked against the key filter")
	f.String("filter-file", "", "file of allowed keys, one per line")
	f.String("filter-redis-key", "", "Redis set of allowed keys")
	f.StringArray("key-log", nil, "log values of a field: field=path or field=redis:key (repeatable)")
	f.String("redis-addr", "", "Redis address for key filters and key logs")

	f.Bool("ledger", false, "record each file's outcome in PostgreSQL")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port during the run")

	f.BoolP("quiet", "q", false, "only log errors and suppress the final diagnostic")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (text, json)")

	rootCmd.AddCommand(newCheckCmd(stdout, onStart))

	rootCmd.MarkFlagsMutuallyExclusive("stdout", "kafka")
	rootCmd.MarkFlagsMutuallyExclusive("stdout", "index")
	rootCmd.MarkFlagsMutuallyExclusive("millis", "origtime")
	rootCmd.MarkFlagsMutuallyExclusive("filter-file", "filter-redis-key")

	return rootCmd
}
