package ledger

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/postgres"
)

func TestStatus(t *testing.T) {
	if s := Status(&loader.Stats{}, nil); s != StatusOK {
		t.Errorf("clean load = %s", s)
	}
	if s := Status(&loader.Stats{FailedBatches: 1}, nil); s != StatusPartial {
		t.Errorf("failed batch = %s", s)
	}
	if s := Status(&loader.Stats{}, errors.New("boom")); s != StatusFailed {
		t.Errorf("error = %s", s)
	}
}

// TestLedgerPostgres needs a reachable database; set ZEEK2ES_TEST_POSTGRES=1
// and the usual ZEEK2ES_POSTGRES_* variables to run it.
func TestLedgerPostgres(t *testing.T) {
	if os.Getenv("ZEEK2ES_TEST_POSTGRES") == "" {
		t.Skip("ZEEK2ES_TEST_POSTGRES not set")
	}
	cfg := config.Default().Postgres
	if v := os.Getenv("ZEEK2ES_POSTGRES_HOST"); v != "" {
		cfg.Host = v
	}
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	l, err := New(ctx, db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Now()
	stats := &loader.Stats{Source: "/logs/conn.log", Index: "zeek_conn_2023-11-14", Documents: 2, Batches: 1, Started: now, Finished: now}
	if err := l.Record(ctx, stats, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	stats.FailedBatches = 1
	if err := l.Record(ctx, stats, nil); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if n, err := l.Count(ctx, StatusPartial); err != nil || n != 1 {
		t.Errorf("partial count = %d, %v", n, err)
	}
	if n, _ := l.Count(ctx, StatusOK); n != 0 {
		t.Errorf("ok count = %d, want row overwritten", n)
	}
}
