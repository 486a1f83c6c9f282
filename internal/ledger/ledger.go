// Package ledger records one row per loaded file in PostgreSQL so repeated
// or partial loads can be audited.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/loader"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/postgres"
)

// File statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS zeek2es_loads (
	run_id         UUID        NOT NULL,
	source         TEXT        NOT NULL,
	index_name     TEXT        NOT NULL DEFAULT '',
	log_path       TEXT        NOT NULL DEFAULT '',
	records_read   INTEGER     NOT NULL DEFAULT 0,
	documents      INTEGER     NOT NULL DEFAULT 0,
	dropped        INTEGER     NOT NULL DEFAULT 0,
	batches        INTEGER     NOT NULL DEFAULT 0,
	failed_batches INTEGER     NOT NULL DEFAULT 0,
	status         TEXT        NOT NULL,
	error          TEXT,
	exit_code      INTEGER     NOT NULL DEFAULT 0,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, source)
)`

// Ledger writes load results for one run.
type Ledger struct {
	db     *postgres.Client
	runID  uuid.UUID
	logger *slog.Logger
}

// New creates the table if needed and starts a run with a fresh ID.
func New(ctx context.Context, db *postgres.Client) (*Ledger, error) {
	if _, err := db.DB.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("creating ledger table: %w", err)
	}
	l := &Ledger{
		db:     db,
		runID:  uuid.New(),
		logger: slog.Default().With("component", "ledger"),
	}
	l.logger.Info("run started", "run_id", l.runID)
	return l, nil
}

// Record stores the outcome of one file. Rerunning the same file within a
// run overwrites its row.
func (l *Ledger) Record(ctx context.Context, stats *loader.Stats, loadErr error) error {
	status := Status(stats, loadErr)
	var errText sql.NullString
	if loadErr != nil {
		errText = sql.NullString{String: loadErr.Error(), Valid: true}
	}
	return l.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO zeek2es_loads (run_id, source, index_name, log_path, records_read, documents, dropped,
				batches, failed_batches, status, error, exit_code, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (run_id, source) DO UPDATE SET
				index_name = EXCLUDED.index_name,
				log_path = EXCLUDED.log_path,
				records_read = EXCLUDED.records_read,
				documents = EXCLUDED.documents,
				dropped = EXCLUDED.dropped,
				batches = EXCLUDED.batches,
				failed_batches = EXCLUDED.failed_batches,
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				exit_code = EXCLUDED.exit_code,
				started_at = EXCLUDED.started_at,
				finished_at = EXCLUDED.finished_at`,
			l.runID, stats.Source, stats.Index, stats.LogPath, stats.Read, stats.Documents, stats.DroppedTotal(),
			stats.Batches, stats.FailedBatches, status, errText, apperrors.ExitCode(loadErr), stats.Started, stats.Finished,
		)
		if err != nil {
			return fmt.Errorf("recording load of %s: %w", stats.Source, err)
		}
		return nil
	})
}

// Count returns the number of files recorded for the run with status.
func (l *Ledger) Count(ctx context.Context, status string) (int, error) {
	var n int
	err := l.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zeek2es_loads WHERE run_id = $1 AND status = $2`, l.runID, status).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("counting loads: %w", err)
	}
	return n, nil
}

// Status classifies a load: failed on error, partial when some batches
// were not delivered, ok otherwise.
func Status(stats *loader.Stats, loadErr error) string {
	switch {
	case loadErr != nil:
		return StatusFailed
	case stats.FailedBatches > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}
