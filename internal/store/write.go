package store

import (
	"context"
	"fmt"

	"fortio.org/safecast"
	"github.com/google/uuid"

	"github.com/roach88/sigtrace/internal/trace"
)

// Run is a recorded trace run.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Mode     string `json:"mode"`
	Seq      int64  `json:"seq"`     // creation order, assigned by CreateRun
	Changes  int    `json:"changes"` // stored change count, filled by reads
}

// NewRunID returns a fresh UUIDv7 run identifier. UUIDv7 sorts by creation
// time, which keeps ids and seq in the same order.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateRun inserts a run and returns it with its ID and Seq set. An empty
// ID is replaced by NewRunID. Creating the same ID twice is a no-op that
// returns the stored run.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, mode, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.Mode)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	stored, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return stored, nil
}

// BlockWriter is a trace.Listener that appends flushed blocks to a run.
type BlockWriter struct {
	store *Store
	ctx   context.Context
	runID string
	seq   int64 // last written change seq
	block int64 // last written block number
}

var _ trace.Listener = (*BlockWriter)(nil)

// Listener returns a writer appending to run runID. Writing resumes after
// whatever the run already holds.
func (s *Store) Listener(ctx context.Context, runID string) (*BlockWriter, error) {
	w := &BlockWriter{store: s, ctx: ctx, runID: runID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(block), 0)
		FROM changes
		WHERE run_id = ?
	`, runID).Scan(&w.seq, &w.block)
	if err != nil {
		return nil, fmt.Errorf("resume run %s: %w", runID, err)
	}
	return w, nil
}

// OnFlush implements trace.Listener. The block's changes are written in one
// transaction.
func (w *BlockWriter) OnFlush(b trace.Block) error {
	ps, err := safecast.Conv[int64](b.Time.Ticks())
	if err != nil {
		return fmt.Errorf("write block: time %s: %w", b.Time, err)
	}

	tx, err := w.store.db.BeginTx(w.ctx, nil)
	if err != nil {
		return fmt.Errorf("write block: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(w.ctx, `
		INSERT INTO changes
		(run_id, seq, block, time_ps, time_str, header, key, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write block: prepare: %w", err)
	}
	defer stmt.Close()

	block := w.block + 1
	seq := w.seq
	for _, c := range b.Changes {
		seq++
		if _, err := stmt.ExecContext(w.ctx, w.runID, seq, block, ps, b.Time.String(), b.Header, c.Key, c.Value); err != nil {
			return fmt.Errorf("write block: change %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write block: commit: %w", err)
	}
	w.seq, w.block = seq, block
	return nil
}
