package store

import (
	"context"
	"database/sql"
	"fmt"

	"fortio.org/safecast"
)

// Change is a stored trace change.
type Change struct {
	Seq    int64  `json:"seq"`
	Block  int64  `json:"block"`
	TimePS uint64 `json:"time_ps"`
	Time   string `json:"time"`   // display form of the block time
	Header bool   `json:"header"` // true for blocks written by the merged modes
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ReadRun returns a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.scenario, r.mode, r.seq,
		       (SELECT COUNT(*) FROM changes c WHERE c.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, id).Scan(&r.ID, &r.Scenario, &r.Mode, &r.Seq, &r.Changes)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run in creation order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, r.mode, r.seq,
		       (SELECT COUNT(*) FROM changes c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Mode, &r.Seq, &r.Changes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadChanges returns the changes of a run whose key starts with keyPrefix
// (all changes when keyPrefix is empty), ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadChanges(ctx context.Context, runID, keyPrefix string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, block, time_ps, time_str, header, key, value
		FROM changes
		WHERE run_id = ? AND substr(key, 1, length(?)) = ?
		ORDER BY seq ASC
	`, runID, keyPrefix, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

func scanChange(rows *sql.Rows) (Change, error) {
	var c Change
	var ps int64
	if err := rows.Scan(&c.Seq, &c.Block, &ps, &c.Time, &c.Header, &c.Key, &c.Value); err != nil {
		return Change{}, fmt.Errorf("scan change: %w", err)
	}
	timePS, err := safecast.Conv[uint64](ps)
	if err != nil {
		return Change{}, fmt.Errorf("scan change %d: time_ps: %w", c.Seq, err)
	}
	c.TimePS = timePS
	return c, nil
}
