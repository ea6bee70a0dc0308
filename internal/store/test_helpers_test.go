package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/sigtrace/internal/testutil"
	"github.com/roach88/sigtrace/internal/trace"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run for scenario with a fresh ID.
func createTestRun(t *testing.T, s *Store, scenario string) Run {
	t.Helper()
	run, err := s.CreateRun(context.Background(), Run{Scenario: scenario, Mode: "merged"})
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}

// block builds a trace block at ps with alternating key/value arguments.
func block(ps uint64, header bool, kv ...string) trace.Block {
	b := trace.Block{Time: testutil.FakeTime{PS: ps}, Header: header}
	for i := 0; i+1 < len(kv); i += 2 {
		b.Changes = append(b.Changes, trace.Change{Key: kv[i], Value: kv[i+1]})
	}
	return b
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
