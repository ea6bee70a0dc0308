// Package store provides SQLite-backed storage for recorded trace runs.
//
// A run is one recording of a scenario in one trace mode. Its flushed blocks
// are stored change by change:
//   - runs: id (UUIDv7), scenario name, mode, creation seq
//   - changes: run id, per-run seq, block number, time, key, value
//
// # Ordering
//
// All ordering uses seq INTEGER, never wall time. Reads always include
// ORDER BY seq ASC so a run reads back exactly as it was flushed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The layout version lives in user_version. Open stamps new databases with
// SchemaVersion and refuses files carrying a higher version.
package store
