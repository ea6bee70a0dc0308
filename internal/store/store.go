package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is the layout written by this package, kept in the
// database's user_version. Files written by a newer sigtrace are refused.
const SchemaVersion = 1

// ErrSchemaTooNew is returned by Open for a run database whose
// user_version is above SchemaVersion.
var ErrSchemaTooNew = errors.New("run database was written by a newer sigtrace")

// setting is a connection pragma and the value it must read back as.
type setting struct {
	name, value, want string
}

var settings = []setting{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Store holds the runs recorded by `sigtrace run --db` and serves them to
// `runs` and `show`.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the logger used for store events. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens the run database at path, creating it when missing. The
// database is limited to one connection since runs are recorded by a single
// writer.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run database %s: %w", path, err)
	}
	s.logger.Debug("run database opened", "path", path, "schema_version", SchemaVersion)
	return s, nil
}

// init configures the connection, refuses newer layouts and creates the
// tables of an empty database.
func (s *Store) init() error {
	for _, p := range settings {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		if err := s.verifyPragma(p.name, p.want); err != nil {
			return err
		}
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: schema version %d, supported %d", ErrSchemaTooNew, version, SchemaVersion)
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if version < SchemaVersion {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		s.logger.Info("run database initialised", "schema_version", SchemaVersion)
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// verifyPragma reports an error unless pragma name reads back as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
