package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on fingerprints.updated_seq
const currentSchemaVersion = 1

const metaGeneratorVersion = "generator_version"

// Store is the durable fingerprint cache.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db          *sql.DB
	version     *semver.Version
	invalidated bool
}

// Open creates or opens a SQLite database at the given path for a generator
// of the given semantic version. Applies required pragmas and migrations
// automatically, then runs the generator version gate.
//
// This function is idempotent - safe to call multiple times.
func Open(path, version string) (*Store, error) {
	running, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid generator version %q: %w", version, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, version: running}
	if err := s.gate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check generator version: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Invalidated reports whether Open discarded the cached fingerprints because
// they were written by an incompatible generator version.
func (s *Store) Invalidated() bool {
	return s.invalidated
}

// GeneratorVersion returns the generator version recorded in the database.
func (s *Store) GeneratorVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaGeneratorVersion).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read generator version: %w", err)
	}
	return v, nil
}

// gate discards every fingerprint when the stored generator version is not
// compatible with the running one, then records the running version.
func (s *Store) gate(ctx context.Context) error {
	stored, err := s.GeneratorVersion(ctx)
	if err != nil {
		return err
	}
	if stored != "" && !compatible(stored, s.version) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints`); err != nil {
			return fmt.Errorf("discard fingerprints: %w", err)
		}
		s.invalidated = true
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaGeneratorVersion, s.version.String())
	if err != nil {
		return fmt.Errorf("record generator version: %w", err)
	}
	return nil
}

// compatible reports whether outputs generated by stored can be reused by
// running: same major and minor version.
func compatible(stored string, running *semver.Version) bool {
	v, err := semver.NewVersion(stored)
	if err != nil {
		return false
	}
	return v.Major() == running.Major() && v.Minor() == running.Minor()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index used to list documents by the run that last
// regenerated them.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_fingerprints_updated_seq
		ON fingerprints(updated_seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
