package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "1.4.2"

// createTestStore opens a store in a fresh temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path, testVersion)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path, testVersion)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, testVersion)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, testVersion)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"fingerprints", "runs", "meta"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/cache.db", testVersion)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_InvalidVersion(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "cache.db"), "not-a-version")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	assert.Equal(t, []string{"path", "fingerprint", "kind", "updated_seq"}, getTableColumns(t, s.db, "fingerprints"))
	assert.Equal(t, []string{"id", "seq", "generated", "skipped", "failed"}, getTableColumns(t, s.db, "runs"))
	assert.Equal(t, []string{"key", "value"}, getTableColumns(t, s.db, "meta"))
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
	assert.Contains(t, getTableIndexes(t, s.db, "fingerprints"), "idx_fingerprints_updated_seq")
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	// Apply schema but NOT migrations (simulates pre-migration state)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	db.Close()

	s, err := Open(path, testVersion)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
	assert.Contains(t, getTableIndexes(t, s.db, "fingerprints"), "idx_fingerprints_updated_seq")
}

// Fingerprint tests

func TestLookup_Missing(t *testing.T) {
	s := createTestStore(t)

	fp, ok, err := s.Lookup(context.Background(), "include/retro/ir/ops.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, fp)
}

func TestRecord_LookupRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp1"))
	fp, ok, err := s.Lookup(ctx, "a.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fp1", fp)

	// Overwrite
	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp2"))
	fp, _, err = s.Lookup(ctx, "a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "fp2", fp)
}

func TestRecord_StampsRunInProgress(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp"))
	_, err := s.LogRun(ctx, Run{ID: "run-1", Generated: 1})
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, "b.d.yaml", "rules", "fp"))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Path: "a.yaml", Fingerprint: "fp", Kind: "schema", UpdatedSeq: 1},
		{Path: "b.d.yaml", Fingerprint: "fp", Kind: "rules", UpdatedSeq: 2},
	}, entries)
}

func TestForget(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp"))
	require.NoError(t, s.Forget(ctx, "a.yaml"))
	_, ok, err := s.Lookup(ctx, "a.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Forget(ctx, "never-recorded.yaml"))
}

func TestFingerprintsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := Open(path, testVersion)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp"))
	require.NoError(t, s.Close())

	s, err = Open(path, testVersion)
	require.NoError(t, err)
	defer s.Close()
	fp, ok, err := s.Lookup(ctx, "a.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fp", fp)
}

// Generator version gate tests

func TestVersionGate(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		running  string
		discards bool
	}{
		{name: "same version", stored: "1.4.2", running: "1.4.2", discards: false},
		{name: "patch bump", stored: "1.4.2", running: "1.4.9", discards: false},
		{name: "minor bump", stored: "1.4.2", running: "1.5.0", discards: true},
		{name: "major bump", stored: "1.4.2", running: "2.4.2", discards: true},
		{name: "downgrade", stored: "1.5.0", running: "1.4.0", discards: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			ctx := context.Background()

			s, err := Open(path, tt.stored)
			require.NoError(t, err)
			require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp"))
			require.NoError(t, s.Close())

			s, err = Open(path, tt.running)
			require.NoError(t, err)
			defer s.Close()

			_, ok, err := s.Lookup(ctx, "a.yaml")
			require.NoError(t, err)
			assert.Equal(t, !tt.discards, ok)
			assert.Equal(t, tt.discards, s.Invalidated())

			v, err := s.GeneratorVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.running, v)
		})
	}
}

func TestVersionGate_UnparsableStoredVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "a.yaml", "schema", "fp"))
	_, err := s.db.Exec(`UPDATE meta SET value = 'garbage' WHERE key = ?`, metaGeneratorVersion)
	require.NoError(t, err)

	require.NoError(t, s.gate(ctx))
	assert.True(t, s.Invalidated())
	_, ok, err := s.Lookup(ctx, "a.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Run log tests

func TestLogRun_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r1, err := s.LogRun(ctx, Run{ID: "run-1", Generated: 3, Skipped: 1})
	require.NoError(t, err)
	r2, err := s.LogRun(ctx, Run{ID: "run-2", Failed: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Run{r2, r1}, runs)

	runs, err = s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []Run{r2}, runs)
}

func TestLogRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LogRun(ctx, Run{ID: "run-1"})
	require.NoError(t, err)
	_, err = s.LogRun(ctx, Run{ID: "run-1"})
	assert.Error(t, err)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
