package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is the cached state of one document.
type Entry struct {
	Path        string
	Fingerprint string
	Kind        string
	UpdatedSeq  int64
}

// Lookup returns the fingerprint recorded for path. ok is false when the
// document has never been committed (or its entry was discarded).
func (s *Store) Lookup(ctx context.Context, path string) (fingerprint string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT fingerprint FROM fingerprints WHERE path = ?
	`, path).Scan(&fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return fingerprint, true, nil
}

// Record stores the fingerprint of a document whose outputs have just been
// committed. The entry is stamped with the seq of the run in progress, i.e.
// one past the last logged run.
func (s *Store) Record(ctx context.Context, path, kind, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (path, fingerprint, kind, updated_seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			kind = excluded.kind,
			updated_seq = excluded.updated_seq
	`, path, fingerprint, kind)
	if err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}
	return nil
}

// Forget removes the entry of path so the next run regenerates it.
// Forgetting an unknown path is not an error.
func (s *Store) Forget(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forget fingerprint: %w", err)
	}
	return nil
}

// Entries returns every cached entry.
// Results are ordered deterministically: ORDER BY updated_seq ASC, path ASC COLLATE BINARY.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, fingerprint, kind, updated_seq
		FROM fingerprints
		ORDER BY updated_seq ASC, path COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Fingerprint, &e.Kind, &e.UpdatedSeq); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return entries, nil
}
