// Package idstore interns the agent/workspace/source strings that appear
// on a Document into small stable integers (spec §4.3 "Agent/workspace/
// source ID interning. IDs are small integers interned via a side table
// kept in SQLite (or equivalent); they are stable within an index
// generation but need not be stable across rebuilds"), grounded on the
// sqlite-backed metadata store pattern in
// custodia-labs-sercha-cli/internal/adapters/driven/storage/sqlite.
//
// A Store is single-writer: callers serialize index_batch commits anyway
// (lexical.Index and vector.Index both require a single committing
// goroutine), so Store relies on an internal mutex rather than relying on
// SQLite's own locking for correctness.
package idstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS interned_ids (
	kind  TEXT NOT NULL,
	value TEXT NOT NULL,
	id    INTEGER NOT NULL,
	PRIMARY KEY (kind, value)
);
CREATE INDEX IF NOT EXISTS interned_ids_by_kind_id ON interned_ids (kind, id);
CREATE TABLE IF NOT EXISTS interned_seq (
	kind    TEXT PRIMARY KEY,
	next_id INTEGER NOT NULL
);
`

// Kind names the three interned spaces a Document references. Each kind
// has its own independent id sequence starting at 1 (0 is reserved to
// mean "unset" at the vector.RowInput layer).
type Kind string

const (
	KindAgent     Kind = "agent"
	KindWorkspace Kind = "workspace"
	KindSource    Kind = "source"
)

// Store is the sqlite-backed interning table. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	cacheMu sync.RWMutex
	cache   map[Kind]map[string]uint32
}

// Open opens (creating if absent) the sqlite database at path and ensures
// its schema exists. path may be ":memory:" for a process-local store
// that does not survive a restart (acceptable per spec §4.3: stability is
// only required within a generation, not across rebuilds).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("idstore: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite has no real concurrent-writer story; serialize here too

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("idstore: creating schema: %w", err)
	}

	s := &Store{db: db, cache: make(map[Kind]map[string]uint32)}
	if err := s.warmCache(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) warmCache() error {
	rows, err := s.db.Query(`SELECT kind, value, id FROM interned_ids`)
	if err != nil {
		return fmt.Errorf("idstore: warming cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, value string
		var id uint32
		if err := rows.Scan(&kind, &value, &id); err != nil {
			return fmt.Errorf("idstore: scanning interned row: %w", err)
		}
		m, ok := s.cache[Kind(kind)]
		if !ok {
			m = make(map[string]uint32)
			s.cache[Kind(kind)] = m
		}
		m[value] = id
	}
	return rows.Err()
}

// Intern returns the stable uint32 for (kind, value), assigning a fresh
// one from that kind's sequence on first sight. An empty value interns to
// 0 without touching storage, so callers need not special-case documents
// that omit agent/workspace.
func (s *Store) Intern(ctx context.Context, kind Kind, value string) (uint32, error) {
	if value == "" {
		return 0, nil
	}

	if id, ok := s.lookupCached(kind, value); ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: another goroutine may have interned
	// this value while we waited.
	if id, ok := s.lookupCached(kind, value); ok {
		return id, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("idstore: beginning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id uint32
	err = tx.QueryRowContext(ctx, `SELECT id FROM interned_ids WHERE kind = ? AND value = ?`, string(kind), value).Scan(&id)
	switch {
	case err == nil:
		// already present, fall through to cache+commit
	case err == sql.ErrNoRows:
		id, err = nextSeq(ctx, tx, kind)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO interned_ids (kind, value, id) VALUES (?, ?, ?)`,
			string(kind), value, id); err != nil {
			return 0, fmt.Errorf("idstore: inserting interned value: %w", err)
		}
	default:
		return 0, fmt.Errorf("idstore: looking up interned value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("idstore: committing intern: %w", err)
	}

	s.cacheMu.Lock()
	m, ok := s.cache[kind]
	if !ok {
		m = make(map[string]uint32)
		s.cache[kind] = m
	}
	m[value] = id
	s.cacheMu.Unlock()

	return id, nil
}

func nextSeq(ctx context.Context, tx *sql.Tx, kind Kind) (uint32, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO interned_seq (kind, next_id) VALUES (?, 1)`, string(kind)); err != nil {
		return 0, fmt.Errorf("idstore: seeding sequence: %w", err)
	}
	var id uint32
	if err := tx.QueryRowContext(ctx, `SELECT next_id FROM interned_seq WHERE kind = ?`, string(kind)).Scan(&id); err != nil {
		return 0, fmt.Errorf("idstore: reading sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE interned_seq SET next_id = next_id + 1 WHERE kind = ?`, string(kind)); err != nil {
		return 0, fmt.Errorf("idstore: advancing sequence: %w", err)
	}
	return id, nil
}

func (s *Store) lookupCached(kind Kind, value string) (uint32, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	id, ok := s.cache[kind][value]
	return id, ok
}

// Lookup is Intern's read-only counterpart: it returns the id already
// assigned to (kind, value) without assigning a new one. Used on the
// search path, where a filter value that was never indexed must simply
// fail to match rather than mint a fresh, permanently unused id.
func (s *Store) Lookup(kind Kind, value string) (uint32, bool) {
	if value == "" {
		return 0, false
	}
	return s.lookupCached(kind, value)
}

// Resolve reverses Intern: given a kind and an id, returns the original
// string (used when formatting search hits back for a caller). Returns
// ok=false for id 0 or an id never interned.
func (s *Store) Resolve(kind Kind, id uint32) (string, bool) {
	if id == 0 {
		return "", false
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	for value, v := range s.cache[kind] {
		if v == id {
			return value, true
		}
	}
	return "", false
}
