// Package cache implements the on-disk persistence layer shared by the
// AST cache manifest (C1) and the clone detector's stop-motif corpus
// (C5): a single SQLite file, versioned by one integer row, plus
// per-run temp subdirectories. Grounded on
// josephgoksu-TaskWing/internal/memory/sqlite.go's database/sql +
// modernc.org/sqlite store shape (schema-init-on-open, google/uuid for
// generated identifiers, fmt.Errorf wrapping on every query path).
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/standardbeagle/valknut/internal/config"
)

// schemaVersion is bumped whenever the table shapes below change. Store
// wipes and rebuilds the cache tables when the on-disk version doesn't
// match rather than carrying migrations for a cache that is always
// safe to discard.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ast_cache (
	cache_key TEXT PRIMARY KEY,
	language TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stop_motifs (
	shingle_hash INTEGER PRIMARY KEY,
	doc_frequency INTEGER NOT NULL,
	refreshed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stop_motif_meta (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	fingerprint TEXT NOT NULL,
	refreshed_at TEXT NOT NULL
);
`

// Store is the shared SQLite-backed cache handle for one process. It
// is safe for concurrent use; database/sql pools its own connections.
type Store struct {
	db  *sql.DB
	dir string
}

// Open creates (or reuses) the cache database under cfg.Dir. A nil
// Store with no error is returned when caching is disabled, so callers
// can treat a disabled cache and a cache miss identically.
func Open(cfg config.CacheConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, "valknut_cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", dbPath, err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("cache: init schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_meta WHERE id = 0`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO schema_meta (id, version) VALUES (0, ?)`, schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("cache: read schema version: %w", err)
	case version != schemaVersion:
		return s.rebuild()
	}
	return nil
}

// rebuild drops and recreates every cache table; the cache holds
// nothing that can't be recomputed from source, so a version mismatch
// is resolved by discarding it rather than migrating it.
func (s *Store) rebuild() error {
	stmts := []string{
		`DROP TABLE IF EXISTS ast_cache`,
		`DROP TABLE IF EXISTS stop_motifs`,
		`DROP TABLE IF EXISTS stop_motif_meta`,
		`DROP TABLE IF EXISTS schema_meta`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("cache: rebuild (%s): %w", stmt, err)
		}
	}
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("cache: rebuild schema: %w", err)
	}
	_, err := s.db.Exec(`INSERT INTO schema_meta (id, version) VALUES (0, ?)`, schemaVersion)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RecordASTEntry upserts one AST cache manifest row, used by the
// parser service to track what is already on disk/in the LRU so
// eviction decisions survive a restart.
func (s *Store) RecordASTEntry(cacheKey, language string, sizeBytes int64) error {
	_, err := s.db.Exec(`
		INSERT INTO ast_cache (cache_key, language, size_bytes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET size_bytes = excluded.size_bytes, updated_at = excluded.updated_at
	`, cacheKey, language, sizeBytes, time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
	if err != nil {
		return fmt.Errorf("cache: record ast entry %s: %w", cacheKey, err)
	}
	return nil
}

// TotalASTBytes sums the recorded size of every manifest entry.
func (s *Store) TotalASTBytes() (int64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRow(`SELECT SUM(size_bytes) FROM ast_cache`).Scan(&total); err != nil {
		return 0, fmt.Errorf("cache: total ast bytes: %w", err)
	}
	return total.Int64, nil
}

// EvictASTOverBudget removes the least-recently-updated manifest
// entries until the recorded total is at or under budgetBytes,
// returning the evicted cache keys so the caller can drop the
// corresponding in-memory entries too.
func (s *Store) EvictASTOverBudget(budgetBytes int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT cache_key, size_bytes FROM ast_cache ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("cache: list ast entries: %w", err)
	}
	defer rows.Close()

	type entry struct {
		key  string
		size int64
	}
	var entries []entry
	var total int64
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.size); err != nil {
			return nil, fmt.Errorf("cache: scan ast entry: %w", err)
		}
		entries = append(entries, e)
		total += e.size
	}

	var evicted []string
	for _, e := range entries {
		if total <= budgetBytes {
			break
		}
		if _, err := s.db.Exec(`DELETE FROM ast_cache WHERE cache_key = ?`, e.key); err != nil {
			return evicted, fmt.Errorf("cache: evict %s: %w", e.key, err)
		}
		total -= e.size
		evicted = append(evicted, e.key)
	}
	return evicted, nil
}

// SaveStopMotifs persists one run's document-frequency table, content-
// addressed by fingerprint (typically a hash of the analyzed corpus),
// so a later run over the same corpus can reuse it without rescanning
// every entity's shingles.
func (s *Store) SaveStopMotifs(frequencies map[uint64]int, fingerprint string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin stop-motif save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.Exec(`DELETE FROM stop_motifs`); err != nil {
		return fmt.Errorf("cache: clear stop motifs: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stop_motifs (shingle_hash, doc_frequency, refreshed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(shingle_hash) DO UPDATE SET doc_frequency = excluded.doc_frequency, refreshed_at = excluded.refreshed_at
	`)
	if err != nil {
		return fmt.Errorf("cache: prepare stop-motif upsert: %w", err)
	}
	defer stmt.Close()

	for hash, freq := range frequencies {
		if _, err := stmt.Exec(int64(hash), freq, now); err != nil {
			return fmt.Errorf("cache: upsert stop motif %d: %w", hash, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO stop_motif_meta (id, fingerprint, refreshed_at)
		VALUES (0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET fingerprint = excluded.fingerprint, refreshed_at = excluded.refreshed_at
	`, fingerprint, now); err != nil {
		return fmt.Errorf("cache: record stop-motif fingerprint: %w", err)
	}

	return tx.Commit()
}

// LoadStopMotifs returns the persisted document-frequency table when
// it was saved for the same corpus fingerprint and isn't older than
// maxAge. Otherwise (no prior save, a fingerprint mismatch from a
// changed corpus, or a stale refresh) it returns an empty map so the
// caller falls back to a fresh in-run computation instead of reusing a
// table that no longer describes the corpus being analyzed.
func (s *Store) LoadStopMotifs(maxAge time.Duration, fingerprint string) (map[uint64]int, error) {
	var storedFingerprint, refreshedAt string
	err := s.db.QueryRow(`SELECT fingerprint, refreshed_at FROM stop_motif_meta WHERE id = 0`).Scan(&storedFingerprint, &refreshedAt)
	switch {
	case err == sql.ErrNoRows:
		return map[uint64]int{}, nil
	case err != nil:
		return nil, fmt.Errorf("cache: load stop-motif meta: %w", err)
	}
	if storedFingerprint != fingerprint {
		return map[uint64]int{}, nil
	}
	t, err := time.Parse(time.RFC3339, refreshedAt)
	if err != nil || t.Before(time.Now().UTC().Add(-maxAge)) {
		return map[uint64]int{}, nil
	}

	rows, err := s.db.Query(`SELECT shingle_hash, doc_frequency FROM stop_motifs`)
	if err != nil {
		return nil, fmt.Errorf("cache: load stop motifs: %w", err)
	}
	defer rows.Close()

	out := make(map[uint64]int)
	for rows.Next() {
		var hash int64
		var freq int
		if err := rows.Scan(&hash, &freq); err != nil {
			return nil, fmt.Errorf("cache: scan stop motif: %w", err)
		}
		out[uint64(hash)] = freq
	}
	return out, nil
}

// NewRunTempDir creates a fresh, uniquely-named temp subdirectory for
// one run under baseDir, used for scratch files that must not collide
// across concurrent runs sharing the same cache directory.
func NewRunTempDir(baseDir string) (string, error) {
	dir := filepath.Join(baseDir, "run-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create run temp dir: %w", err)
	}
	return dir, nil
}
