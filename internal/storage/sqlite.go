package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	facerrors "github.com/facetdb/facet/internal/errors"
)

// SQLiteStore implements Store on a single SQLite database file.
// WAL mode allows concurrent readers; writes go through a single
// connection to avoid lock contention.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// validateSQLiteIntegrity checks a SQLite store file before opening.
// Returns nil if the file is absent or valid, a corruption error otherwise.
// The caller decides whether to wipe and retry; this function never
// deletes anything.
func validateSQLiteIntegrity(path string) error {
	// Check if database file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	// Try to open read-only for validation
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	// Quick integrity check
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	// Verify kv table exists
	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='kv'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("kv table missing")
	}

	return nil
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at path.
// If path is empty, an in-memory database is used for testing.
// An existing file that fails the integrity check yields a corruption
// error without modifying the file; the registry wipes and retries.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		// In-memory store for testing
		dsn = ":memory:"
	} else {
		// Create directory if needed
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, facerrors.StorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			return nil, facerrors.CorruptionError(
				fmt.Sprintf("sqlite store at %s failed integrity check", path), validErr)
		}

		// WAL mode for concurrent access
		// _busy_timeout handles lock contention gracefully
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, facerrors.StorageError("failed to open database", err)
	}

	// Configure connection pool for SQLite
	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Don't expire connections

	cacheKB := 65536
	if opts.CacheSizeMB > 0 {
		cacheKB = opts.CacheSizeMB * 1024
	}
	synchronous := "NORMAL"
	if opts.SyncWrites {
		synchronous = "FULL"
	}

	// Set pragmas via statements (DSN params may be ignored by modernc.org/sqlite)
	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = " + synchronous,
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheKB), // negative = KB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, facerrors.StorageError("failed to set pragma", err)
		}
	}

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, classifySQLiteError("init", err)
	}

	return s, nil
}

// initSchema creates the key-value table and version tracking.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Ordered key-value rows; BLOB keys compare bytewise, which matches
	-- the Scan contract.
	CREATE TABLE IF NOT EXISTS kv (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID;

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path, or empty for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, classifySQLiteError("get", err)
	}
	return value, nil
}

// Set stores value under key.
func (s *SQLiteStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO kv(key, value) VALUES (?, ?)`, key, value); err != nil {
		return classifySQLiteError("set", err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return classifySQLiteError("delete", err)
	}
	return nil
}

// Apply applies the batch inside a single transaction.
func (s *SQLiteStore) Apply(batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return classifySQLiteError("apply", err)
	}
	defer func() { _ = tx.Rollback() }()

	setStmt, err := tx.Prepare(`INSERT OR REPLACE INTO kv(key, value) VALUES (?, ?)`)
	if err != nil {
		return classifySQLiteError("apply", err)
	}
	defer setStmt.Close()

	delStmt, err := tx.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return classifySQLiteError("apply", err)
	}
	defer delStmt.Close()

	for _, op := range batch.ops {
		if op.delete {
			_, err = delStmt.Exec(op.key)
		} else {
			_, err = setStmt.Exec(op.key, op.value)
		}
		if err != nil {
			return classifySQLiteError("apply", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifySQLiteError("apply", err)
	}
	return nil
}

// Scan visits every entry under prefix in ascending key order.
func (s *SQLiteStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	var rows *sql.Rows
	var err error
	if len(prefix) == 0 {
		rows, err = s.db.Query(`SELECT key, value FROM kv ORDER BY key`)
	} else if end := prefixSuccessor(prefix); end != nil {
		rows, err = s.db.Query(`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, prefix, end)
	} else {
		rows, err = s.db.Query(`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, prefix)
	}
	if err != nil {
		return classifySQLiteError("scan", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return classifySQLiteError("scan", err)
		}
		// Callback errors propagate unchanged so sentinel values survive.
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return classifySQLiteError("scan", err)
	}
	return nil
}

// Flush checkpoints the WAL into the main database file.
func (s *SQLiteStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// In-memory databases have no WAL to checkpoint.
	if s.path == "" {
		return nil
	}

	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return classifySQLiteError("flush", err)
	}
	return nil
}

// Close checkpoints and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	}
	if err := s.db.Close(); err != nil {
		return classifySQLiteError("close", err)
	}
	return nil
}

// classifySQLiteError maps a SQLite error onto the storage error taxonomy.
func classifySQLiteError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") {
		return facerrors.CorruptionError("sqlite "+op+" detected corruption", err)
	}
	return facerrors.StorageError("sqlite "+op+" failed", err)
}
