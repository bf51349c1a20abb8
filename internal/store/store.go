// Package store provides the local durable layer for grindsync.
//
// Progress is persisted per problem set as a whole JSON document, one row
// per set. Whole-document overwrite keeps concurrent writers (two
// processes on the same machine) from interleaving partial updates: the
// last full write wins, matching the remote store's semantics.
//
// The database runs embedded with WAL mode so status reads stay cheap
// while a sync is writing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/grindpulse/grindsync/internal/model"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection holding progress, config documents,
// import backups, and sync bookkeeping.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (creating if needed) the database at path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(filepath.Join(dataDir, "grindsync.db"), nil)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path, logger: logger}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS set_progress (
		set_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,  -- JSON array of progress records
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS config_docs (
		doc TEXT PRIMARY KEY,   -- filters, exportPrefs, uiPrefs, awareness
		payload TEXT NOT NULL,  -- JSON object
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_backups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		set_key TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON array of progress records
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_backups_set ON import_backups(set_key, created_at);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveSetProgress overwrites the stored progress document for one set.
// It satisfies the tracker's Saver interface.
func (db *DB) SaveSetProgress(setKey string, items []model.UserProgress) error {
	return db.SaveSetProgressContext(context.Background(), setKey, items)
}

// SaveSetProgressContext overwrites one set's progress with context support.
func (db *DB) SaveSetProgressContext(ctx context.Context, setKey string, items []model.UserProgress) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal progress for set %s: %w", setKey, err)
	}

	query := `
	INSERT INTO set_progress (set_key, payload, saved_at)
	VALUES (?, ?, ?)
	ON CONFLICT(set_key) DO UPDATE SET
		payload = excluded.payload,
		saved_at = excluded.saved_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.conn.ExecContext(ctx, query, setKey, string(payload), now); err != nil {
		return fmt.Errorf("failed to save progress for set %s: %w", setKey, err)
	}
	return nil
}

// LoadSetProgress returns the stored progress records for one set.
// A missing row or a corrupt payload both return (nil, nil): saved data
// is an overlay, and an unreadable overlay must never block startup.
func (db *DB) LoadSetProgress(setKey string) ([]model.UserProgress, error) {
	return db.LoadSetProgressContext(context.Background(), setKey)
}

// LoadSetProgressContext loads one set's progress with context support.
func (db *DB) LoadSetProgressContext(ctx context.Context, setKey string) ([]model.UserProgress, error) {
	var payload string
	err := db.conn.QueryRowContext(ctx,
		"SELECT payload FROM set_progress WHERE set_key = ?", setKey).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for set %s: %w", setKey, err)
	}

	var items []model.UserProgress
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		db.logger.Printf("corrupt progress payload for set %s, ignoring: %v", setKey, err)
		return nil, nil
	}
	return items, nil
}

// LoadInto merges saved progress onto the in-memory sets. The merge is
// additive: problems without a saved record keep their defaults, and
// saved records naming problems the set no longer has are skipped.
func (db *DB) LoadInto(ctx context.Context, sets []*model.ProblemSet) error {
	for _, set := range sets {
		items, err := db.LoadSetProgressContext(ctx, set.Key)
		if err != nil {
			return err
		}
		for _, up := range items {
			if p := set.Find(up.Name); p != nil {
				p.ApplyProgress(up)
			}
		}
	}
	return nil
}

// SaveConfigDoc overwrites one config document's payload.
func (db *DB) SaveConfigDoc(ctx context.Context, doc string, payload json.RawMessage) error {
	query := `
	INSERT INTO config_docs (doc, payload, saved_at)
	VALUES (?, ?, ?)
	ON CONFLICT(doc) DO UPDATE SET
		payload = excluded.payload,
		saved_at = excluded.saved_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.conn.ExecContext(ctx, query, doc, string(payload), now); err != nil {
		return fmt.Errorf("failed to save config doc %s: %w", doc, err)
	}
	return nil
}

// LoadConfigDoc returns one config document's payload, or nil if absent
// or unreadable.
func (db *DB) LoadConfigDoc(ctx context.Context, doc string) (json.RawMessage, error) {
	var payload string
	err := db.conn.QueryRowContext(ctx,
		"SELECT payload FROM config_docs WHERE doc = ?", doc).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config doc %s: %w", doc, err)
	}
	if !json.Valid([]byte(payload)) {
		db.logger.Printf("corrupt config doc %s, ignoring", doc)
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

// GetMeta returns a sync bookkeeping value, or "" if unset.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM sync_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a sync bookkeeping value.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO sync_meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := db.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write sync meta %s: %w", key, err)
	}
	return nil
}
