package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

// BackupExpiry is how long an import backup stays recoverable. Expired
// backups are pruned opportunistically on the next backup operation.
const BackupExpiry = time.Hour

// Backup is one recoverable snapshot of a set's progress, taken before a
// destructive import overwrite.
type Backup struct {
	ID        int64
	SetKey    string
	Items     []model.UserProgress
	CreatedAt time.Time
}

// SaveBackup snapshots a set's progress before an overwrite and returns
// the backup id.
func (db *DB) SaveBackup(ctx context.Context, setKey string, items []model.UserProgress) (int64, error) {
	if err := db.PruneBackups(ctx, time.Now()); err != nil {
		db.logger.Printf("failed to prune expired backups: %v", err)
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal backup for set %s: %w", setKey, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO import_backups (set_key, payload, created_at) VALUES (?, ?, ?)",
		setKey, string(payload), now)
	if err != nil {
		return 0, fmt.Errorf("failed to save backup for set %s: %w", setKey, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read backup id: %w", err)
	}
	return id, nil
}

// LatestBackup returns the newest unexpired backup for a set, or nil if
// none exists.
func (db *DB) LatestBackup(ctx context.Context, setKey string, now time.Time) (*Backup, error) {
	cutoff := now.Add(-BackupExpiry).UTC().Format(time.RFC3339)
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, payload, created_at FROM import_backups
		WHERE set_key = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		setKey, cutoff)

	var b Backup
	var payload, createdAt string
	err := row.Scan(&b.ID, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backup for set %s: %w", setKey, err)
	}

	if err := json.Unmarshal([]byte(payload), &b.Items); err != nil {
		return nil, fmt.Errorf("corrupt backup %d for set %s: %w", b.ID, setKey, err)
	}
	b.SetKey = setKey
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// DeleteBackup removes one backup after a successful undo.
func (db *DB) DeleteBackup(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM import_backups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete backup %d: %w", id, err)
	}
	return nil
}

// PruneBackups deletes backups older than the expiry window.
func (db *DB) PruneBackups(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-BackupExpiry).UTC().Format(time.RFC3339)
	if _, err := db.conn.ExecContext(ctx,
		"DELETE FROM import_backups WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to prune backups: %w", err)
	}
	return nil
}
