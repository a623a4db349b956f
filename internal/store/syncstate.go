package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"maunium.net/go/mautrix/id"
)

// SetCheckpoint stores a sync_state value.
func (db *DB) SetCheckpoint(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// Checkpoint returns a sync_state value, or "" when unset.
func (db *DB) Checkpoint(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// The methods below let DB serve as the sync token store of the Matrix client.

func (db *DB) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return db.SetCheckpoint(ctx, "filter_id:"+userID.String(), filterID)
}

func (db *DB) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return db.Checkpoint(ctx, "filter_id:"+userID.String())
}

func (db *DB) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return db.SetCheckpoint(ctx, "next_batch:"+userID.String(), nextBatchToken)
}

func (db *DB) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return db.Checkpoint(ctx, "next_batch:"+userID.String())
}
