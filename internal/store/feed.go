package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotCached is returned when no copy of a feed has been stored.
var ErrNotCached = errors.New("feed not cached")

// SaveFeed stores the last good copy of a calendar feed.
func (db *DB) SaveFeed(ctx context.Context, url, doc string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO feed_cache (url, body, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, doc, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	return nil
}

// LoadFeed returns the cached copy of a calendar feed.
func (db *DB) LoadFeed(ctx context.Context, url string) (string, error) {
	var body string
	err := db.QueryRowContext(ctx, `SELECT body FROM feed_cache WHERE url = ?`, url).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotCached
	}
	if err != nil {
		return "", fmt.Errorf("load feed: %w", err)
	}
	return body, nil
}
