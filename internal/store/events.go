package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/typec/internal/protocol"
)

const eventColumns = `room_id, event_id, txn_id, sender_id, type, msgtype, body, media_url,
	mime_type, size, decryption_state, decryption_reason, timestamp`

// UpsertEvent caches a server-confirmed event. It is idempotent on
// (room_id, event_id). A still-encrypted redelivery never overwrites content
// that was already decrypted.
func (db *DB) UpsertEvent(ev protocol.Event) error {
	if ev.EventID == "" {
		return errors.New("upsert event: missing event id")
	}
	_, err := db.Exec(`
		INSERT INTO events (`+eventColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, event_id) DO UPDATE SET
			txn_id = CASE WHEN excluded.txn_id != '' THEN excluded.txn_id ELSE events.txn_id END,
			type = excluded.type,
			msgtype = excluded.msgtype,
			body = excluded.body,
			media_url = excluded.media_url,
			mime_type = excluded.mime_type,
			size = excluded.size,
			decryption_state = excluded.decryption_state,
			decryption_reason = excluded.decryption_reason
		WHERE NOT (excluded.type = 'm.room.encrypted'
			AND excluded.decryption_state != 'succeeded'
			AND events.decryption_state = 'succeeded')`,
		ev.RoomID, ev.EventID, ev.TransactionID, ev.SenderID, string(ev.Type),
		ev.Content.MsgType, ev.Content.Body, ev.Content.MediaURL, ev.Content.MimeType,
		ev.Content.Size, string(ev.Decryption.State), ev.Decryption.Reason, ev.Timestamp,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.EventID, err)
	}
	return nil
}

// UpsertEvents caches a batch of events in one transaction.
func (db *DB) UpsertEvents(evs []protocol.Event) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO events (` + eventColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, event_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	n := 0
	for _, ev := range evs {
		if ev.EventID == "" {
			continue
		}
		res, err := stmt.Exec(ev.RoomID, ev.EventID, ev.TransactionID, ev.SenderID, string(ev.Type),
			ev.Content.MsgType, ev.Content.Body, ev.Content.MediaURL, ev.Content.MimeType,
			ev.Content.Size, string(ev.Decryption.State), ev.Decryption.Reason, ev.Timestamp, now)
		if err != nil {
			return 0, fmt.Errorf("insert event %s: %w", ev.EventID, err)
		}
		if c, _ := res.RowsAffected(); c > 0 {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner, extra ...any) (protocol.Event, error) {
	var (
		ev         protocol.Event
		typ, state string
	)
	dest := []any{
		&ev.RoomID, &ev.EventID, &ev.TransactionID, &ev.SenderID, &typ,
		&ev.Content.MsgType, &ev.Content.Body, &ev.Content.MediaURL, &ev.Content.MimeType,
		&ev.Content.Size, &state, &ev.Decryption.Reason, &ev.Timestamp,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return protocol.Event{}, err
	}
	ev.Type = protocol.EventType(typ)
	ev.Decryption.State = protocol.DecryptionState(state)
	return ev, nil
}

// ListEvents returns up to limit events of a room older than beforeTs, in
// timeline order (oldest first). beforeTs <= 0 means now.
func (db *DB) ListEvents(roomID string, beforeTs int64, limit int) ([]protocol.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE room_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, roomID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var evs []protocol.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(evs)
	return evs, nil
}

// GetEvent returns a cached event, or nil if it is not cached.
func (db *DB) GetEvent(roomID, eventID string) (*protocol.Event, error) {
	row := db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE room_id = ? AND event_id = ?`, roomID, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
