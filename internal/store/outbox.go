package store

import "time"

// OutboxEntry is one outgoing message and its delivery state.
type OutboxEntry struct {
	ID           int64
	TxnID        string
	RoomID       string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	EventID      string
	CreatedAt    int64
}

// QueueOutbox records a message about to be sent.
func (db *DB) QueueOutbox(txnID, roomID, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (txn_id, room_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		txnID, roomID, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(txnID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE txn_id = ?`,
		time.Now().UnixMilli(), txnID)
	return err
}

// MarkOutboxSent records the server event id for a delivered message.
func (db *DB) MarkOutboxSent(txnID, eventID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', event_id = ?, updated_at = ? WHERE txn_id = ?`,
		eventID, time.Now().UnixMilli(), txnID)
	return err
}

// MarkOutboxFailed records why a message could not be delivered.
func (db *DB) MarkOutboxFailed(txnID, errMsg string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE txn_id = ?`,
		errMsg, time.Now().UnixMilli(), txnID)
	return err
}

// ListOutbox returns outbox entries with the given status, oldest first. An
// empty status returns every entry.
func (db *DB) ListOutbox(status string, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, txn_id, room_id, body, status, error_message, event_id, created_at
		FROM outbox
		WHERE ? = '' OR status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, status, status, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.TxnID, &e.RoomID, &e.Body, &e.Status, &e.ErrorMessage, &e.EventID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
