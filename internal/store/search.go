package store

import "github.com/matheus3301/typec/internal/protocol"

// SearchResult holds an event with a search snippet.
type SearchResult struct {
	Event   protocol.Event
	Snippet string
}

// SearchEvents performs a full-text search on cached message bodies,
// optionally restricted to one room.
func (db *DB) SearchEvents(query string, roomID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT e.room_id, e.event_id, e.txn_id, e.sender_id, e.type, e.msgtype, e.body,
		       e.media_url, e.mime_type, e.size, e.decryption_state, e.decryption_reason,
		       e.timestamp, snippet(events_fts, 0, '<<', '>>', '...', 32)
		FROM events_fts f
		JOIN events e ON e.id = f.rowid
		WHERE events_fts MATCH ?`

	args := []any{query}
	if roomID != "" {
		q += " AND e.room_id = ?"
		args = append(args, roomID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		ev, err := scanEvent(rows, &r.Snippet)
		if err != nil {
			return nil, err
		}
		r.Event = ev
		results = append(results, r)
	}
	return results, rows.Err()
}
