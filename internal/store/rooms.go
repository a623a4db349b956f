package store

import "time"

// RoomRow is the cached room-list entry, kept so the list can be shown before
// the first sync completes.
type RoomRow struct {
	RoomID             string
	Name               string
	Classification     string
	Membership         string
	Encrypted          bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// UpsertRoom inserts or updates a cached room.
func (db *DB) UpsertRoom(r RoomRow) error {
	_, err := db.Exec(`
		INSERT INTO rooms (room_id, name, classification, membership, encrypted, unread_count,
			last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			name = excluded.name,
			classification = excluded.classification,
			membership = excluded.membership,
			encrypted = excluded.encrypted,
			unread_count = excluded.unread_count,
			last_message_at = MAX(rooms.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= rooms.last_message_at
				THEN excluded.last_message_preview ELSE rooms.last_message_preview END,
			updated_at = excluded.updated_at`,
		r.RoomID, r.Name, r.Classification, r.Membership, r.Encrypted, r.UnreadCount,
		r.LastMessageAt, r.LastMessagePreview, time.Now().UnixMilli())
	return err
}

// ListRooms returns cached rooms, most recent activity first.
func (db *DB) ListRooms(limit, offset int) ([]RoomRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT room_id, name, classification, membership, encrypted, unread_count,
			last_message_at, last_message_preview
		FROM rooms
		WHERE membership IN ('join', 'invite')
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RoomRow
	for rows.Next() {
		var r RoomRow
		if err := rows.Scan(&r.RoomID, &r.Name, &r.Classification, &r.Membership, &r.Encrypted,
			&r.UnreadCount, &r.LastMessageAt, &r.LastMessagePreview); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
