package notify

import (
	"cmp"
	"slices"

	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
)

// Notification is what the client shows for an event that passed the gate.
type Notification struct {
	RoomID     string
	RoomName   string
	SenderID   string
	SenderName string
	Body       string
	EventID    string
	Timestamp  int64
}

// Build creates the notification for ev using the room's state.
func Build(ev protocol.Event, snap room.Snapshot, idx room.DirectIndex, myUserID string) Notification {
	n := Notification{
		RoomID:     ev.RoomID,
		RoomName:   room.DisplayName(snap, idx, myUserID),
		SenderID:   ev.SenderID,
		SenderName: snap.SenderName(ev.SenderID),
		Body:       room.Preview(&ev),
		EventID:    ev.EventID,
		Timestamp:  ev.Timestamp,
	}
	return n
}

// Digest returns the summaries with unread messages, busiest first.
func Digest(summaries []room.Summary) []room.Summary {
	var out []room.Summary
	for _, s := range summaries {
		if s.UnreadCount > 0 {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b room.Summary) int {
		return cmp.Compare(b.UnreadCount, a.UnreadCount)
	})
	return out
}
