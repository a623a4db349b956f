// Package notify decides which events raise a notification and keeps the
// per-room unread counts.
package notify

import "github.com/matheus3301/typec/internal/protocol"

// Gate decides whether a live event should notify the user.
type Gate struct {
	MyUserID string
}

// ShouldNotify reports whether ev warrants a notification given the room
// currently open and whether the client has input focus.
func (g Gate) ShouldNotify(ev protocol.Event, currentRoomID string, hasFocus bool) bool {
	if ev.SenderID == g.MyUserID {
		return false
	}
	if ev.RoomID == currentRoomID && hasFocus {
		return false
	}
	return true
}
