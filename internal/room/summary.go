package room

import (
	"strings"

	"github.com/matheus3301/typec/internal/protocol"
	"golang.org/x/text/cases"
)

// Tab selects which rooms a list shows.
type Tab string

const (
	TabDMs     Tab = "dms"
	TabRooms   Tab = "rooms"
	TabInvites Tab = "invites"
)

// ParseTab maps a user-supplied tab name to a Tab, defaulting to TabDMs.
func ParseTab(s string) Tab {
	switch Tab(strings.ToLower(s)) {
	case TabRooms:
		return TabRooms
	case TabInvites:
		return TabInvites
	default:
		return TabDMs
	}
}

// Summary is the room-list view of a room.
type Summary struct {
	RoomID             string
	DisplayName        string
	Classification     Classification
	UnreadCount        int
	LastMessagePreview string
	LastMessageAt      int64
	IsActive           bool
	Invited            bool
	Inviter            string
	Encrypted          bool
}

// ShowBadge reports whether the unread badge should be drawn. The open room
// never shows one.
func (s Summary) ShowBadge() bool {
	return s.UnreadCount > 0 && !s.IsActive
}

const unnamedRoom = "Unnamed room"

// DisplayName resolves the name shown for a room: the explicit name, then the
// canonical alias, then for unnamed DMs the counterpart's name.
func DisplayName(s Snapshot, idx DirectIndex, myUserID string) string {
	if s.Named() {
		return s.Name
	}
	if Classify(s, idx) == DM {
		if m, ok := s.Counterpart(myUserID); ok {
			if m.DisplayName != "" {
				return m.DisplayName
			}
			return Localpart(m.UserID)
		}
	}
	if s.CanonicalAlias != "" {
		return s.CanonicalAlias
	}
	return unnamedRoom
}

// Preview returns the room-list preview text for the latest event.
func Preview(evt *protocol.Event) string {
	if evt == nil {
		return "No messages"
	}
	if evt.StillEncrypted() {
		if evt.Content.Body != "" {
			return evt.Content.Body
		}
		return "[encrypted]"
	}
	if evt.Content.Body != "" {
		return evt.Content.Body
	}
	return "Message"
}

// Options controls Summaries.
type Options struct {
	MyUserID     string
	ActiveRoomID string
	Tab          Tab
}

// Summaries builds the room list for a tab. Rooms the user left or was banned
// from are skipped; invites only appear on the invites tab.
func Summaries(rooms []Snapshot, idx DirectIndex, opts Options) []Summary {
	var out []Summary
	for _, s := range rooms {
		if s.MyMembership != Join && s.MyMembership != Invite {
			continue
		}
		invited := s.MyMembership == Invite
		c := Classify(s, idx)

		switch opts.Tab {
		case TabInvites:
			if !invited {
				continue
			}
		case TabRooms:
			if invited || c != Group {
				continue
			}
		default:
			if invited || c != DM {
				continue
			}
		}

		sum := Summary{
			RoomID:         s.ID,
			DisplayName:    DisplayName(s, idx, opts.MyUserID),
			Classification: c,
			UnreadCount:    s.UnreadCount,
			IsActive:       s.ID == opts.ActiveRoomID,
			Invited:        invited,
			Inviter:        s.Inviter,
			Encrypted:      s.Encrypted,
		}
		if invited {
			sum.LastMessagePreview = "You were invited to this room"
		} else {
			sum.LastMessagePreview = Preview(s.LastEvent)
		}
		if s.LastEvent != nil {
			sum.LastMessageAt = s.LastEvent.Timestamp
		}
		out = append(out, sum)
	}
	return out
}

// FindExistingDM returns the id of a DM room that userID has joined.
func FindExistingDM(rooms []Snapshot, idx DirectIndex, userID string) (string, bool) {
	for _, s := range rooms {
		if Classify(s, idx) != DM {
			continue
		}
		if m, ok := s.Member(userID); ok && m.Membership == Join {
			return s.ID, true
		}
	}
	return "", false
}

// Filter keeps summaries whose display name contains query, ignoring case.
func Filter(summaries []Summary, query string) []Summary {
	if query == "" {
		return summaries
	}
	fold := cases.Fold()
	q := fold.String(query)
	var out []Summary
	for _, s := range summaries {
		if strings.Contains(fold.String(s.DisplayName), q) {
			out = append(out, s)
		}
	}
	return out
}
