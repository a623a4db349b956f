package room

import (
	"strings"

	"github.com/matheus3301/typec/internal/protocol"
)

// Membership is a user's membership state in a room.
type Membership string

const (
	Join   Membership = "join"
	Invite Membership = "invite"
	Leave  Membership = "leave"
	Ban    Membership = "ban"
)

// Member is one room member as seen in room state.
type Member struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Membership  Membership
	PowerLevel  int
}

// Snapshot is the state of a room at one sync tick. It is a value: callers
// get a fresh copy from the sync client every time.
type Snapshot struct {
	ID             string
	Name           string // content of the name state event, empty when unset
	CanonicalAlias string
	MyMembership   Membership
	Inviter        string
	JoinedCount    int
	InvitedCount   int
	Members        []Member
	Encrypted      bool
	UnreadCount    int
	LastEvent      *protocol.Event
}

// Named reports whether the room has an explicit, non-empty name.
func (s Snapshot) Named() bool {
	return s.Name != ""
}

// Member returns the member with the given user id.
func (s Snapshot) Member(userID string) (Member, bool) {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// Counterpart returns the first joined member that is not myUserID.
func (s Snapshot) Counterpart(myUserID string) (Member, bool) {
	for _, m := range s.Members {
		if m.Membership == Join && m.UserID != myUserID {
			return m, true
		}
	}
	return Member{}, false
}

// Localpart returns the user part of a Matrix user id ("@alice:example.org"
// gives "alice").
func Localpart(userID string) string {
	local, _, _ := strings.Cut(userID, ":")
	return strings.TrimPrefix(local, "@")
}

// SenderName resolves a display name for userID using room membership.
func (s Snapshot) SenderName(userID string) string {
	if m, ok := s.Member(userID); ok && m.DisplayName != "" {
		return m.DisplayName
	}
	return Localpart(userID)
}
