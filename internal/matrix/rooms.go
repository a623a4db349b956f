package matrix

import (
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// roomState is the client's running view of one room, folded from sync
// responses.
type roomState struct {
	id           string
	name         string
	alias        string
	encrypted    bool
	membership   room.Membership
	inviter      string
	joinedCount  *int
	invitedCount *int
	members      map[string]*room.Member
	order        []string
	power        map[string]int
	powerDefault int
	unread       int
	last         *protocol.Event
}

func newRoomState(roomID string) *roomState {
	return &roomState{
		id:      roomID,
		members: make(map[string]*room.Member),
		power:   make(map[string]int),
	}
}

func (r *roomState) member(userID string) *room.Member {
	m, ok := r.members[userID]
	if !ok {
		m = &room.Member{UserID: userID}
		r.members[userID] = m
		r.order = append(r.order, userID)
	}
	return m
}

// applyState folds one state event. myUserID is used to track the user's own
// membership and who invited them.
func (r *roomState) applyState(evt *event.Event, myUserID string) {
	if evt == nil || evt.StateKey == nil || !parseContent(evt, event.StateEventType) {
		return
	}
	switch evt.Type.Type {
	case event.StateRoomName.Type:
		r.name = evt.Content.AsRoomName().Name
	case event.StateCanonicalAlias.Type:
		r.alias = string(evt.Content.AsCanonicalAlias().Alias)
	case event.StateEncryption.Type:
		r.encrypted = true
	case event.StatePowerLevels.Type:
		pl := evt.Content.AsPowerLevels()
		r.power = make(map[string]int, len(pl.Users))
		for u, lvl := range pl.Users {
			r.power[u.String()] = lvl
		}
		r.powerDefault = pl.UsersDefault
	case event.StateMember.Type:
		content := evt.Content.AsMember()
		userID := *evt.StateKey
		m := r.member(userID)
		m.Membership = room.Membership(content.Membership)
		if content.Displayname != "" {
			m.DisplayName = content.Displayname
		}
		if content.AvatarURL != "" {
			m.AvatarURL = string(content.AvatarURL)
		}
		if userID == myUserID {
			r.membership = m.Membership
			if m.Membership == room.Invite {
				r.inviter = evt.Sender.String()
			}
		}
	}
}

// applySummary records the server's member counts. Lazy-loaded rooms carry
// them only when they change, so nil values keep the previous count.
func (r *roomState) applySummary(s mautrix.LazyLoadSummary) {
	if s.JoinedMemberCount != nil {
		n := *s.JoinedMemberCount
		r.joinedCount = &n
	}
	if s.InvitedMemberCount != nil {
		n := *s.InvitedMemberCount
		r.invitedCount = &n
	}
}

func (r *roomState) observe(ev protocol.Event) {
	if r.last == nil || ev.Timestamp >= r.last.Timestamp {
		cp := ev
		r.last = &cp
	}
}

func (r *roomState) count(m room.Membership) int {
	n := 0
	for _, mem := range r.members {
		if mem.Membership == m {
			n++
		}
	}
	return n
}

func (r *roomState) snapshot() room.Snapshot {
	s := room.Snapshot{
		ID:             r.id,
		Name:           r.name,
		CanonicalAlias: r.alias,
		MyMembership:   r.membership,
		Inviter:        r.inviter,
		Encrypted:      r.encrypted,
		UnreadCount:    r.unread,
		Members:        make([]room.Member, 0, len(r.order)),
	}
	if r.joinedCount != nil {
		s.JoinedCount = *r.joinedCount
	} else {
		s.JoinedCount = r.count(room.Join)
	}
	if r.invitedCount != nil {
		s.InvitedCount = *r.invitedCount
	} else {
		s.InvitedCount = r.count(room.Invite)
	}
	for _, uid := range r.order {
		m := *r.members[uid]
		if lvl, ok := r.power[uid]; ok {
			m.PowerLevel = lvl
		} else {
			m.PowerLevel = r.powerDefault
		}
		s.Members = append(s.Members, m)
	}
	if r.last != nil {
		cp := *r.last
		s.LastEvent = &cp
	}
	return s
}

func directIndexFrom(content event.DirectChatsEventContent) room.DirectIndex {
	idx := make(room.DirectIndex, len(content))
	for user, rooms := range content {
		ids := make([]string, 0, len(rooms))
		for _, r := range rooms {
			ids = append(ids, r.String())
		}
		idx[user.String()] = ids
	}
	return idx
}

func directContentFrom(idx room.DirectIndex) event.DirectChatsEventContent {
	content := make(event.DirectChatsEventContent, len(idx))
	for user, rooms := range idx {
		ids := make([]id.RoomID, 0, len(rooms))
		for _, r := range rooms {
			ids = append(ids, id.RoomID(r))
		}
		content[id.UserID(user)] = ids
	}
	return content
}
