package room

import "slices"

// Classification is the DM/group decision for a room.
type Classification int

const (
	Group Classification = iota
	DM
)

func (c Classification) String() string {
	if c == DM {
		return "dm"
	}
	return "group"
}

// DirectIndex is the account-level direct-message index: counterpart user id
// to the room ids of direct chats with that user.
type DirectIndex map[string][]string

// Contains reports whether roomID is listed under any counterpart.
func (d DirectIndex) Contains(roomID string) bool {
	for _, rooms := range d {
		if slices.Contains(rooms, roomID) {
			return true
		}
	}
	return false
}

// With returns a copy of the index with roomID recorded under userID.
func (d DirectIndex) With(userID, roomID string) DirectIndex {
	out := make(DirectIndex, len(d)+1)
	for u, rooms := range d {
		out[u] = slices.Clone(rooms)
	}
	if !slices.Contains(out[userID], roomID) {
		out[userID] = append(out[userID], roomID)
	}
	return out
}

// Classify decides whether a room is a direct chat or a group. The direct
// index is authoritative; otherwise a room with at most two members (joined
// plus invited) and no explicit name is a DM.
func Classify(s Snapshot, idx DirectIndex) Classification {
	if idx.Contains(s.ID) {
		return DM
	}
	if s.JoinedCount+s.InvitedCount <= 2 && !s.Named() {
		return DM
	}
	return Group
}

// AdminThreshold is the power level at which a sender gets the admin badge.
const AdminThreshold = 50

// AdminBadge reports whether senderID should be shown as an admin. DMs never
// show the badge since both participants usually hold elevated power.
func AdminBadge(s Snapshot, c Classification, senderID string) bool {
	if c != Group || s.JoinedCount <= 2 {
		return false
	}
	m, ok := s.Member(senderID)
	return ok && m.PowerLevel >= AdminThreshold
}
