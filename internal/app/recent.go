package app

import "slices"

// DefaultRecentLimit bounds the recent-rooms list when no limit is configured.
const DefaultRecentLimit = 5

// RecentRooms is a bounded most-recent-first list of room ids. It is not safe
// for concurrent use; Session guards it.
type RecentRooms struct {
	max int
	ids []string
}

// NewRecentRooms returns an empty list holding at most max rooms.
func NewRecentRooms(max int) *RecentRooms {
	if max <= 0 {
		max = DefaultRecentLimit
	}
	return &RecentRooms{max: max}
}

// Track moves roomID to the front, dropping the oldest entry when full.
func (r *RecentRooms) Track(roomID string) {
	if roomID == "" {
		return
	}
	if i := slices.Index(r.ids, roomID); i >= 0 {
		r.ids = slices.Delete(r.ids, i, i+1)
	}
	r.ids = slices.Insert(r.ids, 0, roomID)
	if len(r.ids) > r.max {
		r.ids = r.ids[:r.max]
	}
}

// Remove drops roomID, e.g. after leaving it.
func (r *RecentRooms) Remove(roomID string) {
	if i := slices.Index(r.ids, roomID); i >= 0 {
		r.ids = slices.Delete(r.ids, i, i+1)
	}
}

// List returns a copy, most recent first.
func (r *RecentRooms) List() []string {
	return slices.Clone(r.ids)
}
