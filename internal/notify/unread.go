package notify

import "sync"

type unreadEntry struct {
	server int
	zeroed bool
}

// Unread tracks per-room unread counts. Counts come from the server on each
// sync tick; a local Zero wins until the server drops to zero itself or a
// newer event arrives in the room.
type Unread struct {
	mu    sync.Mutex
	rooms map[string]*unreadEntry
}

// NewUnread returns an empty tracker.
func NewUnread() *Unread {
	return &Unread{rooms: make(map[string]*unreadEntry)}
}

func (u *Unread) entry(roomID string) *unreadEntry {
	e, ok := u.rooms[roomID]
	if !ok {
		e = &unreadEntry{}
		u.rooms[roomID] = e
	}
	return e
}

// Observe records the server-reported count for a room.
func (u *Unread) Observe(roomID string, count int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(roomID)
	e.server = count
	if count == 0 {
		e.zeroed = false
	}
}

// Touch records that a new event arrived in the room, ending any local
// override so the next server count shows.
func (u *Unread) Touch(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entry(roomID).zeroed = false
}

// Zero marks the room read locally.
func (u *Unread) Zero(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entry(roomID).zeroed = true
}

// Count returns the effective unread count.
func (u *Unread) Count(roomID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	e, ok := u.rooms[roomID]
	if !ok || e.zeroed {
		return 0
	}
	return e.server
}

// Total returns the sum of effective counts over all rooms.
func (u *Unread) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, e := range u.rooms {
		if !e.zeroed {
			n += e.server
		}
	}
	return n
}
