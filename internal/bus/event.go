package bus

import "time"

// Event is a domain event published on the bus. Kind is dot-namespaced so
// subscribers can filter by prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Kinds published by the sync client, the ingest engine and the session.
const (
	MatrixTimeline  = "matrix.timeline"  // Payload: protocol.Event
	MatrixDecrypted = "matrix.decrypted" // Payload: protocol.Event
	MatrixRooms     = "matrix.rooms"     // Payload: []string (changed room ids)

	SyncConnected    = "sync.connected"
	SyncDisconnected = "sync.disconnected"
	SyncHistory      = "sync.history_batch" // Payload: HistoryBatch

	SessionStatus = "session.status_changed"

	TimelineChanged = "timeline.changed" // Payload: string room id
	RoomsChanged    = "rooms.changed"
	NotifyMessage   = "notify.message" // Payload: notify.Notification
)

// HistoryBatch reports a bulk insert into the event cache.
type HistoryBatch struct {
	RoomID string
	Count  int
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
