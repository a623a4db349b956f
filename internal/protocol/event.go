package protocol

import "time"

// EventType is the protocol type of a timeline event.
type EventType string

const (
	TypeMessage   EventType = "m.room.message"
	TypeEncrypted EventType = "m.room.encrypted"
)

// Message content types.
const (
	MsgText   = "m.text"
	MsgNotice = "m.notice"
	MsgEmote  = "m.emote"
	MsgImage  = "m.image"
	MsgFile   = "m.file"
	MsgVideo  = "m.video"
	MsgAudio  = "m.audio"
)

// DecryptionState tracks an encrypted event through key arrival.
type DecryptionState string

const (
	DecryptionNone      DecryptionState = ""
	DecryptionPending   DecryptionState = "pending"
	DecryptionSucceeded DecryptionState = "succeeded"
	DecryptionFailed    DecryptionState = "failed"
)

// Decryption is the crypto status of an event as reported by the sync client.
type Decryption struct {
	State  DecryptionState
	Reason string
}

// Content is the payload of a message event. For encrypted events it is empty
// until decryption succeeds.
type Content struct {
	Body     string
	MsgType  string
	MediaURL string
	MimeType string
	Size     int64
}

// Event is a timeline event as delivered by the sync client. It is treated as
// immutable; a decryption result arrives as a new Event with the same identity.
type Event struct {
	EventID       string
	TransactionID string
	RoomID        string
	SenderID      string
	Type          EventType
	Timestamp     int64 // unix ms
	Content       Content
	Decryption    Decryption
}

// Key returns the identity key: the server event id when assigned, otherwise
// the local transaction id.
func (e Event) Key() string {
	if e.EventID != "" {
		return e.EventID
	}
	return e.TransactionID
}

// StillEncrypted reports whether the content is not readable yet.
func (e Event) StillEncrypted() bool {
	return e.Type == TypeEncrypted && e.Decryption.State != DecryptionSucceeded
}

// IsLocalEcho reports whether the event was sent by this device and has not
// been acknowledged by the server.
func (e Event) IsLocalEcho() bool {
	return e.EventID == "" && e.TransactionID != ""
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
