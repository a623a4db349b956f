package matrix

import (
	"errors"

	"github.com/matheus3301/typec/internal/protocol"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// parseContent decodes evt.Content into its typed form. Events are decoded at
// most once; a second call is a no-op.
func parseContent(evt *event.Event, class event.TypeClass) bool {
	if evt.Type.Class == event.UnknownEventType {
		evt.Type.Class = class
	}
	err := evt.Content.ParseRaw(evt.Type)
	return err == nil || errors.Is(err, event.ErrContentAlreadyParsed)
}

// toProtocol converts a timeline event. Only messages and encrypted events
// are kept; state and other event types return false.
func toProtocol(roomID id.RoomID, evt *event.Event) (protocol.Event, bool) {
	if evt == nil || evt.StateKey != nil {
		return protocol.Event{}, false
	}
	out := protocol.Event{
		EventID:       evt.ID.String(),
		TransactionID: evt.Unsigned.TransactionID,
		RoomID:        roomID.String(),
		SenderID:      evt.Sender.String(),
		Timestamp:     evt.Timestamp,
	}
	if evt.RoomID != "" {
		out.RoomID = evt.RoomID.String()
	}

	switch evt.Type.Type {
	case event.EventEncrypted.Type:
		out.Type = protocol.TypeEncrypted
		return out, true
	case event.EventMessage.Type:
		out.Type = protocol.TypeMessage
		if !parseContent(evt, event.MessageEventType) {
			return out, true
		}
		out.Content = messageContent(evt.Content.AsMessage())
		return out, true
	}
	return protocol.Event{}, false
}

// decrypted converts the result of a successful decryption. The event keeps
// the encrypted type so consumers can tell it replaces a placeholder.
func decrypted(roomID id.RoomID, original, plain *event.Event) protocol.Event {
	out, _ := toProtocol(roomID, original)
	out.Type = protocol.TypeEncrypted
	out.Decryption = protocol.Decryption{State: protocol.DecryptionSucceeded}
	if plain != nil && plain.Type.Type == event.EventMessage.Type && parseContent(plain, event.MessageEventType) {
		out.Content = messageContent(plain.Content.AsMessage())
	}
	return out
}

func messageContent(c *event.MessageEventContent) protocol.Content {
	out := protocol.Content{
		Body:    c.Body,
		MsgType: string(c.MsgType),
	}
	switch {
	case c.URL != "":
		out.MediaURL = string(c.URL)
	case c.File != nil:
		out.MediaURL = string(c.File.URL)
	}
	if c.Info != nil {
		out.MimeType = c.Info.MimeType
		out.Size = int64(c.Info.Size)
	}
	if c.FileName != "" && out.MediaURL != "" && c.MsgType == event.MsgFile {
		out.Body = c.FileName
	}
	return out
}
