package api

import (
	"encoding/json"

	"github.com/matheus3301/typec/internal/calendar"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/store"
	"github.com/matheus3301/typec/internal/timeline"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

type StatusResponse struct {
	Session     string `json:"session"`
	UserID      string `json:"user_id"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	Online      bool   `json:"online"`
	UptimeMs    int64  `json:"uptime_ms"`
	UnreadTotal int    `json:"unread_total"`
}

type FocusRequest struct {
	Focused bool `json:"focused"`
}

type SyncStatusResponse struct {
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	Online      bool   `json:"online"`
	LastEventTs string `json:"last_event_ts,omitempty"`
	BusDropped  uint64 `json:"bus_dropped"`
}

// WatchRequest selects bus event kinds by prefix. No prefixes means every
// kind except the raw sync traffic.
type WatchRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// Envelope is one bus event streamed to a client.
type Envelope struct {
	EventID      string          `json:"event_id"`
	Session      string          `json:"session"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Room is one room-list row.
type Room struct {
	RoomID        string `json:"room_id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Unread        int    `json:"unread"`
	Badge         bool   `json:"badge"`
	Preview       string `json:"preview,omitempty"`
	LastMessageAt int64  `json:"last_message_at,omitempty"`
	Active        bool   `json:"active,omitempty"`
	Invited       bool   `json:"invited,omitempty"`
	Inviter       string `json:"inviter,omitempty"`
	Encrypted     bool   `json:"encrypted,omitempty"`
}

func toRoom(s room.Summary) Room {
	return Room{
		RoomID:        s.RoomID,
		Name:          s.DisplayName,
		Kind:          s.Classification.String(),
		Unread:        s.UnreadCount,
		Badge:         s.ShowBadge(),
		Preview:       s.LastMessagePreview,
		LastMessageAt: s.LastMessageAt,
		Active:        s.IsActive,
		Invited:       s.Invited,
		Inviter:       s.Inviter,
		Encrypted:     s.Encrypted,
	}
}

func toRooms(in []room.Summary) []Room {
	out := make([]Room, 0, len(in))
	for _, s := range in {
		out = append(out, toRoom(s))
	}
	return out
}

type ListRoomsRequest struct {
	Tab   string `json:"tab,omitempty"`
	Query string `json:"query,omitempty"`
}

type RoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type RoomRequest struct {
	RoomID string `json:"room_id"`
}

type TabRequest struct {
	Tab string `json:"tab"`
}

type OpenDMRequest struct {
	UserID string `json:"user_id"`
}

type OpenDMResponse struct {
	RoomID string `json:"room_id"`
}

type StateResponse struct {
	CurrentRoomID string `json:"current_room_id,omitempty"`
	HasFocus      bool   `json:"has_focus"`
	Tab           string `json:"tab"`
	Recent        []Room `json:"recent"`
}

// Media is the resolution state of an attachment or avatar. The bytes stay
// in the daemon.
type Media struct {
	Ref   string `json:"ref"`
	State string `json:"state"`
	Size  int    `json:"size,omitempty"`
	Error string `json:"error,omitempty"`
}

type Attachment struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Media
}

// Message is one rendered timeline message.
type Message struct {
	Key               string      `json:"key"`
	EventID           string      `json:"event_id,omitempty"`
	TransactionID     string      `json:"txn_id,omitempty"`
	RoomID            string      `json:"room_id"`
	SenderID          string      `json:"sender_id"`
	SenderName        string      `json:"sender_name"`
	Body              string      `json:"body"`
	Placeholder       bool        `json:"placeholder,omitempty"`
	PlaceholderReason string      `json:"placeholder_reason,omitempty"`
	Timestamp         int64       `json:"timestamp"`
	Time              string      `json:"time"`
	Admin             bool        `json:"admin,omitempty"`
	Local             bool        `json:"local,omitempty"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	Avatar            *Media      `json:"avatar,omitempty"`
}

func toMedia(m timeline.Media) Media {
	return Media{Ref: m.Ref, State: string(m.State), Size: m.Size, Error: m.Error}
}

func toMessage(m timeline.Message) Message {
	out := Message{
		Key:               m.Key,
		EventID:           m.EventID,
		TransactionID:     m.TransactionID,
		RoomID:            m.RoomID,
		SenderID:          m.SenderID,
		SenderName:        m.SenderDisplayName,
		Body:              m.Body,
		Placeholder:       m.Placeholder,
		PlaceholderReason: m.PlaceholderReason,
		Timestamp:         m.Timestamp,
		Time:              m.TimestampDisplay,
		Admin:             m.IsAdminSender,
		Local:             m.Local,
	}
	if a := m.Attachment; a != nil {
		out.Attachment = &Attachment{Kind: string(a.Kind), Name: a.Name, MimeType: a.MimeType, Media: toMedia(a.Media)}
	}
	if m.Avatar != nil {
		av := toMedia(*m.Avatar)
		out.Avatar = &av
	}
	return out
}

func toMessages(in []timeline.Message) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, toMessage(m))
	}
	return out
}

type MessagesResponse struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
}

type SendRequest struct {
	RoomID string `json:"room_id,omitempty"`
	Body   string `json:"body"`
}

type SendResponse struct {
	EventID string `json:"event_id"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	RoomID string `json:"room_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchHit struct {
	RoomID    string `json:"room_id"`
	EventID   string `json:"event_id"`
	SenderID  string `json:"sender_id"`
	Snippet   string `json:"snippet"`
	Timestamp int64  `json:"timestamp"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

func toHits(in []store.SearchResult) []SearchHit {
	out := make([]SearchHit, 0, len(in))
	for _, r := range in {
		out = append(out, SearchHit{
			RoomID:    r.Event.RoomID,
			EventID:   r.Event.EventID,
			SenderID:  r.Event.SenderID,
			Snippet:   r.Snippet,
			Timestamp: r.Event.Timestamp,
		})
	}
	return out
}

type OutboxRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type OutboxEntry struct {
	TxnID     string `json:"txn_id"`
	RoomID    string `json:"room_id"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type OutboxResponse struct {
	Entries []OutboxEntry `json:"entries"`
}

func toOutbox(in []store.OutboxEntry) []OutboxEntry {
	out := make([]OutboxEntry, 0, len(in))
	for _, e := range in {
		out = append(out, OutboxEntry{
			TxnID: e.TxnID, RoomID: e.RoomID, Body: e.Body, Status: e.Status,
			Error: e.ErrorMessage, EventID: e.EventID, CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// Holiday is one calendar entry.
type Holiday struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Yearly      bool   `json:"yearly,omitempty"`
}

func toHolidays(in []calendar.Entry) []Holiday {
	out := make([]Holiday, 0, len(in))
	for _, e := range in {
		out = append(out, Holiday(e))
	}
	return out
}

// HolidaysRequest asks for one day, formatted 2006-01-02. An empty date
// means today.
type HolidaysRequest struct {
	Date string `json:"date,omitempty"`
}

type HolidaysResponse struct {
	Date     string    `json:"date"`
	Holidays []Holiday `json:"holidays"`
}

type MonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type MonthResponse struct {
	Year  int               `json:"year"`
	Month int               `json:"month"`
	Days  map[int][]Holiday `json:"days"`
}

type ReloadResponse struct {
	Dates int `json:"dates"`
}
