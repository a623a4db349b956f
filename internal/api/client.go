package api

import (
	"context"

	"google.golang.org/grpc"
)

// CallOptions returns the dial options every client of the daemon needs on
// top of its transport.
func CallOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))}
}

// SessionClient is the client side of SessionService.
type SessionClient struct{ cc grpc.ClientConnInterface }

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient { return &SessionClient{cc} }

func (c *SessionClient) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	return out, c.cc.Invoke(ctx, method(SessionServiceName, "GetStatus"), &Empty{}, out)
}

func (c *SessionClient) SetFocus(ctx context.Context, focused bool) error {
	return c.cc.Invoke(ctx, method(SessionServiceName, "SetFocus"), &FocusRequest{Focused: focused}, &Empty{})
}

// SyncClient is the client side of SyncService.
type SyncClient struct{ cc grpc.ClientConnInterface }

func NewSyncClient(cc grpc.ClientConnInterface) *SyncClient { return &SyncClient{cc} }

func (c *SyncClient) GetSyncStatus(ctx context.Context) (*SyncStatusResponse, error) {
	out := new(SyncStatusResponse)
	return out, c.cc.Invoke(ctx, method(SyncServiceName, "GetSyncStatus"), &Empty{}, out)
}

// EventReceiver yields streamed envelopes until the stream ends.
type EventReceiver struct {
	stream grpc.ClientStream
}

func (r *EventReceiver) Recv() (*Envelope, error) {
	env := new(Envelope)
	if err := r.stream.RecvMsg(env); err != nil {
		return nil, err
	}
	return env, nil
}

// WatchEvents streams bus events whose kind starts with one of prefixes.
func (c *SyncClient) WatchEvents(ctx context.Context, prefixes ...string) (*EventReceiver, error) {
	desc := &syncServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, method(SyncServiceName, desc.StreamName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Prefixes: prefixes}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventReceiver{stream: stream}, nil
}

// RoomClient is the client side of RoomService.
type RoomClient struct{ cc grpc.ClientConnInterface }

func NewRoomClient(cc grpc.ClientConnInterface) *RoomClient { return &RoomClient{cc} }

func (c *RoomClient) ListRooms(ctx context.Context, tab, query string) ([]Room, error) {
	out := new(RoomsResponse)
	err := c.cc.Invoke(ctx, method(RoomServiceName, "ListRooms"), &ListRoomsRequest{Tab: tab, Query: query}, out)
	return out.Rooms, err
}

func (c *RoomClient) GetState(ctx context.Context) (*StateResponse, error) {
	out := new(StateResponse)
	return out, c.cc.Invoke(ctx, method(RoomServiceName, "GetState"), &Empty{}, out)
}

func (c *RoomClient) SetTab(ctx context.Context, tab string) error {
	return c.cc.Invoke(ctx, method(RoomServiceName, "SetTab"), &TabRequest{Tab: tab}, &Empty{})
}

func (c *RoomClient) SelectRoom(ctx context.Context, roomID string) (*MessagesResponse, error) {
	out := new(MessagesResponse)
	return out, c.cc.Invoke(ctx, method(RoomServiceName, "SelectRoom"), &RoomRequest{RoomID: roomID}, out)
}

func (c *RoomClient) MarkRead(ctx context.Context, roomID string) error {
	return c.cc.Invoke(ctx, method(RoomServiceName, "MarkRead"), &RoomRequest{RoomID: roomID}, &Empty{})
}

func (c *RoomClient) OpenDM(ctx context.Context, userID string) (string, error) {
	out := new(OpenDMResponse)
	err := c.cc.Invoke(ctx, method(RoomServiceName, "OpenDM"), &OpenDMRequest{UserID: userID}, out)
	return out.RoomID, err
}

func (c *RoomClient) AcceptInvite(ctx context.Context, roomID string) error {
	return c.cc.Invoke(ctx, method(RoomServiceName, "AcceptInvite"), &RoomRequest{RoomID: roomID}, &Empty{})
}

func (c *RoomClient) Leave(ctx context.Context, roomID string) error {
	return c.cc.Invoke(ctx, method(RoomServiceName, "Leave"), &RoomRequest{RoomID: roomID}, &Empty{})
}

func (c *RoomClient) Digest(ctx context.Context) ([]Room, error) {
	out := new(RoomsResponse)
	err := c.cc.Invoke(ctx, method(RoomServiceName, "Digest"), &Empty{}, out)
	return out.Rooms, err
}

// MessageClient is the client side of MessageService.
type MessageClient struct{ cc grpc.ClientConnInterface }

func NewMessageClient(cc grpc.ClientConnInterface) *MessageClient { return &MessageClient{cc} }

func (c *MessageClient) ListMessages(ctx context.Context) (*MessagesResponse, error) {
	out := new(MessagesResponse)
	return out, c.cc.Invoke(ctx, method(MessageServiceName, "ListMessages"), &Empty{}, out)
}

func (c *MessageClient) Send(ctx context.Context, roomID, body string) (string, error) {
	out := new(SendResponse)
	err := c.cc.Invoke(ctx, method(MessageServiceName, "Send"), &SendRequest{RoomID: roomID, Body: body}, out)
	return out.EventID, err
}

func (c *MessageClient) Search(ctx context.Context, query, roomID string, limit int) ([]SearchHit, error) {
	out := new(SearchResponse)
	err := c.cc.Invoke(ctx, method(MessageServiceName, "Search"), &SearchRequest{Query: query, RoomID: roomID, Limit: limit}, out)
	return out.Hits, err
}

func (c *MessageClient) ListOutbox(ctx context.Context, status string, limit int) ([]OutboxEntry, error) {
	out := new(OutboxResponse)
	err := c.cc.Invoke(ctx, method(MessageServiceName, "ListOutbox"), &OutboxRequest{Status: status, Limit: limit}, out)
	return out.Entries, err
}

// CalendarClient is the client side of CalendarService.
type CalendarClient struct{ cc grpc.ClientConnInterface }

func NewCalendarClient(cc grpc.ClientConnInterface) *CalendarClient { return &CalendarClient{cc} }

func (c *CalendarClient) Holidays(ctx context.Context, date string) (*HolidaysResponse, error) {
	out := new(HolidaysResponse)
	return out, c.cc.Invoke(ctx, method(CalendarServiceName, "Holidays"), &HolidaysRequest{Date: date}, out)
}

func (c *CalendarClient) Month(ctx context.Context, year, month int) (*MonthResponse, error) {
	out := new(MonthResponse)
	return out, c.cc.Invoke(ctx, method(CalendarServiceName, "Month"), &MonthRequest{Year: year, Month: month}, out)
}

func (c *CalendarClient) Reload(ctx context.Context) (int, error) {
	out := new(ReloadResponse)
	err := c.cc.Invoke(ctx, method(CalendarServiceName, "Reload"), &Empty{}, out)
	return out.Dates, err
}
