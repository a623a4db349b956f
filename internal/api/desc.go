package api

import (
	"context"
	"errors"

	"github.com/matheus3301/typec/internal/app"
	"github.com/matheus3301/typec/internal/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Full service names on the wire.
const (
	SessionServiceName  = "typec.v1.SessionService"
	SyncServiceName     = "typec.v1.SyncService"
	RoomServiceName     = "typec.v1.RoomService"
	MessageServiceName  = "typec.v1.MessageService"
	CalendarServiceName = "typec.v1.CalendarService"
)

func method(service, name string) string {
	return "/" + service + "/" + name
}

// unary builds the method descriptor for a handler taking *Req and
// returning *Resp, running any server interceptor around it.
func unary[S, Req, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(service, name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// SessionServer is the daemon session control surface.
type SessionServer interface {
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
	SetFocus(context.Context, *FocusRequest) (*Empty, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServer.GetStatus),
		unary(SessionServiceName, "SetFocus", SessionServer.SetFocus),
	},
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Context() context.Context
	Send(*Envelope) error
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(e *Envelope) error {
	return s.SendMsg(e)
}

// SyncServer reports the sync loop and streams bus events.
type SyncServer interface {
	GetSyncStatus(context.Context, *Empty) (*SyncStatusResponse, error)
	WatchEvents(*WatchRequest, EventStream) error
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: SyncServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SyncServiceName, "GetSyncStatus", SyncServer.GetSyncStatus),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "WatchEvents",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := new(WatchRequest)
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return srv.(SyncServer).WatchEvents(req, &eventStream{stream})
		},
	}},
}

// RoomServer serves the room list and room-level actions.
type RoomServer interface {
	ListRooms(context.Context, *ListRoomsRequest) (*RoomsResponse, error)
	GetState(context.Context, *Empty) (*StateResponse, error)
	SetTab(context.Context, *TabRequest) (*Empty, error)
	SelectRoom(context.Context, *RoomRequest) (*MessagesResponse, error)
	MarkRead(context.Context, *RoomRequest) (*Empty, error)
	OpenDM(context.Context, *OpenDMRequest) (*OpenDMResponse, error)
	AcceptInvite(context.Context, *RoomRequest) (*Empty, error)
	Leave(context.Context, *RoomRequest) (*Empty, error)
	Digest(context.Context, *Empty) (*RoomsResponse, error)
}

var roomServiceDesc = grpc.ServiceDesc{
	ServiceName: RoomServiceName,
	HandlerType: (*RoomServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(RoomServiceName, "ListRooms", RoomServer.ListRooms),
		unary(RoomServiceName, "GetState", RoomServer.GetState),
		unary(RoomServiceName, "SetTab", RoomServer.SetTab),
		unary(RoomServiceName, "SelectRoom", RoomServer.SelectRoom),
		unary(RoomServiceName, "MarkRead", RoomServer.MarkRead),
		unary(RoomServiceName, "OpenDM", RoomServer.OpenDM),
		unary(RoomServiceName, "AcceptInvite", RoomServer.AcceptInvite),
		unary(RoomServiceName, "Leave", RoomServer.Leave),
		unary(RoomServiceName, "Digest", RoomServer.Digest),
	},
}

// MessageServer serves the open timeline, sending and search.
type MessageServer interface {
	ListMessages(context.Context, *Empty) (*MessagesResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	ListOutbox(context.Context, *OutboxRequest) (*OutboxResponse, error)
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "ListMessages", MessageServer.ListMessages),
		unary(MessageServiceName, "Send", MessageServer.Send),
		unary(MessageServiceName, "Search", MessageServer.Search),
		unary(MessageServiceName, "ListOutbox", MessageServer.ListOutbox),
	},
}

// CalendarServer answers holiday lookups.
type CalendarServer interface {
	Holidays(context.Context, *HolidaysRequest) (*HolidaysResponse, error)
	Month(context.Context, *MonthRequest) (*MonthResponse, error)
	Reload(context.Context, *Empty) (*ReloadResponse, error)
}

var calendarServiceDesc = grpc.ServiceDesc{
	ServiceName: CalendarServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(CalendarServiceName, "Holidays", CalendarServer.Holidays),
		unary(CalendarServiceName, "Month", CalendarServer.Month),
		unary(CalendarServiceName, "Reload", CalendarServer.Reload),
	},
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&syncServiceDesc, srv)
}

func RegisterRoomServer(s grpc.ServiceRegistrar, srv RoomServer) {
	s.RegisterService(&roomServiceDesc, srv)
}

func RegisterMessageServer(s grpc.ServiceRegistrar, srv MessageServer) {
	s.RegisterService(&messageServiceDesc, srv)
}

func RegisterCalendarServer(s grpc.ServiceRegistrar, srv CalendarServer) {
	s.RegisterService(&calendarServiceDesc, srv)
}

// toStatus converts a core error into a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, protocol.ErrRoomNotFound):
		code = codes.NotFound
	case errors.Is(err, app.ErrNoRoomSelected), errors.Is(err, protocol.ErrEncryptionUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return grpcstatus.Error(code, err.Error())
}
