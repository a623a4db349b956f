package api

import (
	"context"

	"github.com/matheus3301/typec/internal/room"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// RoomService implements the RoomService gRPC service.
type RoomService struct {
	session Session
}

// NewRoomService creates a new room service.
func NewRoomService(s Session) *RoomService {
	return &RoomService{session: s}
}

func (s *RoomService) ListRooms(_ context.Context, req *ListRoomsRequest) (*RoomsResponse, error) {
	tab := s.session.State().Tab
	if req.Tab != "" {
		tab = room.ParseTab(req.Tab)
	}
	return &RoomsResponse{Rooms: toRooms(s.session.Summaries(tab, req.Query))}, nil
}

func (s *RoomService) GetState(_ context.Context, _ *Empty) (*StateResponse, error) {
	st := s.session.State()
	known := make(map[string]room.Summary)
	for _, tab := range []room.Tab{room.TabDMs, room.TabRooms, room.TabInvites} {
		for _, sum := range s.session.Summaries(tab, "") {
			known[sum.RoomID] = sum
		}
	}
	resp := &StateResponse{
		CurrentRoomID: st.CurrentRoomID,
		HasFocus:      st.HasFocus,
		Tab:           string(st.Tab),
		Recent:        make([]Room, 0, len(st.Recent)),
	}
	for _, id := range st.Recent {
		sum, ok := known[id]
		if !ok {
			sum = room.Summary{RoomID: id, DisplayName: id}
		}
		resp.Recent = append(resp.Recent, toRoom(sum))
	}
	return resp, nil
}

func (s *RoomService) SetTab(_ context.Context, req *TabRequest) (*Empty, error) {
	s.session.SetTab(room.ParseTab(req.Tab))
	return &Empty{}, nil
}

func (s *RoomService) SelectRoom(ctx context.Context, req *RoomRequest) (*MessagesResponse, error) {
	if req.RoomID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id is required")
	}
	msgs, err := s.session.SelectRoom(ctx, req.RoomID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{RoomID: req.RoomID, Messages: toMessages(msgs)}, nil
}

func (s *RoomService) MarkRead(ctx context.Context, req *RoomRequest) (*Empty, error) {
	roomID := req.RoomID
	if roomID == "" {
		roomID = s.session.State().CurrentRoomID
	}
	if roomID == "" {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "no room selected")
	}
	if err := s.session.MarkRead(ctx, roomID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *RoomService) OpenDM(ctx context.Context, req *OpenDMRequest) (*OpenDMResponse, error) {
	if req.UserID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "user_id is required")
	}
	roomID, err := s.session.OpenDM(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OpenDMResponse{RoomID: roomID}, nil
}

func (s *RoomService) AcceptInvite(ctx context.Context, req *RoomRequest) (*Empty, error) {
	if err := s.session.AcceptInvite(ctx, req.RoomID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *RoomService) Leave(ctx context.Context, req *RoomRequest) (*Empty, error) {
	if err := s.session.Leave(ctx, req.RoomID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *RoomService) Digest(_ context.Context, _ *Empty) (*RoomsResponse, error) {
	return &RoomsResponse{Rooms: toRooms(s.session.Digest())}, nil
}
