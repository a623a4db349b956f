package api

import (
	"context"
	"strings"

	"github.com/matheus3301/typec/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Outbox lists outgoing messages.
type Outbox interface {
	ListOutbox(status string, limit int) ([]store.OutboxEntry, error)
}

// MessageService implements the MessageService gRPC service.
type MessageService struct {
	session Session
	outbox  Outbox
}

// NewMessageService creates a new message service.
func NewMessageService(s Session, outbox Outbox) *MessageService {
	return &MessageService{session: s, outbox: outbox}
}

func (s *MessageService) ListMessages(_ context.Context, _ *Empty) (*MessagesResponse, error) {
	roomID, msgs := s.session.Messages()
	return &MessagesResponse{RoomID: roomID, Messages: toMessages(msgs)}, nil
}

func (s *MessageService) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "body is empty")
	}
	eventID, err := s.session.Send(ctx, req.RoomID, req.Body)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SendResponse{EventID: eventID}, nil
}

func (s *MessageService) Search(_ context.Context, req *SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is empty")
	}
	results, err := s.session.Search(req.Query, req.RoomID, req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "search: %v", err)
	}
	return &SearchResponse{Hits: toHits(results)}, nil
}

func (s *MessageService) ListOutbox(_ context.Context, req *OutboxRequest) (*OutboxResponse, error) {
	entries, err := s.outbox.ListOutbox(req.Status, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OutboxResponse{Entries: toOutbox(entries)}, nil
}
