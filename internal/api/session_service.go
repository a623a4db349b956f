package api

import (
	"context"
	"time"

	"github.com/matheus3301/typec/internal/app"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/status"
	"github.com/matheus3301/typec/internal/store"
	"github.com/matheus3301/typec/internal/timeline"
)

// Session is the part of the account session the services drive.
// *app.Session implements it.
type Session interface {
	State() app.State
	SetFocus(ctx context.Context, focused bool)
	SetTab(tab room.Tab)
	UnreadTotal() int
	Summaries(tab room.Tab, query string) []room.Summary
	Digest() []room.Summary
	SelectRoom(ctx context.Context, roomID string) ([]timeline.Message, error)
	MarkRead(ctx context.Context, roomID string) error
	OpenDM(ctx context.Context, userID string) (string, error)
	AcceptInvite(ctx context.Context, roomID string) error
	Leave(ctx context.Context, roomID string) error
	Messages() (string, []timeline.Message)
	Send(ctx context.Context, roomID, body string) (string, error)
	Search(query, roomID string, limit int) ([]store.SearchResult, error)
}

var _ Session = (*app.Session)(nil)

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	sessionName string
	userID      string
	startedAt   time.Time
	machine     *status.Machine
	session     Session
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName, userID string, machine *status.Machine, s Session) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		userID:      userID,
		startedAt:   time.Now(),
		machine:     machine,
		session:     s,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *Empty) (*StatusResponse, error) {
	current := s.machine.Current()
	return &StatusResponse{
		Session:     s.sessionName,
		UserID:      s.userID,
		State:       string(current),
		Reason:      s.machine.Reason(),
		Online:      current.Online(),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		UnreadTotal: s.session.UnreadTotal(),
	}, nil
}

func (s *SessionService) SetFocus(ctx context.Context, req *FocusRequest) (*Empty, error) {
	s.session.SetFocus(ctx, req.Focused)
	return &Empty{}, nil
}
