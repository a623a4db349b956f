// Package outbox sends messages with a local echo and records each attempt.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/store"
	"github.com/matheus3301/typec/internal/timeline"
	"go.uber.org/zap"
)

// Client is the part of the sync client the sender needs.
type Client interface {
	UserID() string
	Room(id string) (room.Snapshot, bool)
	IsEncryptionActive(roomID string) bool
	SendMessage(ctx context.Context, roomID, txnID, body string) (string, error)
}

// View is the timeline the local echo is shown in.
type View interface {
	Upsert(ev protocol.Event) timeline.Result
	Discard(key string) bool
}

// Sent is published on the bus after the server accepts a message.
type Sent struct {
	RoomID  string
	TxnID   string
	EventID string
}

// Failed is published on the bus when a send is rejected.
type Failed struct {
	RoomID string
	TxnID  string
	Error  string
}

// Bus event kinds.
const (
	KindSent   = "outbox.sent"
	KindFailed = "outbox.failed"
)

// Sender sends messages through the sync client.
type Sender struct {
	db      *store.DB
	client  Client
	view    View
	bus     *bus.Bus
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
	newTxn  func() string
}

// NewSender creates a new outbox sender. view may be nil when no timeline is
// shown.
func NewSender(db *store.DB, client Client, view View, b *bus.Bus, timeout time.Duration, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sender{
		db:      db,
		client:  client,
		view:    view,
		bus:     b,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		newTxn:  uuid.NewString,
	}
}

// Send delivers body to roomID and returns the server event id. The message
// shows as a local echo while in flight; on failure the echo is discarded
// and the error returned.
func (s *Sender) Send(ctx context.Context, roomID, body string) (string, error) {
	snap, ok := s.client.Room(roomID)
	if !ok {
		return "", fmt.Errorf("send to %s: %w", roomID, protocol.ErrRoomNotFound)
	}
	if snap.Encrypted && !s.client.IsEncryptionActive(roomID) {
		return "", fmt.Errorf("send to %s: %w", roomID, protocol.ErrEncryptionUnavailable)
	}

	txnID := s.newTxn()
	if err := s.db.QueueOutbox(txnID, roomID, body); err != nil {
		return "", fmt.Errorf("queue outbox: %w", err)
	}

	echo := protocol.Event{
		TransactionID: txnID,
		RoomID:        roomID,
		SenderID:      s.client.UserID(),
		Type:          protocol.TypeMessage,
		Timestamp:     s.now().UnixMilli(),
		Content:       protocol.Content{Body: body, MsgType: protocol.MsgText},
	}
	if s.view != nil {
		s.view.Upsert(echo)
	}

	if err := s.db.MarkOutboxSending(txnID); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err), zap.String("txn_id", txnID))
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	eventID, err := s.client.SendMessage(sendCtx, roomID, txnID, body)
	cancel()
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("room_id", roomID), zap.String("txn_id", txnID))
		_ = s.db.MarkOutboxFailed(txnID, err.Error())
		if s.view != nil {
			s.view.Discard(txnID)
		}
		s.publish(KindFailed, Failed{RoomID: roomID, TxnID: txnID, Error: err.Error()})
		return "", fmt.Errorf("send message: %w", err)
	}

	if err := s.db.MarkOutboxSent(txnID, eventID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("txn_id", txnID))
	}
	confirmed := echo
	confirmed.EventID = eventID
	if err := s.db.UpsertEvent(confirmed); err != nil {
		s.logger.Warn("failed to cache sent event", zap.Error(err), zap.String("event_id", eventID))
	}
	if s.view != nil {
		s.view.Upsert(confirmed)
	}

	s.logger.Info("message sent", zap.String("txn_id", txnID), zap.String("event_id", eventID))
	s.publish(KindSent, Sent{RoomID: roomID, TxnID: txnID, EventID: eventID})
	return eventID, nil
}

// Recover marks messages left queued or in flight by a previous run as
// failed. It returns how many were marked.
func (s *Sender) Recover() (int, error) {
	n := 0
	for _, status := range []string{"queued", "sending"} {
		entries, err := s.db.ListOutbox(status, 0)
		if err != nil {
			return n, fmt.Errorf("list %s outbox: %w", status, err)
		}
		for _, e := range entries {
			if err := s.db.MarkOutboxFailed(e.TxnID, "interrupted"); err != nil {
				return n, fmt.Errorf("mark %s failed: %w", e.TxnID, err)
			}
			n++
		}
	}
	if n > 0 {
		s.logger.Warn("outbox entries interrupted by restart", zap.Int("count", n))
	}
	return n, nil
}

func (s *Sender) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(kind, payload))
	}
}
