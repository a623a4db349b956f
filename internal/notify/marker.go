package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ReadAcker sends read acknowledgements to the server.
type ReadAcker interface {
	SendReadReceipt(ctx context.Context, roomID, eventID string) error
	SetRoomReadMarkers(ctx context.Context, roomID, eventID string) error
}

// Marker marks rooms read: locally first, then on the server.
type Marker struct {
	unread  *Unread
	acker   ReadAcker
	timeout time.Duration
	log     *zap.Logger
}

// NewMarker creates a Marker. timeout bounds each server call.
func NewMarker(unread *Unread, acker ReadAcker, timeout time.Duration, log *zap.Logger) *Marker {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Marker{unread: unread, acker: acker, timeout: timeout, log: log}
}

// MarkRead zeroes the room's unread count and sends the read receipt and the
// fully-read marker for eventID. The two calls run independently; their
// errors are combined. The local count stays zero whatever they return.
func (m *Marker) MarkRead(ctx context.Context, roomID, eventID string) error {
	m.unread.Zero(roomID)
	if eventID == "" || m.acker == nil {
		return nil
	}

	var (
		wg                sync.WaitGroup
		receiptErr, mkErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		if err := m.acker.SendReadReceipt(cctx, roomID, eventID); err != nil {
			receiptErr = fmt.Errorf("send read receipt: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		if err := m.acker.SetRoomReadMarkers(cctx, roomID, eventID); err != nil {
			mkErr = fmt.Errorf("set read markers: %w", err)
		}
	}()
	wg.Wait()

	err := multierr.Combine(receiptErr, mkErr)
	if err != nil {
		m.log.Warn("read acknowledgement failed",
			zap.String("room_id", roomID),
			zap.String("event_id", eventID),
			zap.Error(err))
	}
	return err
}
