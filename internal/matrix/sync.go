package matrix

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/status"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// syncer feeds every response to the adapter and replaces the default
// fixed retry delay with exponential backoff.
type syncer struct {
	*mautrix.DefaultSyncer
	a *Adapter
}

func newSyncer(a *Adapter, timelineLimit int) *syncer {
	ds := mautrix.NewDefaultSyncer()
	if timelineLimit > 0 {
		ds.FilterJSON = &mautrix.Filter{
			Room: &mautrix.RoomFilter{
				Timeline: &mautrix.FilterPart{Limit: timelineLimit},
			},
		}
	}
	ds.OnSync(a.handleSync)
	return &syncer{DefaultSyncer: ds, a: a}
}

func (s *syncer) OnFailedSync(_ *mautrix.RespSync, err error) (time.Duration, error) {
	return s.a.onFailedSync(err)
}

// Run loads the direct-chat index and syncs until ctx is cancelled or the
// server rejects the access token.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.transition(status.Connecting, ""); err != nil {
		return err
	}

	_, err := backoff.Retry(ctx, func() (room.DirectIndex, error) {
		idx, err := a.DirectIndex(ctx)
		if errors.Is(err, mautrix.MUnknownToken) {
			return nil, backoff.Permanent(err)
		}
		return idx, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
		backoff.WithNotify(func(err error, next time.Duration) {
			a.logger.Warn("direct chats unavailable, retrying", zap.Error(err), zap.Duration("next", next))
		}),
	)
	if errors.Is(err, mautrix.MUnknownToken) {
		_ = a.transition(status.Error, "access token rejected")
		return fmt.Errorf("load direct chats: %w", err)
	}
	if err != nil && ctx.Err() == nil {
		a.logger.Warn("starting without direct chats", zap.Error(err))
	}

	a.logger.Info("starting sync", zap.String("user_id", a.userID))
	err = a.client.SyncWithContext(ctx)
	if ctx.Err() != nil {
		_ = a.transition(status.Stopped, "")
		return nil
	}
	if err == nil {
		err = errors.New("sync stopped")
	}
	_ = a.transition(status.Error, err.Error())
	return fmt.Errorf("sync: %w", err)
}

// Stop ends a running sync loop.
func (a *Adapter) Stop() {
	a.client.StopSync()
}

func (a *Adapter) onFailedSync(err error) (time.Duration, error) {
	if errors.Is(err, mautrix.MUnknownToken) {
		a.logger.Error("access token rejected", zap.Error(err))
		return 0, err
	}
	a.mu.Lock()
	wait := a.retry.NextBackOff()
	a.mu.Unlock()

	if a.machine == nil || a.machine.Current() != status.Reconnecting {
		_ = a.transition(status.Reconnecting, err.Error())
		a.publish(bus.SyncDisconnected, err.Error())
	}
	a.logger.Warn("sync failed", zap.Error(err), zap.Duration("retry_in", wait))
	return wait, nil
}

// markSynced moves the connection state forward after a good response. The
// first response of a fresh login marks the client PREPARED.
func (a *Adapter) markSynced(initial bool) {
	a.mu.Lock()
	a.retry.Reset()
	a.mu.Unlock()
	if a.machine == nil {
		return
	}
	switch a.machine.Current() {
	case status.Syncing:
		return
	case status.Reconnecting:
		_ = a.transition(status.Connecting, "")
	}
	if a.machine.Current() == status.Connecting {
		a.publish(bus.SyncConnected, nil)
		if initial {
			_ = a.transition(status.Prepared, "")
			return
		}
	}
	_ = a.transition(status.Syncing, "")
}

func (a *Adapter) transition(to status.State, reason string) error {
	if a.machine == nil {
		return nil
	}
	return a.machine.TransitionWithReason(to, reason)
}

type pendingDecrypt struct {
	roomID id.RoomID
	evt    *event.Event
}

// handleSync folds one sync response into room state and publishes the new
// timeline events in order. Encrypted events are published as pending and
// decrypted in the background when a crypto backend is present.
func (a *Adapter) handleSync(ctx context.Context, resp *mautrix.RespSync, since string) bool {
	var (
		events        []protocol.Event
		pending       []pendingDecrypt
		changed       []string
		directChanged bool
	)

	a.mu.Lock()
	for rid, jr := range resp.Rooms.Join {
		rs := a.roomLocked(rid)
		rs.membership = room.Join
		rs.applySummary(jr.Summary)
		for _, evt := range jr.State.Events {
			rs.applyState(evt, a.userID)
		}
		for _, evt := range jr.Timeline.Events {
			if evt.StateKey != nil {
				rs.applyState(evt, a.userID)
				continue
			}
			ev, ok := toProtocol(rid, evt)
			if !ok {
				continue
			}
			if ev.Type == protocol.TypeEncrypted {
				if a.crypto == nil {
					ev.Decryption = protocol.Decryption{State: protocol.DecryptionFailed, Reason: noCryptoReason}
				} else {
					ev.Decryption = protocol.Decryption{State: protocol.DecryptionPending}
					parseContent(evt, event.MessageEventType)
					if !a.syncDecrypts {
						pending = append(pending, pendingDecrypt{roomID: rid, evt: evt})
					}
				}
			}
			rs.observe(ev)
			events = append(events, ev)
		}
		if jr.UnreadNotifications != nil {
			rs.unread = jr.UnreadNotifications.NotificationCount
		}
		changed = append(changed, rid.String())
	}
	for rid, ir := range resp.Rooms.Invite {
		rs := a.roomLocked(rid)
		for _, evt := range ir.State.Events {
			rs.applyState(evt, a.userID)
		}
		rs.membership = room.Invite
		changed = append(changed, rid.String())
	}
	for rid, lr := range resp.Rooms.Leave {
		rs := a.roomLocked(rid)
		for _, evt := range lr.State.Events {
			rs.applyState(evt, a.userID)
		}
		for _, evt := range lr.Timeline.Events {
			if evt.StateKey != nil {
				rs.applyState(evt, a.userID)
			}
		}
		if rs.membership != room.Ban {
			rs.membership = room.Leave
		}
		changed = append(changed, rid.String())
	}
	for _, evt := range resp.AccountData.Events {
		if evt.Type.Type != event.AccountDataDirectChats.Type || !parseContent(evt, event.AccountDataEventType) {
			continue
		}
		if content, ok := evt.Content.Parsed.(*event.DirectChatsEventContent); ok {
			a.direct = directIndexFrom(*content)
			directChanged = true
		}
	}
	a.mu.Unlock()

	for _, ev := range events {
		a.publish(bus.MatrixTimeline, ev)
	}
	if len(changed) > 0 || directChanged {
		slices.Sort(changed)
		a.publish(bus.MatrixRooms, slices.Compact(changed))
	}
	for _, p := range pending {
		go a.decryptLater(ctx, p)
	}
	a.markSynced(since == "")
	return true
}

func (a *Adapter) roomLocked(rid id.RoomID) *roomState {
	rs, ok := a.rooms[rid.String()]
	if !ok {
		rs = newRoomState(rid.String())
		a.rooms[rid.String()] = rs
	}
	return rs
}

func (a *Adapter) decryptLater(ctx context.Context, p pendingDecrypt) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	a.finishDecrypt(p.roomID, a.decryptNow(ctx, p.roomID, p.evt))
}

// finishDecrypt records the outcome of a decryption attempt and publishes
// it so views replace the placeholder.
func (a *Adapter) finishDecrypt(roomID id.RoomID, ev protocol.Event) {
	if ev.Decryption.State == protocol.DecryptionFailed {
		a.logger.Debug("decryption failed", zap.String("event_id", ev.EventID), zap.String("reason", ev.Decryption.Reason))
	}

	a.mu.Lock()
	if rs, ok := a.rooms[roomID.String()]; ok {
		rs.observe(ev)
	}
	a.mu.Unlock()
	a.publish(bus.MatrixDecrypted, ev)
}
