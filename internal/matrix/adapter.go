// Package matrix adapts the mautrix client to the rest of typec: it folds
// sync responses into room snapshots, publishes timeline events on the bus
// and performs the outbound calls (send, receipts, account data, media).
package matrix

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/media"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/status"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Options configures an Adapter.
type Options struct {
	Homeserver       string
	UserID           string
	AccessToken      string
	DeviceID         string
	Store            mautrix.SyncStore // sync token and filter persistence
	Crypto           Crypto            // optional
	Media            *media.Resolver   // defaults to the built-in endpoint list
	Bus              *bus.Bus
	Machine          *status.Machine
	Logger           *zap.Logger
	Timeout          time.Duration
	InitialSyncLimit int
}

// Adapter wraps the mautrix client and manages the sync connection.
type Adapter struct {
	client  *mautrix.Client
	crypto  Crypto
	media   *media.Resolver
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	timeout time.Duration
	userID  string

	// syncDecrypts is set when the crypto helper decrypts sync events itself.
	syncDecrypts bool

	mu     sync.RWMutex
	rooms  map[string]*roomState
	direct room.DirectIndex
	retry  *backoff.ExponentialBackOff
}

// NewAdapter creates an adapter for one account. It does not contact the
// homeserver until Run.
func NewAdapter(opts Options) (*Adapter, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	client, err := mautrix.NewClient(opts.Homeserver, id.UserID(opts.UserID), opts.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	client.DeviceID = id.DeviceID(opts.DeviceID)
	if opts.Store != nil {
		client.Store = opts.Store
	}
	if opts.Media == nil {
		opts.Media, err = media.NewResolver(media.Options{
			Homeserver:  opts.Homeserver,
			AccessToken: opts.AccessToken,
			Timeout:     opts.Timeout,
			Logger:      opts.Logger.Named("media"),
		})
		if err != nil {
			return nil, err
		}
	}

	a := &Adapter{
		client:  client,
		crypto:  opts.Crypto,
		media:   opts.Media,
		bus:     opts.Bus,
		machine: opts.Machine,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		userID:  opts.UserID,
		rooms:   make(map[string]*roomState),
		direct:  room.DirectIndex{},
		retry:   backoff.NewExponentialBackOff(),
	}
	client.Syncer = newSyncer(a, opts.InitialSyncLimit)
	return a, nil
}

// UserID returns the logged-in user.
func (a *Adapter) UserID() string {
	return a.userID
}

// Rooms returns a snapshot of every known room, most recently active first.
func (a *Adapter) Rooms() []room.Snapshot {
	a.mu.RLock()
	out := make([]room.Snapshot, 0, len(a.rooms))
	for _, rs := range a.rooms {
		out = append(out, rs.snapshot())
	}
	a.mu.RUnlock()

	slices.SortStableFunc(out, func(x, y room.Snapshot) int {
		if d := lastTS(y) - lastTS(x); d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})
	return out
}

func lastTS(s room.Snapshot) int64 {
	if s.LastEvent == nil {
		return 0
	}
	return s.LastEvent.Timestamp
}

// Room returns a snapshot of one room.
func (a *Adapter) Room(roomID string) (room.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rs, ok := a.rooms[roomID]
	if !ok {
		return room.Snapshot{}, false
	}
	return rs.snapshot(), true
}

// KnownDirect returns the last direct-chat index seen, without a network call.
func (a *Adapter) KnownDirect() room.DirectIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(room.DirectIndex, len(a.direct))
	for u, rs := range a.direct {
		out[u] = slices.Clone(rs)
	}
	return out
}

// IsEncryptionActive reports whether messages to roomID can be sent.
// Unencrypted rooms always can.
func (a *Adapter) IsEncryptionActive(roomID string) bool {
	snap, ok := a.Room(roomID)
	if !ok || !snap.Encrypted {
		return true
	}
	return a.crypto != nil
}

// Timeline fetches the latest limit events of a room from the server, oldest
// first.
func (a *Adapter) Timeline(ctx context.Context, roomID string, limit int) ([]protocol.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rid := id.RoomID(roomID)
	resp, err := a.client.Messages(ctx, rid, "", "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages for %s: %w", roomID, err)
	}
	out := make([]protocol.Event, 0, len(resp.Chunk))
	for i := len(resp.Chunk) - 1; i >= 0; i-- {
		evt := resp.Chunk[i]
		ev, ok := toProtocol(rid, evt)
		if !ok {
			continue
		}
		if ev.Type == protocol.TypeEncrypted {
			ev = a.decryptNow(ctx, rid, evt)
		}
		out = append(out, ev)
	}
	return out, nil
}

// SendMessage sends a text message with the given transaction id and returns
// the server event id. Encrypted rooms go through the crypto backend.
func (a *Adapter) SendMessage(ctx context.Context, roomID, txnID, body string) (string, error) {
	rid := id.RoomID(roomID)
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: body}
	req := mautrix.ReqSendEvent{TransactionID: txnID}

	snap, _ := a.Room(roomID)
	if !snap.Encrypted {
		resp, err := a.client.SendMessageEvent(ctx, rid, event.EventMessage, content, req)
		if err != nil {
			return "", err
		}
		return resp.EventID.String(), nil
	}
	if a.crypto == nil {
		return "", protocol.ErrEncryptionUnavailable
	}
	enc, err := a.crypto.EncryptMegolmEvent(ctx, rid, event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	resp, err := a.client.SendMessageEvent(ctx, rid, event.EventEncrypted, enc, req)
	if err != nil {
		return "", err
	}
	return resp.EventID.String(), nil
}

// SendReadReceipt sends a public read receipt for eventID.
func (a *Adapter) SendReadReceipt(ctx context.Context, roomID, eventID string) error {
	return a.client.SendReceipt(ctx, id.RoomID(roomID), id.EventID(eventID), event.ReceiptTypeRead, nil)
}

// SetRoomReadMarkers moves both the read and fully-read markers to eventID.
func (a *Adapter) SetRoomReadMarkers(ctx context.Context, roomID, eventID string) error {
	return a.client.SetReadMarkers(ctx, id.RoomID(roomID), &mautrix.ReqSetReadMarkers{
		Read:      id.EventID(eventID),
		FullyRead: id.EventID(eventID),
	})
}

// DirectIndex fetches the m.direct account data. A missing entry is an empty
// index.
func (a *Adapter) DirectIndex(ctx context.Context) (room.DirectIndex, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var content event.DirectChatsEventContent
	err := a.client.GetAccountData(ctx, event.AccountDataDirectChats.Type, &content)
	if err != nil && !errors.Is(err, mautrix.MNotFound) {
		return nil, fmt.Errorf("get direct chats: %w", err)
	}
	idx := directIndexFrom(content)
	a.mu.Lock()
	a.direct = idx
	a.mu.Unlock()
	return idx, nil
}

// SetDirectIndex replaces the m.direct account data.
func (a *Adapter) SetDirectIndex(ctx context.Context, idx room.DirectIndex) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.client.SetAccountData(ctx, event.AccountDataDirectChats.Type, directContentFrom(idx)); err != nil {
		return fmt.Errorf("set direct chats: %w", err)
	}
	a.mu.Lock()
	a.direct = idx
	a.mu.Unlock()
	a.publish(bus.MatrixRooms, []string(nil))
	return nil
}

// MarkDirect records roomID as a direct chat with userID, reading the current
// index first so concurrent changes from other devices are kept.
func (a *Adapter) MarkDirect(ctx context.Context, userID, roomID string) error {
	idx, err := a.DirectIndex(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(idx[userID], roomID) {
		return nil
	}
	return a.SetDirectIndex(ctx, idx.With(userID, roomID))
}

// CreateDM returns the existing direct chat with userID, or creates one and
// marks it direct.
func (a *Adapter) CreateDM(ctx context.Context, userID string) (string, error) {
	if roomID, ok := room.FindExistingDM(a.Rooms(), a.KnownDirect(), userID); ok {
		return roomID, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.CreateRoom(reqCtx, &mautrix.ReqCreateRoom{
		Invite:   []id.UserID{id.UserID(userID)},
		IsDirect: true,
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return "", fmt.Errorf("create direct chat: %w", err)
	}
	roomID := resp.RoomID.String()
	if err := a.MarkDirect(ctx, userID, roomID); err != nil {
		a.logger.Warn("failed to mark room as direct", zap.String("room_id", roomID), zap.Error(err))
	}
	return roomID, nil
}

// JoinRoom accepts an invite.
func (a *Adapter) JoinRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if _, err := a.client.JoinRoomByID(ctx, id.RoomID(roomID)); err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}
	return nil
}

// LeaveRoom leaves a room or declines an invite.
func (a *Adapter) LeaveRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if _, err := a.client.LeaveRoom(ctx, id.RoomID(roomID)); err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}
	return nil
}

// ResolveMedia downloads an mxc:// reference.
func (a *Adapter) ResolveMedia(ctx context.Context, ref string) ([]byte, error) {
	return a.media.ResolveMedia(ctx, ref)
}

func (a *Adapter) decryptNow(ctx context.Context, roomID id.RoomID, evt *event.Event) protocol.Event {
	ev, _ := toProtocol(roomID, evt)
	if a.crypto == nil {
		ev.Decryption = protocol.Decryption{State: protocol.DecryptionFailed, Reason: noCryptoReason}
		return ev
	}
	parseContent(evt, event.MessageEventType)
	plain, err := a.crypto.DecryptMegolmEvent(ctx, evt)
	if err != nil {
		ev.Decryption = protocol.Decryption{State: protocol.DecryptionFailed, Reason: err.Error()}
		return ev
	}
	return decrypted(roomID, evt, plain)
}

func (a *Adapter) publish(kind string, payload any) {
	if a.bus != nil {
		a.bus.Publish(bus.NewEvent(kind, payload))
	}
}
