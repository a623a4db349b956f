// Package app holds the per-account session: the open room, focus, tabs and
// recent rooms, and the glue between the sync client and the core
// components.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/notify"
	"github.com/matheus3301/typec/internal/outbox"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/store"
	"github.com/matheus3301/typec/internal/timeline"
	"go.uber.org/zap"
)

// ErrNoRoomSelected is returned by operations that need an open room.
var ErrNoRoomSelected = errors.New("no room selected")

// Client is the sync client as seen by the session.
type Client interface {
	outbox.Client
	notify.ReadAcker
	timeline.MediaResolver
	Rooms() []room.Snapshot
	KnownDirect() room.DirectIndex
	Timeline(ctx context.Context, roomID string, limit int) ([]protocol.Event, error)
	CreateDM(ctx context.Context, userID string) (string, error)
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
}

// HistoryIngester caches pages of room history.
type HistoryIngester interface {
	IngestHistory(roomID string, evs []protocol.Event) (int, error)
}

// State is the user-visible session state.
type State struct {
	CurrentRoomID string
	HasFocus      bool
	Tab           room.Tab
	Recent        []string
}

// Options configures a Session. Client and DB are required.
type Options struct {
	Client       Client
	DB           *store.DB
	Bus          *bus.Bus
	History      HistoryIngester
	Logger       *zap.Logger
	Timeout      time.Duration
	RecentLimit  int
	HistoryLimit int
}

// Session ties the core components to one logged-in account.
type Session struct {
	client       Client
	db           *store.DB
	bus          *bus.Bus
	history      HistoryIngester
	logger       *zap.Logger
	historyLimit int

	view   *timeline.Reconciler
	sender *outbox.Sender
	unread *notify.Unread
	marker *notify.Marker
	gate   notify.Gate

	acks sync.WaitGroup

	// viewMu orders live upserts against a room load; selectMu serializes loads.
	viewMu   sync.Mutex
	selectMu sync.Mutex
	loading  string
	pending  []protocol.Event

	mu       sync.Mutex
	current  string
	hasFocus bool
	tab      room.Tab
	recent   *RecentRooms
}

// New creates a session. Nothing is loaded until a room is selected.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	s := &Session{
		client:       opts.Client,
		db:           opts.DB,
		bus:          opts.Bus,
		history:      opts.History,
		logger:       opts.Logger,
		historyLimit: opts.HistoryLimit,
		unread:       notify.NewUnread(),
		gate:         notify.Gate{MyUserID: opts.Client.UserID()},
		hasFocus:     true,
		tab:          room.TabDMs,
		recent:       NewRecentRooms(opts.RecentLimit),
	}
	s.view = timeline.New(timeline.Config{
		Rooms:        opts.Client,
		Media:        opts.Client,
		MediaTimeout: opts.Timeout,
		Logger:       opts.Logger.Named("timeline"),
		OnChange:     s.timelineChanged,
	})
	s.sender = outbox.NewSender(opts.DB, opts.Client, s.view, opts.Bus, opts.Timeout, opts.Logger.Named("outbox"))
	s.marker = notify.NewMarker(s.unread, opts.Client, opts.Timeout, opts.Logger.Named("notify"))
	return s
}

// Recover marks sends interrupted by a previous run as failed.
func (s *Session) Recover() (int, error) {
	return s.sender.Recover()
}

// State returns a copy of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		CurrentRoomID: s.current,
		HasFocus:      s.hasFocus,
		Tab:           s.tab,
		Recent:        s.recent.List(),
	}
}

// SetFocus records whether the user is looking at the client.
func (s *Session) SetFocus(ctx context.Context, focused bool) {
	s.mu.Lock()
	s.hasFocus = focused
	current := s.current
	s.mu.Unlock()
	if focused && current != "" {
		if err := s.MarkRead(ctx, current); err != nil {
			s.logger.Debug("mark read on focus", zap.Error(err))
		}
	}
}

// SetTab switches the room list tab.
func (s *Session) SetTab(tab room.Tab) {
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	s.publish(bus.RoomsChanged, nil)
}

// HandleEvent applies a live or redelivered event: the open room's timeline
// is updated and marked read, other rooms count it as unread, and the gate
// decides whether a notification goes out. Redeliveries only touch the
// timeline.
func (s *Session) HandleEvent(ctx context.Context, ev protocol.Event, live bool) {
	s.viewMu.Lock()
	s.mu.Lock()
	current, focused := s.current, s.hasFocus
	s.mu.Unlock()
	switch {
	case s.loading != "" && ev.RoomID == s.loading:
		s.pending = append(s.pending, ev)
	case ev.RoomID == current:
		s.view.Upsert(ev)
	}
	s.viewMu.Unlock()

	if !live {
		return
	}

	if ev.RoomID == current && focused {
		if ev.EventID != "" && ev.SenderID != s.client.UserID() {
			s.acks.Add(1)
			go func() {
				defer s.acks.Done()
				if err := s.marker.MarkRead(ctx, ev.RoomID, ev.EventID); err != nil {
					s.logger.Debug("read acknowledgement failed", zap.Error(err))
				}
			}()
		}
	} else if ev.SenderID != s.client.UserID() {
		s.unread.Touch(ev.RoomID)
	}

	if s.gate.ShouldNotify(ev, current, focused) {
		snap, ok := s.client.Room(ev.RoomID)
		if !ok {
			snap = room.Snapshot{ID: ev.RoomID}
		}
		s.publish(bus.NotifyMessage, notify.Build(ev, snap, s.client.KnownDirect(), s.client.UserID()))
	}
}

// RoomsChanged refreshes unread counts and the room cache after a sync tick.
// An empty list refreshes every room.
func (s *Session) RoomsChanged(_ context.Context, roomIDs []string) {
	idx := s.client.KnownDirect()
	var snaps []room.Snapshot
	if len(roomIDs) == 0 {
		snaps = s.client.Rooms()
	} else {
		for _, id := range roomIDs {
			if snap, ok := s.client.Room(id); ok {
				snaps = append(snaps, snap)
			}
		}
	}
	for _, snap := range snaps {
		s.unread.Observe(snap.ID, snap.UnreadCount)
		row := store.RoomRow{
			RoomID:             snap.ID,
			Name:               room.DisplayName(snap, idx, s.client.UserID()),
			Classification:     room.Classify(snap, idx).String(),
			Membership:         string(snap.MyMembership),
			Encrypted:          snap.Encrypted,
			UnreadCount:        snap.UnreadCount,
			LastMessagePreview: room.Preview(snap.LastEvent),
		}
		if snap.LastEvent != nil {
			row.LastMessageAt = snap.LastEvent.Timestamp
		}
		if err := s.db.UpsertRoom(row); err != nil {
			s.logger.Warn("failed to cache room", zap.String("room_id", snap.ID), zap.Error(err))
		}
	}
	s.publish(bus.RoomsChanged, roomIDs)
}

// Summaries returns the room list for a tab, filtered by query. Before the
// first sync it is served from the room cache.
func (s *Session) Summaries(tab room.Tab, query string) []room.Summary {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	snaps := s.client.Rooms()
	if len(snaps) == 0 {
		return room.Filter(s.cachedSummaries(tab, current), query)
	}
	for i := range snaps {
		snaps[i].UnreadCount = s.unread.Count(snaps[i].ID)
	}
	sums := room.Summaries(snaps, s.client.KnownDirect(), room.Options{
		MyUserID:     s.client.UserID(),
		ActiveRoomID: current,
		Tab:          tab,
	})
	return room.Filter(sums, query)
}

func (s *Session) cachedSummaries(tab room.Tab, current string) []room.Summary {
	rows, err := s.db.ListRooms(0, 0)
	if err != nil {
		s.logger.Warn("failed to read room cache", zap.Error(err))
		return nil
	}
	var out []room.Summary
	for _, r := range rows {
		invited := r.Membership == string(room.Invite)
		c := room.Group
		if r.Classification == room.DM.String() {
			c = room.DM
		}
		switch {
		case tab == room.TabInvites && !invited,
			tab == room.TabRooms && (invited || c != room.Group),
			tab == room.TabDMs && (invited || c != room.DM):
			continue
		}
		out = append(out, room.Summary{
			RoomID:             r.RoomID,
			DisplayName:        r.Name,
			Classification:     c,
			UnreadCount:        r.UnreadCount,
			LastMessagePreview: r.LastMessagePreview,
			LastMessageAt:      r.LastMessageAt,
			IsActive:           r.RoomID == current,
			Invited:            invited,
			Encrypted:          r.Encrypted,
		})
	}
	return out
}

// Digest returns the rooms with unread messages across DMs and groups,
// busiest first.
func (s *Session) Digest() []room.Summary {
	all := append(s.Summaries(room.TabDMs, ""), s.Summaries(room.TabRooms, "")...)
	return notify.Digest(all)
}

// UnreadTotal returns the effective unread count over all rooms.
func (s *Session) UnreadTotal() int {
	return s.unread.Total()
}

// SelectRoom opens roomID: its history is loaded from the cache (fetching a
// page from the server when the cache is empty), it becomes the current and
// most recent room, and it is marked read. Live events for the room that
// arrive while the page loads are held back and merged after it.
func (s *Session) SelectRoom(ctx context.Context, roomID string) ([]timeline.Message, error) {
	if _, ok := s.client.Room(roomID); !ok {
		return nil, fmt.Errorf("select %s: %w", roomID, protocol.ErrRoomNotFound)
	}
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	s.viewMu.Lock()
	s.loading, s.pending = roomID, nil
	s.mu.Lock()
	previous := s.current
	s.current = roomID
	s.mu.Unlock()
	s.view.LoadHistory(roomID, nil)
	s.viewMu.Unlock()

	evs, err := s.loadHistory(ctx, roomID)

	s.viewMu.Lock()
	held := s.pending
	s.loading, s.pending = "", nil
	if err != nil {
		s.mu.Lock()
		s.current = previous
		s.mu.Unlock()
		s.reopenLocked(previous)
		s.viewMu.Unlock()
		return nil, err
	}
	s.view.LoadHistory(roomID, append(evs, held...))
	s.viewMu.Unlock()

	s.mu.Lock()
	s.recent.Track(roomID)
	s.mu.Unlock()

	if err := s.MarkRead(ctx, roomID); err != nil {
		s.logger.Debug("read acknowledgement failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.publish(bus.RoomsChanged, []string{roomID})
	return s.view.Messages(), nil
}

// reopenLocked restores a room's view from the cache after a failed switch.
// viewMu must be held.
func (s *Session) reopenLocked(roomID string) {
	if roomID == "" {
		s.view.LoadHistory("", nil)
		return
	}
	evs, err := s.db.ListEvents(roomID, 0, s.historyLimit)
	if err != nil {
		s.logger.Warn("failed to restore view", zap.String("room_id", roomID), zap.Error(err))
	}
	s.view.LoadHistory(roomID, evs)
}

func (s *Session) loadHistory(ctx context.Context, roomID string) ([]protocol.Event, error) {
	evs, err := s.db.ListEvents(roomID, 0, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load cached history: %w", err)
	}
	if len(evs) > 0 {
		return evs, nil
	}
	evs, err = s.client.Timeline(ctx, roomID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		if _, err := s.history.IngestHistory(roomID, evs); err != nil {
			s.logger.Warn("failed to cache history", zap.Error(err))
		}
	}
	return evs, nil
}

// Messages returns the open room's timeline.
func (s *Session) Messages() (string, []timeline.Message) {
	return s.view.RoomID(), s.view.Messages()
}

// MarkRead marks a room read up to its latest event. The local unread count
// drops to zero even when the server calls fail.
func (s *Session) MarkRead(ctx context.Context, roomID string) error {
	return s.marker.MarkRead(ctx, roomID, s.latestEventID(roomID))
}

func (s *Session) latestEventID(roomID string) string {
	if s.view.RoomID() == roomID {
		msgs := s.view.Messages()
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].EventID != "" {
				return msgs[i].EventID
			}
		}
	}
	if snap, ok := s.client.Room(roomID); ok && snap.LastEvent != nil {
		return snap.LastEvent.EventID
	}
	return ""
}

// Send posts body to roomID, or to the open room when roomID is empty.
func (s *Session) Send(ctx context.Context, roomID, body string) (string, error) {
	if roomID == "" {
		s.mu.Lock()
		roomID = s.current
		s.mu.Unlock()
		if roomID == "" {
			return "", ErrNoRoomSelected
		}
	}
	eventID, err := s.sender.Send(ctx, roomID, body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.recent.Track(roomID)
	s.mu.Unlock()
	return eventID, nil
}

// OpenDM opens the direct chat with userID, creating it when needed.
func (s *Session) OpenDM(ctx context.Context, userID string) (string, error) {
	roomID, err := s.client.CreateDM(ctx, userID)
	if err != nil {
		return "", err
	}
	if _, ok := s.client.Room(roomID); ok {
		if _, err := s.SelectRoom(ctx, roomID); err != nil {
			return roomID, err
		}
	}
	return roomID, nil
}

// AcceptInvite joins an invited room.
func (s *Session) AcceptInvite(ctx context.Context, roomID string) error {
	return s.client.JoinRoom(ctx, roomID)
}

// Leave leaves a room or declines an invite, closing it if it was open.
func (s *Session) Leave(ctx context.Context, roomID string) error {
	if err := s.client.LeaveRoom(ctx, roomID); err != nil {
		return err
	}
	s.mu.Lock()
	s.recent.Remove(roomID)
	closed := s.current == roomID
	if closed {
		s.current = ""
	}
	s.mu.Unlock()
	if closed {
		s.viewMu.Lock()
		s.view.LoadHistory("", nil)
		s.viewMu.Unlock()
	}
	return nil
}

// Search runs a full-text query over cached messages.
func (s *Session) Search(query, roomID string, limit int) ([]store.SearchResult, error) {
	return s.db.SearchEvents(query, roomID, limit)
}

// Close waits for read acknowledgements and media downloads still in
// flight.
func (s *Session) Close() {
	s.acks.Wait()
	s.view.Wait()
}

func (s *Session) timelineChanged(roomID string) {
	s.publish(bus.TimelineChanged, roomID)
}

func (s *Session) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(kind, payload))
	}
}
