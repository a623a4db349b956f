// Package model caches daemon state for the TUI and signals redraws.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/client"
)

// Backend is the subset of the daemon API the TUI drives.
type Backend interface {
	GetStatus(ctx context.Context) (*api.StatusResponse, error)
	SetFocus(ctx context.Context, focused bool) error
	WatchEvents(ctx context.Context, prefixes ...string) (Stream, error)

	ListRooms(ctx context.Context, tab, query string) ([]api.Room, error)
	GetState(ctx context.Context) (*api.StateResponse, error)
	SetTab(ctx context.Context, tab string) error
	SelectRoom(ctx context.Context, roomID string) (*api.MessagesResponse, error)
	MarkRead(ctx context.Context, roomID string) error
	OpenDM(ctx context.Context, userID string) (string, error)
	AcceptInvite(ctx context.Context, roomID string) error
	Leave(ctx context.Context, roomID string) error
	Digest(ctx context.Context) ([]api.Room, error)

	ListMessages(ctx context.Context) (*api.MessagesResponse, error)
	Send(ctx context.Context, roomID, body string) (string, error)
	Search(ctx context.Context, query, roomID string, limit int) ([]api.SearchHit, error)

	Month(ctx context.Context, year, month int) (*api.MonthResponse, error)
	Reload(ctx context.Context) (int, error)
}

// Stream yields watched daemon events.
type Stream interface {
	Recv() (*api.Envelope, error)
}

// Change describes what a watched event made stale. Loads do not raise
// changes; the UI reacts to a change by reloading.
type Change int

const (
	ChangeStatus Change = 1 << iota
	ChangeRooms
	ChangeTimeline
	ChangeNotice
)

// ViewModel caches daemon state and signals when the daemon reports that
// some of it went stale.
type ViewModel struct {
	mu sync.RWMutex

	backend  Backend
	status   *api.StatusResponse
	tab      string
	rooms    []api.Room
	recent   []api.Room
	roomID   string
	messages []api.Message
	notices  []string
	pending  Change

	refreshCh chan struct{}
}

// New creates a view model over the daemon client.
func New(c *client.Client) *ViewModel {
	return NewWithBackend(clientBackend{c})
}

// NewWithBackend creates a view model over any Backend.
func NewWithBackend(b Backend) *ViewModel {
	return &ViewModel{
		backend:   b,
		tab:       "dms",
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signal(c Change) {
	vm.mu.Lock()
	vm.pending |= c
	vm.mu.Unlock()
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// TakeChanges returns and clears the changes accumulated since the last call.
func (vm *ViewModel) TakeChanges() Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c := vm.pending
	vm.pending = 0
	return c
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.backend.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadRooms fetches the active tab and the recent rooms.
func (vm *ViewModel) LoadRooms(ctx context.Context) error {
	state, err := vm.backend.GetState(ctx)
	if err != nil {
		return err
	}
	rooms, err := vm.backend.ListRooms(ctx, state.Tab, "")
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.tab = state.Tab
	vm.recent = state.Recent
	vm.rooms = rooms
	vm.mu.Unlock()
	return nil
}

// SetTab switches the daemon's active tab and reloads the list.
func (vm *ViewModel) SetTab(ctx context.Context, tab string) error {
	if err := vm.backend.SetTab(ctx, tab); err != nil {
		return err
	}
	return vm.LoadRooms(ctx)
}

// SelectRoom opens a room and caches its timeline.
func (vm *ViewModel) SelectRoom(ctx context.Context, roomID string) error {
	resp, err := vm.backend.SelectRoom(ctx, roomID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.roomID = resp.RoomID
	vm.messages = resp.Messages
	vm.mu.Unlock()
	return nil
}

// LoadMessages refreshes the open timeline.
func (vm *ViewModel) LoadMessages(ctx context.Context) error {
	resp, err := vm.backend.ListMessages(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.roomID = resp.RoomID
	vm.messages = resp.Messages
	vm.mu.Unlock()
	return nil
}

// Send sends body to the open room. The local echo arrives through the
// timeline stream.
func (vm *ViewModel) Send(ctx context.Context, body string) error {
	roomID := vm.RoomID()
	if roomID == "" {
		return errors.New("no room open")
	}
	_, err := vm.backend.Send(ctx, roomID, body)
	return err
}

// MarkRead marks the open room read.
func (vm *ViewModel) MarkRead(ctx context.Context) error {
	return vm.backend.MarkRead(ctx, vm.RoomID())
}

// SetFocus reports whether the terminal has focus.
func (vm *ViewModel) SetFocus(ctx context.Context, focused bool) error {
	return vm.backend.SetFocus(ctx, focused)
}

// OpenDM finds or creates a direct room with userID and opens it.
func (vm *ViewModel) OpenDM(ctx context.Context, userID string) error {
	roomID, err := vm.backend.OpenDM(ctx, userID)
	if err != nil {
		return err
	}
	return vm.SelectRoom(ctx, roomID)
}

// AcceptInvite joins an invited room.
func (vm *ViewModel) AcceptInvite(ctx context.Context, roomID string) error {
	if err := vm.backend.AcceptInvite(ctx, roomID); err != nil {
		return err
	}
	return vm.LoadRooms(ctx)
}

// Leave leaves a room, closing it if open.
func (vm *ViewModel) Leave(ctx context.Context, roomID string) error {
	if err := vm.backend.Leave(ctx, roomID); err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.roomID == roomID {
		vm.roomID = ""
		vm.messages = nil
	}
	vm.mu.Unlock()
	return vm.LoadRooms(ctx)
}

// Search runs a full-text query, optionally scoped to one room.
func (vm *ViewModel) Search(ctx context.Context, query, roomID string) ([]api.SearchHit, error) {
	return vm.backend.Search(ctx, query, roomID, 50)
}

// Digest returns the rooms with unread messages.
func (vm *ViewModel) Digest(ctx context.Context) ([]api.Room, error) {
	return vm.backend.Digest(ctx)
}

// Month returns the holidays of one month.
func (vm *ViewModel) Month(ctx context.Context, year, month int) (*api.MonthResponse, error) {
	return vm.backend.Month(ctx, year, month)
}

// ReloadHolidays refetches the holiday feed.
func (vm *ViewModel) ReloadHolidays(ctx context.Context) (int, error) {
	return vm.backend.Reload(ctx)
}

// Watch follows the daemon event stream until ctx ends, reconnecting with
// exponential backoff. Each event marks the state it invalidates.
func (vm *ViewModel) Watch(ctx context.Context) error {
	for ctx.Err() == nil {
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			stream, err := vm.backend.WatchEvents(ctx)
			if err != nil {
				return struct{}{}, err
			}
			for {
				env, err := stream.Recv()
				if err != nil {
					return struct{}{}, err
				}
				vm.apply(env)
			}
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(0))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			vm.notice("event stream: " + err.Error())
		}
	}
	return ctx.Err()
}

func (vm *ViewModel) apply(env *api.Envelope) {
	switch {
	case strings.HasPrefix(env.Kind, "session."), strings.HasPrefix(env.Kind, "sync."):
		vm.signal(ChangeStatus)
	case env.Kind == "rooms.changed":
		vm.signal(ChangeRooms | ChangeStatus)
	case env.Kind == "timeline.changed":
		var roomID string
		_ = json.Unmarshal(env.Payload, &roomID)
		if roomID == "" || roomID == vm.RoomID() {
			vm.signal(ChangeTimeline)
		}
	case env.Kind == "notify.message":
		var n struct {
			RoomName   string
			SenderName string
			Body       string
		}
		if err := json.Unmarshal(env.Payload, &n); err == nil {
			vm.notice(fmt.Sprintf("%s: %s: %s", n.RoomName, n.SenderName, n.Body))
		}
	}
}

func (vm *ViewModel) notice(text string) {
	vm.mu.Lock()
	vm.notices = append(vm.notices, text)
	vm.mu.Unlock()
	vm.signal(ChangeNotice)
}

// TakeNotices returns and clears the queued notifications.
func (vm *ViewModel) TakeNotices() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := vm.notices
	vm.notices = nil
	return n
}

// Status returns the last fetched session status.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Uptime returns the daemon uptime from the last status.
func (vm *ViewModel) Uptime() time.Duration {
	if s := vm.Status(); s != nil {
		return time.Duration(s.UptimeMs) * time.Millisecond
	}
	return 0
}

// Tab returns the active tab.
func (vm *ViewModel) Tab() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.tab
}

// Rooms returns a snapshot of the active tab's rooms.
func (vm *ViewModel) Rooms() []api.Room {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.rooms
}

// Recent returns the recently opened rooms.
func (vm *ViewModel) Recent() []api.Room {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.recent
}

// RoomID returns the open room.
func (vm *ViewModel) RoomID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.roomID
}

// Messages returns a snapshot of the open timeline.
func (vm *ViewModel) Messages() []api.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// RoomName returns the display name of a cached room, or the id.
func (vm *ViewModel) RoomName(roomID string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, list := range [][]api.Room{vm.rooms, vm.recent} {
		for _, r := range list {
			if r.RoomID == roomID && r.Name != "" {
				return r.Name
			}
		}
	}
	return roomID
}

// RoomNames maps the cached room ids to display names.
func (vm *ViewModel) RoomNames() map[string]string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make(map[string]string, len(vm.rooms)+len(vm.recent))
	for _, list := range [][]api.Room{vm.recent, vm.rooms} {
		for _, r := range list {
			out[r.RoomID] = r.Name
		}
	}
	return out
}

type clientBackend struct{ c *client.Client }

func (b clientBackend) GetStatus(ctx context.Context) (*api.StatusResponse, error) {
	return b.c.Session.GetStatus(ctx)
}

func (b clientBackend) SetFocus(ctx context.Context, focused bool) error {
	return b.c.Session.SetFocus(ctx, focused)
}

func (b clientBackend) WatchEvents(ctx context.Context, prefixes ...string) (Stream, error) {
	r, err := b.c.Sync.WatchEvents(ctx, prefixes...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b clientBackend) ListRooms(ctx context.Context, tab, query string) ([]api.Room, error) {
	return b.c.Rooms.ListRooms(ctx, tab, query)
}

func (b clientBackend) GetState(ctx context.Context) (*api.StateResponse, error) {
	return b.c.Rooms.GetState(ctx)
}

func (b clientBackend) SetTab(ctx context.Context, tab string) error {
	return b.c.Rooms.SetTab(ctx, tab)
}

func (b clientBackend) SelectRoom(ctx context.Context, roomID string) (*api.MessagesResponse, error) {
	return b.c.Rooms.SelectRoom(ctx, roomID)
}

func (b clientBackend) MarkRead(ctx context.Context, roomID string) error {
	return b.c.Rooms.MarkRead(ctx, roomID)
}

func (b clientBackend) OpenDM(ctx context.Context, userID string) (string, error) {
	return b.c.Rooms.OpenDM(ctx, userID)
}

func (b clientBackend) AcceptInvite(ctx context.Context, roomID string) error {
	return b.c.Rooms.AcceptInvite(ctx, roomID)
}

func (b clientBackend) Leave(ctx context.Context, roomID string) error {
	return b.c.Rooms.Leave(ctx, roomID)
}

func (b clientBackend) Digest(ctx context.Context) ([]api.Room, error) {
	return b.c.Rooms.Digest(ctx)
}

func (b clientBackend) ListMessages(ctx context.Context) (*api.MessagesResponse, error) {
	return b.c.Messages.ListMessages(ctx)
}

func (b clientBackend) Send(ctx context.Context, roomID, body string) (string, error) {
	return b.c.Messages.Send(ctx, roomID, body)
}

func (b clientBackend) Search(ctx context.Context, query, roomID string, limit int) ([]api.SearchHit, error) {
	return b.c.Messages.Search(ctx, query, roomID, limit)
}

func (b clientBackend) Month(ctx context.Context, year, month int) (*api.MonthResponse, error) {
	return b.c.Calendar.Month(ctx, year, month)
}

func (b clientBackend) Reload(ctx context.Context) (int, error) {
	return b.c.Calendar.Reload(ctx)
}
