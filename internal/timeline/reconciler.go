// Package timeline reconciles the event stream of the open room into one
// ordered, de-duplicated list of rendered messages.
package timeline

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"go.uber.org/zap"
)

// MediaResolver fetches the bytes behind an opaque media reference.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, ref string) ([]byte, error)
}

// RoomSource gives the reconciler read access to room state.
type RoomSource interface {
	Room(id string) (room.Snapshot, bool)
	KnownDirect() room.DirectIndex
}

// Result reports what Upsert did.
type Result int

const (
	Ignored Result = iota
	Appended
	Replaced
	Moved
	Unchanged
)

func (r Result) String() string {
	switch r {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Moved:
		return "moved"
	case Unchanged:
		return "unchanged"
	default:
		return "ignored"
	}
}

// Config wires a Reconciler.
type Config struct {
	Rooms        RoomSource
	Media        MediaResolver // nil disables attachment and avatar fetches
	MediaTimeout time.Duration
	Logger       *zap.Logger
	OnChange     func(roomID string)
	Now          func() time.Time
}

type entry struct {
	msg Message
}

// Reconciler holds the rendered view of a single room. Upserts are expected
// from one goroutine; media completion and reads may come from any.
type Reconciler struct {
	rooms    RoomSource
	media    MediaResolver
	timeout  time.Duration
	log      *zap.Logger
	onChange func(string)
	now      func() time.Time

	mu      sync.Mutex
	roomID  string
	gen     uint64
	order   []*entry
	index   map[string]*entry
	avatars map[string]*avatarFetch // per view, keyed by media ref

	jobs sync.WaitGroup
}

// New creates an empty Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		rooms:    cfg.Rooms,
		media:    cfg.Media,
		timeout:  cfg.MediaTimeout,
		log:      cfg.Logger,
		onChange: cfg.OnChange,
		now:      cfg.Now,
		index:    make(map[string]*entry),
		avatars:  make(map[string]*avatarFetch),
	}
}

// RoomID returns the room currently loaded.
func (r *Reconciler) RoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomID
}

// LoadHistory resets the view to roomID and replays events in order. Media
// results still in flight for the previous view are dropped.
func (r *Reconciler) LoadHistory(roomID string, events []protocol.Event) {
	r.mu.Lock()
	r.roomID = roomID
	r.gen++
	r.order = nil
	r.index = make(map[string]*entry)
	r.avatars = make(map[string]*avatarFetch)
	var pending []*entry
	for _, ev := range events {
		if ev.RoomID != "" && ev.RoomID != roomID {
			continue
		}
		if _, e := r.upsertLocked(ev); e != nil {
			pending = append(pending, e)
		}
	}
	gen := r.gen
	r.mu.Unlock()

	for _, e := range pending {
		r.scheduleMedia(gen, e)
	}
	r.changed(roomID)
}

// Upsert merges one event into the view.
func (r *Reconciler) Upsert(ev protocol.Event) Result {
	r.mu.Lock()
	if r.roomID == "" || ev.RoomID != r.roomID || ev.Key() == "" {
		r.mu.Unlock()
		return Ignored
	}
	res, e := r.upsertLocked(ev)
	gen, roomID := r.gen, r.roomID
	r.mu.Unlock()

	if e != nil {
		r.scheduleMedia(gen, e)
	}
	if res != Unchanged {
		r.changed(roomID)
	}
	return res
}

// upsertLocked applies the identity rules and returns the entry that needs
// media resolution, if any.
func (r *Reconciler) upsertLocked(ev protocol.Event) (Result, *entry) {
	var existing *entry
	if ev.EventID != "" {
		existing = r.index[ev.EventID]
	}
	if existing == nil && ev.TransactionID != "" {
		existing = r.index[ev.TransactionID]
	}

	if existing != nil && !existing.msg.Placeholder &&
		ev.EventID != "" && existing.msg.EventID == ev.EventID && !ev.StillEncrypted() {
		return Unchanged, nil
	}

	e := &entry{msg: r.render(ev)}
	if existing == nil {
		r.order = append(r.order, e)
		r.indexEntry(e)
		return Appended, e
	}
	// The prior rendering always leaves its position; a resolved placeholder
	// shows up at the end like a newly arrived message.
	r.removeLocked(existing)
	r.order = append(r.order, e)
	r.indexEntry(e)
	if existing.msg.Placeholder {
		return Replaced, e
	}
	return Moved, e
}

func (r *Reconciler) indexEntry(e *entry) {
	if e.msg.EventID != "" {
		r.index[e.msg.EventID] = e
	}
	if e.msg.TransactionID != "" {
		r.index[e.msg.TransactionID] = e
	}
}

func (r *Reconciler) unindexEntry(e *entry) {
	for _, k := range []string{e.msg.EventID, e.msg.TransactionID} {
		if k != "" && r.index[k] == e {
			delete(r.index, k)
		}
	}
}

func (r *Reconciler) removeLocked(e *entry) {
	r.unindexEntry(e)
	if i := slices.Index(r.order, e); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

// Discard drops an unconfirmed local echo. Confirmed messages are kept.
func (r *Reconciler) Discard(key string) bool {
	r.mu.Lock()
	e, ok := r.index[key]
	if !ok || !e.msg.Local {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(e)
	roomID := r.roomID
	r.mu.Unlock()

	r.changed(roomID)
	return true
}

// Messages returns a copy of the view in display order.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.order))
	for i, e := range r.order {
		out[i] = e.msg.clone()
	}
	return out
}

// Get returns the message stored under an event id or transaction id.
func (r *Reconciler) Get(key string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[key]
	if !ok {
		return Message{}, false
	}
	return e.msg.clone(), true
}

// Len returns the number of messages in the view.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Wait blocks until all scheduled media fetches have finished.
func (r *Reconciler) Wait() {
	r.jobs.Wait()
}

func (r *Reconciler) changed(roomID string) {
	if r.onChange != nil && roomID != "" {
		r.onChange(roomID)
	}
}
