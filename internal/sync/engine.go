package sync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/store"
	"go.uber.org/zap"
)

// CheckpointLastEvent is the sync_state key holding the timestamp of the
// newest ingested event.
const CheckpointLastEvent = "last_event_ts"

// Handler receives events after they are cached. live is false for
// decryption results, which replace an event already delivered.
type Handler interface {
	HandleEvent(ctx context.Context, ev protocol.Event, live bool)
	RoomsChanged(ctx context.Context, roomIDs []string)
}

// Engine handles idempotent ingestion of events into the store.
// It subscribes to "matrix.*" events on the bus and processes them on a
// single goroutine, so the handler never sees two events concurrently.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	handler Handler
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	lastTS  int64
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound sync client events on the bus and hands each
// cached event to h. h may be nil.
func (e *Engine) Start(ctx context.Context, h Handler) {
	e.handler = h
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("matrix.", 4096)

	if v, err := e.db.Checkpoint(ctx, CheckpointLastEvent); err == nil && v != "" {
		e.lastTS, _ = strconv.ParseInt(v, 10, 64)
	}

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the current event to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.MatrixTimeline, bus.MatrixDecrypted:
		ev, ok := evt.Payload.(protocol.Event)
		if !ok {
			return
		}
		if err := e.Ingest(ctx, ev); err != nil {
			e.logger.Error("failed to ingest event", zap.Error(err), zap.String("event_id", ev.EventID))
		}
		if e.handler != nil {
			e.handler.HandleEvent(ctx, ev, evt.Kind == bus.MatrixTimeline)
		}
	case bus.MatrixRooms:
		ids, _ := evt.Payload.([]string)
		if e.handler != nil {
			e.handler.RoomsChanged(ctx, ids)
		}
	}
}

// Ingest caches a single event (idempotent). Events without a server id are
// local echoes and are not cached.
func (e *Engine) Ingest(ctx context.Context, ev protocol.Event) error {
	if ev.EventID == "" {
		return nil
	}
	if err := e.db.UpsertEvent(ev); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	if ev.Timestamp > e.lastTS {
		e.lastTS = ev.Timestamp
		if err := e.db.SetCheckpoint(ctx, CheckpointLastEvent, strconv.FormatInt(ev.Timestamp, 10)); err != nil {
			e.logger.Warn("failed to save checkpoint", zap.Error(err))
		}
	}
	return nil
}

// IngestHistory caches a page of room history in one transaction and
// reports how many events were new.
func (e *Engine) IngestHistory(roomID string, evs []protocol.Event) (int, error) {
	n, err := e.db.UpsertEvents(evs)
	if err != nil {
		return 0, fmt.Errorf("ingest history for %s: %w", roomID, err)
	}
	e.logger.Info("history batch ingested", zap.String("room_id", roomID), zap.Int("events", n))
	e.bus.Publish(bus.NewEvent(bus.SyncHistory, bus.HistoryBatch{RoomID: roomID, Count: n}))
	return n, nil
}
