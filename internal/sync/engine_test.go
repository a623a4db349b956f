package sync

import (
	"context"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/store"
	"go.uber.org/zap/zaptest"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type recordingHandler struct {
	mu     gosync.Mutex
	events []protocol.Event
	live   []bool
	rooms  [][]string
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev protocol.Event, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.live = append(h.live, live)
}

func (h *recordingHandler) RoomsChanged(_ context.Context, ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, ids)
}

func (h *recordingHandler) snapshot() ([]protocol.Event, [][]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]protocol.Event(nil), h.events...), append([][]string(nil), h.rooms...)
}

func text(roomID, eventID, body string, ts int64) protocol.Event {
	return protocol.Event{
		RoomID: roomID, EventID: eventID, SenderID: "@bob:x", Type: protocol.TypeMessage,
		Timestamp: ts, Content: protocol.Content{Body: body, MsgType: protocol.MsgText},
	}
}

func TestEngineIngestIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)
	ctx := context.Background()

	ev := text("!r", "$1", "v1", 1000)
	if err := e.Ingest(ctx, ev); err != nil {
		t.Fatal(err)
	}
	ev.Content.Body = "v2"
	if err := e.Ingest(ctx, ev); err != nil {
		t.Fatal(err)
	}

	evs, err := db.ListEvents("!r", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Content.Body != "v2" {
		t.Fatalf("events = %+v, want one updated event", evs)
	}
	if ts, _ := db.Checkpoint(ctx, CheckpointLastEvent); ts != "1000" {
		t.Errorf("checkpoint = %q, want 1000", ts)
	}
}

func TestEngineSkipsLocalEcho(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	echo := protocol.Event{RoomID: "!r", TransactionID: "txn", Type: protocol.TypeMessage, Timestamp: 1}
	if err := e.Ingest(context.Background(), echo); err != nil {
		t.Fatalf("Ingest(echo) error = %v", err)
	}
	if evs, _ := db.ListEvents("!r", 0, 10); len(evs) != 0 {
		t.Errorf("local echo was cached: %+v", evs)
	}
}

func TestEngineIngestHistory(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, zaptest.NewLogger(t))

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	page := []protocol.Event{
		text("!a", "$1", "one", 1000),
		text("!a", "$2", "two", 2000),
	}
	n, err := e.IngestHistory("!a", page)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("new events = %d, want 2", n)
	}
	if n, _ := e.IngestHistory("!a", page); n != 0 {
		t.Errorf("repeated page inserted %d events, want 0", n)
	}

	select {
	case evt := <-ch:
		batch, ok := evt.Payload.(bus.HistoryBatch)
		if evt.Kind != bus.SyncHistory || !ok || batch.RoomID != "!a" || batch.Count != 2 {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.history_batch event")
	}
}

// TestEngineBusSubscription verifies the engine caches events from the bus
// and hands them to the handler in publish order.
func TestEngineBusSubscription(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	h := &recordingHandler{}
	e := NewEngine(db, b, zaptest.NewLogger(t))

	e.Start(context.Background(), h)

	b.Publish(bus.NewEvent(bus.MatrixTimeline, text("!r", "$1", "first", 1000)))
	pending := protocol.Event{RoomID: "!r", EventID: "$2", Type: protocol.TypeEncrypted, Timestamp: 2000,
		Decryption: protocol.Decryption{State: protocol.DecryptionPending}}
	b.Publish(bus.NewEvent(bus.MatrixTimeline, pending))
	done := pending
	done.Decryption.State = protocol.DecryptionSucceeded
	done.Content = protocol.Content{Body: "secret", MsgType: protocol.MsgText}
	b.Publish(bus.NewEvent(bus.MatrixDecrypted, done))
	b.Publish(bus.NewEvent(bus.MatrixRooms, []string{"!r"}))

	deadline := time.Now().Add(time.Second)
	for {
		evs, rooms := h.snapshot()
		if len(evs) == 3 && len(rooms) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("handler saw %d events and %d room updates", len(evs), len(rooms))
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.Stop()

	evs, _ := h.snapshot()
	if evs[0].EventID != "$1" || evs[2].Content.Body != "secret" {
		t.Errorf("handler order = %+v", evs)
	}
	h.mu.Lock()
	if !h.live[0] || !h.live[1] || h.live[2] {
		t.Errorf("live flags = %v, want decryption result marked as redelivery", h.live)
	}
	h.mu.Unlock()
	cached, err := db.GetEvent("!r", "$2")
	if err != nil || cached == nil || cached.Content.Body != "secret" {
		t.Errorf("cached $2 = %+v, %v", cached, err)
	}
}
