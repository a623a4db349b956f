package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/typec/internal/protocol"
	"go.uber.org/zap/zaptest"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// DB must satisfy the Matrix client's token store.
var _ mautrix.SyncStore = (*DB)(nil)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	result, err := db.Migrate()
	if err == nil {
		t.Fatal("Migrate() on a dirty schema succeeded")
	}
	if result == nil || !result.Dirty || result.Version != 2 {
		t.Errorf("result = %+v", result)
	}
}

func msg(roomID, eventID, body string, ts int64) protocol.Event {
	return protocol.Event{
		RoomID: roomID, EventID: eventID, SenderID: "@bob:x", Type: protocol.TypeMessage,
		Timestamp: ts, Content: protocol.Content{Body: body, MsgType: protocol.MsgText},
	}
}

func TestUpsertEventIdempotent(t *testing.T) {
	db := testDB(t)

	ev := msg("!r", "$1", "hello", 1000)
	if err := db.UpsertEvent(ev); err != nil {
		t.Fatal(err)
	}
	ev.Content.Body = "hello edited"
	if err := db.UpsertEvent(ev); err != nil {
		t.Fatal(err)
	}

	evs, err := db.ListEvents("!r", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1 (idempotent upsert failed)", len(evs))
	}
	if evs[0].Content.Body != "hello edited" {
		t.Errorf("body = %q, want hello edited", evs[0].Content.Body)
	}
}

func TestUpsertEventKeepsDecryptedContent(t *testing.T) {
	db := testDB(t)

	decrypted := msg("!r", "$1", "secret", 1000)
	decrypted.Type = protocol.TypeEncrypted
	decrypted.Decryption.State = protocol.DecryptionSucceeded
	if err := db.UpsertEvent(decrypted); err != nil {
		t.Fatal(err)
	}

	stale := protocol.Event{
		RoomID: "!r", EventID: "$1", Type: protocol.TypeEncrypted, Timestamp: 1000,
		Decryption: protocol.Decryption{State: protocol.DecryptionFailed, Reason: "no keys"},
	}
	if err := db.UpsertEvent(stale); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetEvent("!r", "$1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Content.Body != "secret" || got.Decryption.State != protocol.DecryptionSucceeded {
		t.Errorf("event = %+v, want decrypted content kept", got)
	}
}

func TestUpsertEventRequiresID(t *testing.T) {
	db := testDB(t)
	ev := msg("!r", "", "echo", 1)
	ev.TransactionID = "txn"
	if err := db.UpsertEvent(ev); err == nil {
		t.Error("UpsertEvent accepted an event without id")
	}
}

func TestListEventsOrderAndPaging(t *testing.T) {
	db := testDB(t)
	n, err := db.UpsertEvents([]protocol.Event{
		msg("!r", "$3", "three", 3000),
		msg("!r", "$1", "one", 1000),
		msg("!r", "$2", "two", 2000),
		msg("!other", "$9", "elsewhere", 1500),
		msg("!r", "$1", "one again", 1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("inserted %d, want 4", n)
	}

	evs, err := db.ListEvents("!r", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].EventID != "$2" || evs[1].EventID != "$3" {
		t.Fatalf("latest page = %+v, want [$2 $3]", evs)
	}

	older, err := db.ListEvents("!r", evs[0].Timestamp, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 1 || older[0].EventID != "$1" || older[0].Content.Body != "one" {
		t.Errorf("older page = %+v", older)
	}
}

func TestGetEventMissing(t *testing.T) {
	db := testDB(t)
	ev, err := db.GetEvent("!r", "$nope")
	if err != nil || ev != nil {
		t.Errorf("GetEvent() = %v, %v; want nil, nil", ev, err)
	}
}

func TestSearchEvents(t *testing.T) {
	db := testDB(t)
	for _, ev := range []protocol.Event{
		msg("!r", "$1", "hello world", 1000),
		msg("!r", "$2", "goodbye world", 2000),
		msg("!s", "$3", "hello there", 3000),
	} {
		if err := db.UpsertEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchEvents("hello", "!r", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Event.EventID != "$1" {
		t.Fatalf("results = %+v, want only $1", results)
	}
	if results[0].Snippet == "" {
		t.Error("empty snippet")
	}

	all, err := db.SearchEvents("hello", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d results across rooms, want 2", len(all))
	}
}

func TestRoomsCache(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertRoom(RoomRow{RoomID: "!a", Name: "A", Classification: "dm", Membership: "join", LastMessageAt: 2000, LastMessagePreview: "new"}); err != nil {
		t.Fatal(err)
	}
	// An older preview must not replace a newer one.
	if err := db.UpsertRoom(RoomRow{RoomID: "!a", Name: "A", Classification: "dm", Membership: "join", LastMessageAt: 1000, LastMessagePreview: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRoom(RoomRow{RoomID: "!b", Name: "B", Membership: "leave"}); err != nil {
		t.Fatal(err)
	}

	rooms, err := db.ListRooms(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Fatalf("got %d rooms, want 1 (left rooms hidden)", len(rooms))
	}
	if rooms[0].LastMessagePreview != "new" || rooms[0].LastMessageAt != 2000 {
		t.Errorf("room = %+v", rooms[0])
	}
}

func TestSyncStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := id.UserID("@me:x")

	if tok, err := db.LoadNextBatch(ctx, user); err != nil || tok != "" {
		t.Fatalf("empty LoadNextBatch() = %q, %v", tok, err)
	}
	if err := db.SaveNextBatch(ctx, user, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveNextBatch(ctx, user, "s2"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveFilterID(ctx, user, "f1"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := db.LoadNextBatch(ctx, user); tok != "s2" {
		t.Errorf("next batch = %q, want s2", tok)
	}
	if f, _ := db.LoadFilterID(ctx, user); f != "f1" {
		t.Errorf("filter = %q, want f1", f)
	}
	if tok, _ := db.LoadNextBatch(ctx, "@other:x"); tok != "" {
		t.Errorf("tokens leaked between users: %q", tok)
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("txn1", "!r", "first"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("txn2", "!r", "second"); err != nil {
		t.Fatal(err)
	}

	queued, err := db.ListOutbox("queued", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 2 || queued[0].TxnID != "txn1" {
		t.Fatalf("queued = %+v", queued)
	}

	if err := db.MarkOutboxSending("txn1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("txn1", "$srv"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("txn2", "forbidden"); err != nil {
		t.Fatal(err)
	}

	sent, _ := db.ListOutbox("sent", 0)
	if len(sent) != 1 || sent[0].EventID != "$srv" {
		t.Errorf("sent = %+v", sent)
	}
	failed, _ := db.ListOutbox("failed", 0)
	if len(failed) != 1 || failed[0].ErrorMessage != "forbidden" {
		t.Errorf("failed = %+v", failed)
	}
	all, _ := db.ListOutbox("", 0)
	if len(all) != 2 {
		t.Errorf("all = %d entries, want 2", len(all))
	}
}

func TestFeedCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.LoadFeed(ctx, "https://feed"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("LoadFeed() error = %v, want ErrNotCached", err)
	}
	if err := db.SaveFeed(ctx, "https://feed", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveFeed(ctx, "https://feed", "v2"); err != nil {
		t.Fatal(err)
	}
	doc, err := db.LoadFeed(ctx, "https://feed")
	if err != nil || doc != "v2" {
		t.Errorf("LoadFeed() = %q, %v", doc, err)
	}
}
