package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"github.com/matheus3301/typec/internal/status"
	"go.uber.org/zap/zaptest"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const firstSync = `{
  "next_batch": "s1",
  "rooms": {
    "join": {
      "!dm:x": {
        "summary": {"m.joined_member_count": 2},
        "state": {"events": [
          {"type": "m.room.member", "state_key": "@me:x", "sender": "@me:x", "event_id": "$m1", "origin_server_ts": 1, "content": {"membership": "join"}},
          {"type": "m.room.member", "state_key": "@bob:x", "sender": "@bob:x", "event_id": "$m2", "origin_server_ts": 1, "content": {"membership": "join", "displayname": "Bob", "avatar_url": "mxc://x/bob"}},
          {"type": "m.room.power_levels", "state_key": "", "sender": "@bob:x", "event_id": "$p", "origin_server_ts": 1, "content": {"users": {"@bob:x": 100}, "users_default": 0}},
          {"type": "m.room.encryption", "state_key": "", "sender": "@bob:x", "event_id": "$enc", "origin_server_ts": 1, "content": {"algorithm": "m.megolm.v1.aes-sha2"}}
        ]},
        "timeline": {"events": [
          {"type": "m.room.message", "sender": "@bob:x", "event_id": "$e1", "origin_server_ts": 1000, "content": {"msgtype": "m.text", "body": "hi"}},
          {"type": "m.reaction", "sender": "@bob:x", "event_id": "$r1", "origin_server_ts": 1500, "content": {}},
          {"type": "m.room.encrypted", "sender": "@bob:x", "event_id": "$e2", "origin_server_ts": 2000, "content": {"algorithm": "m.megolm.v1.aes-sha2", "ciphertext": "AAAA", "session_id": "s", "sender_key": "k", "device_id": "D"}}
        ]},
        "unread_notifications": {"notification_count": 2, "highlight_count": 0}
      }
    },
    "invite": {
      "!inv:x": {
        "invite_state": {"events": [
          {"type": "m.room.member", "state_key": "@me:x", "sender": "@carol:x", "content": {"membership": "invite"}},
          {"type": "m.room.name", "state_key": "", "sender": "@carol:x", "content": {"name": "Party"}}
        ]}
      }
    }
  },
  "account_data": {"events": [
    {"type": "m.direct", "content": {"@bob:x": ["!dm:x"]}}
  ]}
}`

func decodeSync(t *testing.T, doc string) *mautrix.RespSync {
	t.Helper()
	var resp mautrix.RespSync
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		t.Fatal(err)
	}
	return &resp
}

type fakeCrypto struct {
	err error
}

func (f *fakeCrypto) DecryptMegolmEvent(_ context.Context, evt *event.Event) (*event.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &event.Event{
		ID:      evt.ID,
		Sender:  evt.Sender,
		Type:    event.EventMessage,
		Content: event.Content{VeryRaw: json.RawMessage(`{"msgtype":"m.text","body":"secret"}`)},
	}, nil
}

func (f *fakeCrypto) EncryptMegolmEvent(context.Context, id.RoomID, event.Type, any) (*event.EncryptedEventContent, error) {
	return &event.EncryptedEventContent{Algorithm: id.AlgorithmMegolmV1}, f.err
}

func newTestAdapter(t *testing.T, hs string, crypto Crypto) (*Adapter, *bus.Bus, *status.Machine) {
	t.Helper()
	b := bus.New()
	m := status.NewMachine(b)
	if err := m.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	if hs == "" {
		hs = "https://hs.invalid"
	}
	a, err := NewAdapter(Options{
		Homeserver:  hs,
		UserID:      "@me:x",
		AccessToken: "tok",
		Crypto:      crypto,
		Bus:         b,
		Machine:     m,
		Logger:      zaptest.NewLogger(t),
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a, b, m
}

func recv(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for bus event")
	}
	return bus.Event{}
}

func TestHandleSyncFoldsRoomState(t *testing.T) {
	a, _, m := newTestAdapter(t, "", nil)

	a.handleSync(context.Background(), decodeSync(t, firstSync), "")

	if m.Current() != status.Prepared {
		t.Errorf("state = %s, want PREPARED after the first sync", m.Current())
	}

	dm, ok := a.Room("!dm:x")
	if !ok {
		t.Fatal("joined room missing")
	}
	if dm.MyMembership != room.Join || dm.JoinedCount != 2 || !dm.Encrypted || dm.UnreadCount != 2 {
		t.Errorf("dm snapshot = %+v", dm)
	}
	bob, ok := dm.Member("@bob:x")
	if !ok || bob.DisplayName != "Bob" || bob.PowerLevel != 100 || bob.AvatarURL != "mxc://x/bob" {
		t.Errorf("bob = %+v", bob)
	}
	if dm.LastEvent == nil || dm.LastEvent.EventID != "$e2" {
		t.Errorf("last event = %+v, want $e2", dm.LastEvent)
	}
	if got := room.Classify(dm, a.KnownDirect()); got != room.DM {
		t.Errorf("Classify() = %s, want dm", got)
	}

	inv, ok := a.Room("!inv:x")
	if !ok || inv.MyMembership != room.Invite || inv.Inviter != "@carol:x" || inv.Name != "Party" {
		t.Errorf("invite snapshot = %+v", inv)
	}

	rooms := a.Rooms()
	if len(rooms) != 2 || rooms[0].ID != "!dm:x" {
		t.Errorf("Rooms() order = %v, want the active room first", rooms)
	}
}

func TestHandleSyncPublishesTimeline(t *testing.T) {
	a, b, _ := newTestAdapter(t, "", nil)
	ch, unsub := b.Subscribe("matrix.", 16)
	defer unsub()

	a.handleSync(context.Background(), decodeSync(t, firstSync), "")

	first := recv(t, ch)
	ev, ok := first.Payload.(protocol.Event)
	if first.Kind != bus.MatrixTimeline || !ok || ev.EventID != "$e1" || ev.Content.Body != "hi" || ev.RoomID != "!dm:x" {
		t.Fatalf("first event = %+v", first)
	}
	second := recv(t, ch)
	ev = second.Payload.(protocol.Event)
	if ev.EventID != "$e2" || !ev.StillEncrypted() {
		t.Fatalf("second event = %+v, want encrypted $e2", ev)
	}
	if ev.Decryption.State != protocol.DecryptionFailed || ev.Decryption.Reason != noCryptoReason {
		t.Errorf("decryption = %+v, want failed without crypto", ev.Decryption)
	}
	rooms := recv(t, ch)
	if rooms.Kind != bus.MatrixRooms {
		t.Errorf("third event = %s, want %s", rooms.Kind, bus.MatrixRooms)
	}
}

func TestHandleSyncDecryptsInBackground(t *testing.T) {
	a, b, _ := newTestAdapter(t, "", &fakeCrypto{})
	ch, unsub := b.Subscribe(bus.MatrixDecrypted, 4)
	defer unsub()

	a.handleSync(context.Background(), decodeSync(t, firstSync), "")

	evt := recv(t, ch)
	ev := evt.Payload.(protocol.Event)
	if ev.EventID != "$e2" || ev.StillEncrypted() || ev.Content.Body != "secret" {
		t.Fatalf("decrypted event = %+v", ev)
	}
	if ev.Type != protocol.TypeEncrypted {
		t.Errorf("type = %s, want encrypted kept", ev.Type)
	}
	dm, _ := a.Room("!dm:x")
	if dm.LastEvent == nil || dm.LastEvent.Content.Body != "secret" {
		t.Errorf("preview event = %+v, want decrypted", dm.LastEvent)
	}
}

func TestHandleSyncDecryptionFailure(t *testing.T) {
	a, b, _ := newTestAdapter(t, "", &fakeCrypto{err: errors.New("unknown session")})
	ch, unsub := b.Subscribe(bus.MatrixDecrypted, 4)
	defer unsub()

	a.handleSync(context.Background(), decodeSync(t, firstSync), "")

	ev := recv(t, ch).Payload.(protocol.Event)
	if ev.Decryption.State != protocol.DecryptionFailed || ev.Decryption.Reason != "unknown session" {
		t.Errorf("decryption = %+v", ev.Decryption)
	}
}

func TestConnectionStates(t *testing.T) {
	a, b, m := newTestAdapter(t, "", nil)
	ch, unsub := b.Subscribe("sync.", 8)
	defer unsub()

	a.handleSync(context.Background(), decodeSync(t, firstSync), "")
	a.handleSync(context.Background(), decodeSync(t, `{"next_batch":"s2"}`), "s1")
	if m.Current() != status.Syncing {
		t.Fatalf("state = %s, want SYNCING", m.Current())
	}
	if recv(t, ch).Kind != bus.SyncConnected {
		t.Error("missing sync.connected")
	}

	wait, err := a.onFailedSync(errors.New("connection reset"))
	if err != nil || wait <= 0 {
		t.Fatalf("onFailedSync() = %v, %v", wait, err)
	}
	if m.Current() != status.Reconnecting || m.Reason() != "connection reset" {
		t.Errorf("state = %s (%q), want RECONNECTING", m.Current(), m.Reason())
	}
	if recv(t, ch).Kind != bus.SyncDisconnected {
		t.Error("missing sync.disconnected")
	}
	second, _ := a.onFailedSync(errors.New("connection reset"))
	if second <= 0 {
		t.Errorf("second wait = %v", second)
	}

	a.handleSync(context.Background(), decodeSync(t, `{"next_batch":"s3"}`), "s2")
	if m.Current() != status.Syncing {
		t.Errorf("state = %s after recovery, want SYNCING", m.Current())
	}

	if _, err := a.onFailedSync(mautrix.MUnknownToken); err == nil {
		t.Error("rejected token should stop the sync loop")
	}
}

func TestDirectAccountDataReplacesIndex(t *testing.T) {
	a, _, _ := newTestAdapter(t, "", nil)
	a.handleSync(context.Background(), decodeSync(t, firstSync), "")
	a.handleSync(context.Background(), decodeSync(t, `{"account_data":{"events":[{"type":"m.direct","content":{"@dave:x":["!d:x"]}}]}}`), "s1")

	idx := a.KnownDirect()
	if idx.Contains("!dm:x") || !idx.Contains("!d:x") {
		t.Errorf("direct index = %v", idx)
	}
	idx["@dave:x"][0] = "mutated"
	if !a.KnownDirect().Contains("!d:x") {
		t.Error("KnownDirect() returned shared state")
	}
}

func TestLeaveMarksMembership(t *testing.T) {
	a, _, _ := newTestAdapter(t, "", nil)
	a.handleSync(context.Background(), decodeSync(t, firstSync), "")
	a.handleSync(context.Background(), decodeSync(t, `{"rooms":{"leave":{"!dm:x":{"timeline":{"events":[
		{"type":"m.room.member","state_key":"@me:x","sender":"@me:x","event_id":"$l","origin_server_ts":3000,"content":{"membership":"leave"}}
	]}}}}}`), "s1")

	dm, _ := a.Room("!dm:x")
	if dm.MyMembership != room.Leave {
		t.Errorf("membership = %s, want leave", dm.MyMembership)
	}
	if sums := room.Summaries(a.Rooms(), a.KnownDirect(), room.Options{MyUserID: "@me:x"}); len(sums) != 0 {
		t.Errorf("left room still listed: %+v", sums)
	}
}

func TestSyncerTimelineFilter(t *testing.T) {
	a, _, _ := newTestAdapter(t, "", nil)

	f := newSyncer(a, 20).GetFilterJSON("@me:x")
	if f == nil || f.Room == nil || f.Room.Timeline == nil || f.Room.Timeline.Limit != 20 {
		t.Fatalf("filter = %+v, want a timeline limit of 20", f)
	}
	if def := newSyncer(a, 0).GetFilterJSON("@me:x"); def == nil || def.Room == nil {
		t.Errorf("default filter = %+v", def)
	}
}
