package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/status"
	"go.uber.org/zap/zaptest"
	"maunium.net/go/mautrix/event"
)

func newEncryptedAdapter(t *testing.T) (*Adapter, *bus.Bus, *fakeHomeserver) {
	t.Helper()
	hs := &fakeHomeserver{}
	srv := httptest.NewServer(hs)
	t.Cleanup(srv.Close)

	b := bus.New()
	m := status.NewMachine(b)
	if err := m.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	a, err := NewAdapter(Options{
		Homeserver:  srv.URL,
		UserID:      "@me:x",
		AccessToken: "tok",
		DeviceID:    "DEV",
		Bus:         b,
		Machine:     m,
		Logger:      zaptest.NewLogger(t),
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	key, err := LoadPickleKey(filepath.Join(dir, "pickle.key"))
	if err != nil {
		t.Fatal(err)
	}
	closer, err := a.EnableEncryption(context.Background(), key, filepath.Join(dir, "crypto.db"))
	if err != nil {
		t.Fatalf("EnableEncryption() = %v", err)
	}
	t.Cleanup(func() { _ = closer.Close() })
	return a, b, hs
}

func TestEnableEncryptionUploadsDeviceKeys(t *testing.T) {
	a, _, hs := newEncryptedAdapter(t)

	if !hs.saw("/keys/upload") {
		t.Error("device keys were not uploaded for a new account")
	}
	a.handleSync(context.Background(), decodeSync(t, firstSync), "")
	if !a.IsEncryptionActive("!dm:x") {
		t.Error("encryption inactive with the Olm machine loaded")
	}
}

func TestEnableEncryptionNeedsDevice(t *testing.T) {
	a, _, _ := newTestAdapter(t, "", nil)
	if _, err := a.EnableEncryption(context.Background(), []byte("k"), filepath.Join(t.TempDir(), "crypto.db")); err == nil {
		t.Fatal("EnableEncryption() = nil without a device id")
	}
	if a.crypto != nil {
		t.Error("crypto backend set after a failed setup")
	}
}

func TestMachineReportsUndecryptableEvent(t *testing.T) {
	a, b, _ := newEncryptedAdapter(t)
	timeline, unsubT := b.Subscribe(bus.MatrixTimeline, 8)
	defer unsubT()
	decrypted, unsubD := b.Subscribe(bus.MatrixDecrypted, 8)
	defer unsubD()

	// Run the whole syncer so the machine sees the events, not just handleSync.
	if err := a.client.Syncer.ProcessResponse(context.Background(), decodeSync(t, firstSync), ""); err != nil {
		t.Fatal(err)
	}

	var placeholder protocol.Event
	for placeholder.EventID != "$e2" {
		placeholder = recv(t, timeline).Payload.(protocol.Event)
	}
	if placeholder.Decryption.State != protocol.DecryptionPending {
		t.Errorf("placeholder = %+v, want pending", placeholder.Decryption)
	}

	// No room key was ever shared, so the machine gives up on the first sync.
	ev := recv(t, decrypted).Payload.(protocol.Event)
	if ev.EventID != "$e2" || ev.Decryption.State != protocol.DecryptionFailed || ev.Decryption.Reason == "" {
		t.Errorf("decrypted = %+v, want failure with a reason", ev)
	}
}

func TestArrivingKeysRepublishEvent(t *testing.T) {
	a, b, _ := newEncryptedAdapter(t)
	ch, unsub := b.Subscribe(bus.MatrixDecrypted, 4)
	defer unsub()
	a.handleSync(context.Background(), decodeSync(t, firstSync), "")

	// The machine hands back the plaintext once the session shows up.
	plain := &event.Event{
		ID:        "$e2",
		RoomID:    "!dm:x",
		Sender:    "@bob:x",
		Type:      event.EventMessage,
		Timestamp: 2000,
		Content:   event.Content{VeryRaw: json.RawMessage(`{"msgtype":"m.text","body":"late"}`)},
	}
	a.onDecrypted(context.Background(), plain)

	ev := recv(t, ch).Payload.(protocol.Event)
	if ev.EventID != "$e2" || ev.StillEncrypted() || ev.Content.Body != "late" {
		t.Fatalf("decrypted = %+v", ev)
	}
	dm, _ := a.Room("!dm:x")
	if dm.LastEvent == nil || dm.LastEvent.Content.Body != "late" {
		t.Errorf("preview = %+v, want the decrypted body", dm.LastEvent)
	}
}

func TestLoadPickleKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s", "pickle.key")
	first, err := LoadPickleKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(first))
	}
	again, err := LoadPickleKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, again) {
		t.Error("second load generated a new key")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 0600", perm)
	}

	empty := filepath.Join(t.TempDir(), "empty.key")
	if err := os.WriteFile(empty, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPickleKey(empty); err == nil {
		t.Error("LoadPickleKey() accepted an empty key file")
	}
}
