package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/app"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/calendar"
	"github.com/matheus3301/typec/internal/lock"
	"github.com/matheus3301/typec/internal/matrix"
	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/status"
	"github.com/matheus3301/typec/internal/store"
	"github.com/matheus3301/typec/internal/tui/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var _ app.Client = (*matrix.Adapter)(nil)

type stack struct {
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	session *app.Session
	feed    *calendar.Feed
}

// newStack wires the daemon components the way the fx module does, with a
// homeserver that is never contacted.
func newStack(t *testing.T, sessionDir string) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := store.Open(filepath.Join(sessionDir, "typec.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	machine := status.NewMachine(b)
	adapter, err := matrix.NewAdapter(matrix.Options{
		Homeserver:  "http://127.0.0.1:1",
		UserID:      "@me:example.org",
		AccessToken: "token",
		Store:       db,
		Bus:         b,
		Machine:     machine,
		Logger:      logger,
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	sess := app.New(app.Options{Client: adapter, DB: db, Bus: b, Logger: logger, Timeout: time.Second})
	t.Cleanup(sess.Close)

	return &stack{
		db:      db,
		bus:     b,
		machine: machine,
		session: sess,
		feed:    calendar.NewFeed("", nil, time.Second, db, logger),
	}
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "typec-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionName := "test"
	sessionDir := filepath.Join(tmpDir, sessionName)
	socketPath := filepath.Join(sessionDir, "d.sock")

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	s := newStack(t, sessionDir)

	srv, err := NewServer(
		Params{SessionName: sessionName, SocketPath: socketPath},
		zap.NewNop(),
		api.NewSessionService(sessionName, "@me:example.org", s.machine, s.session),
		api.NewSyncService(sessionName, s.machine, s.bus, s.db, nil),
		api.NewRoomService(s.session),
		api.NewMessageService(s.session, s.db),
		api.NewCalendarService(s.feed),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Session.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if resp.Session != sessionName {
		t.Errorf("session = %q, want %q", resp.Session, sessionName)
	}
	if resp.State != string(status.Booting) || resp.Online {
		t.Errorf("state = %s online=%v, want BOOTING offline", resp.State, resp.Online)
	}

	syncResp, err := c.Sync.GetSyncStatus(ctx)
	if err != nil {
		t.Fatalf("GetSyncStatus error = %v", err)
	}
	if syncResp.Online || syncResp.LastEventTs != "" {
		t.Errorf("sync status = %+v", syncResp)
	}

	rooms, err := c.Rooms.ListRooms(ctx, "dms", "")
	if err != nil {
		t.Fatalf("ListRooms error = %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("expected 0 rooms, got %d", len(rooms))
	}

	// Before the first sync the room list comes from the cache.
	if err := s.db.UpsertRoom(store.RoomRow{RoomID: "!dm", Name: "Alice", Classification: "dm", Membership: "join", UnreadCount: 3, LastMessageAt: 1000, LastMessagePreview: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := s.db.UpsertRoom(store.RoomRow{RoomID: "!g", Name: "Ops", Classification: "group", Membership: "join"}); err != nil {
		t.Fatal(err)
	}
	rooms, err = c.Rooms.ListRooms(ctx, "dms", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].Name != "Alice" || rooms[0].Unread != 3 {
		t.Errorf("cached dms = %+v", rooms)
	}
	groups, err := c.Rooms.ListRooms(ctx, "rooms", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].RoomID != "!g" {
		t.Errorf("cached groups = %+v", groups)
	}

	if err := s.db.UpsertEvent(protocol.Event{
		RoomID: "!dm", EventID: "$1", SenderID: "@alice:example.org", Type: protocol.TypeMessage,
		Timestamp: 1000, Content: protocol.Content{Body: "hello world", MsgType: protocol.MsgText},
	}); err != nil {
		t.Fatal(err)
	}
	hits, err := c.Messages.Search(ctx, "hello", "", 10)
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}
	if len(hits) != 1 || hits[0].EventID != "$1" {
		t.Errorf("hits = %+v", hits)
	}

	// The sync client has not seen the room yet.
	if _, err := c.Rooms.SelectRoom(ctx, "!dm"); grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("SelectRoom error = %v, want NotFound", err)
	}
	if _, err := c.Messages.Send(ctx, "", "hi"); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("Send error = %v, want FailedPrecondition", err)
	}

	day, err := c.Calendar.Holidays(ctx, "2030-01-01")
	if err != nil {
		t.Fatalf("Holidays error = %v", err)
	}
	if len(day.Holidays) != 0 {
		t.Errorf("holidays without a feed = %+v", day.Holidays)
	}
}

// TestStatusFollowsSyncStates verifies the status endpoint reflects the
// connection states the sync loop moves through.
func TestStatusFollowsSyncStates(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "typec-status-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	s := newStack(t, tmpDir)

	grpcSrv := grpc.NewServer()
	api.RegisterSessionServer(grpcSrv, api.NewSessionService("test", "@me:example.org", s.machine, s.session))

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = grpcSrv.Serve(listener) }()
	defer grpcSrv.GracefulStop()

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	steps := []struct {
		to     status.State
		reason string
		online bool
	}{
		{status.Connecting, "", false},
		{status.Prepared, "", true},
		{status.Syncing, "", true},
		{status.Reconnecting, "connection reset", false},
		{status.Connecting, "", false},
		{status.Syncing, "", true},
	}
	for _, step := range steps {
		if err := s.machine.TransitionWithReason(step.to, step.reason); err != nil {
			t.Fatal(err)
		}
		resp, err := c.Session.GetStatus(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if resp.State != string(step.to) || resp.Online != step.online || resp.Reason != step.reason {
			t.Errorf("status = %+v, want %s online=%v reason=%q", resp, step.to, step.online, step.reason)
		}
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{SessionName: "fxtest"})); err != nil {
		t.Fatalf("fx graph: %v", err)
	}

	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "typec-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	s := newStack(t, tmpDir)

	// NewServer takes Params, not a bare string fx cannot resolve.
	p := Params{SessionName: "fxtest", SocketPath: socketPath}
	srv, err := NewServer(
		p,
		zap.NewNop(),
		api.NewSessionService("fxtest", "", s.machine, s.session),
		api.NewSyncService("fxtest", s.machine, s.bus, nil, nil),
		api.NewRoomService(s.session),
		api.NewMessageService(s.session, s.db),
		api.NewCalendarService(s.feed),
	)
	if err != nil {
		t.Fatalf("NewServer() with Params failed: %v", err)
	}

	// The socket is created inside the temp dir, not ~/.typec.
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}

	srv.Stop(context.Background())
	if _, statErr := os.Stat(socketPath); !os.IsNotExist(statErr) {
		t.Errorf("socket left behind after Stop: %v", statErr)
	}
}

// TestStopClosesWatchers verifies shutdown is not held up by a client that
// keeps an event stream open.
func TestStopClosesWatchers(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "typec-stop-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	s := newStack(t, tmpDir)
	srv, err := NewServer(
		Params{SessionName: "stop", SocketPath: socketPath},
		zaptest.NewLogger(t),
		api.NewSessionService("stop", "", s.machine, s.session),
		api.NewSyncService("stop", s.machine, s.bus, s.db, nil),
		api.NewRoomService(s.session),
		api.NewMessageService(s.session, s.db),
		api.NewCalendarService(s.feed),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	base := s.bus.Subscribers()
	recv, err := c.Sync.WatchEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for deadline := time.Now().Add(5 * time.Second); s.bus.Subscribers() == base; {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.bus.Publish(bus.NewEvent(bus.RoomsChanged, nil))
	if env, err := recv.Recv(); err != nil || env.Kind != bus.RoomsChanged {
		t.Fatalf("Recv() = %+v, %v", env, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		srv.Stop(ctx)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() blocked on an open event stream")
	}
}
