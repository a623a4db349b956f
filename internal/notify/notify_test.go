package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func TestShouldNotify(t *testing.T) {
	g := Gate{MyUserID: "@me:x"}
	fromR := protocol.Event{RoomID: "!r", SenderID: "@bob:x"}
	mine := protocol.Event{RoomID: "!s", SenderID: "@me:x"}

	tests := []struct {
		name    string
		ev      protocol.Event
		current string
		focus   bool
		want    bool
	}{
		{"open and focused", fromR, "!r", true, false},
		{"open but unfocused", fromR, "!r", false, true},
		{"other room open", fromR, "!s", true, true},
		{"nothing open", fromR, "", true, true},
		{"own message elsewhere", mine, "!r", false, false},
		{"own message unfocused", mine, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ShouldNotify(tt.ev, tt.current, tt.focus); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnreadZeroOverridesServer(t *testing.T) {
	u := NewUnread()
	u.Observe("!r", 4)
	u.Observe("!s", 2)
	if u.Total() != 6 {
		t.Fatalf("Total() = %d, want 6", u.Total())
	}

	u.Zero("!r")
	u.Observe("!r", 4) // stale server count from before the receipt landed
	if got := u.Count("!r"); got != 0 {
		t.Errorf("Count after zero = %d, want 0", got)
	}

	u.Touch("!r")
	u.Observe("!r", 1)
	if got := u.Count("!r"); got != 1 {
		t.Errorf("Count after new event = %d, want 1", got)
	}

	u.Zero("!s")
	u.Observe("!s", 0)
	u.Observe("!s", 3)
	if got := u.Count("!s"); got != 3 {
		t.Errorf("Count after server reset = %d, want 3", got)
	}
}

type fakeAcker struct {
	receiptErr error
	markerErr  error
	receipts   atomic.Int32
	markers    atomic.Int32
}

func (f *fakeAcker) SendReadReceipt(ctx context.Context, roomID, eventID string) error {
	f.receipts.Add(1)
	return f.receiptErr
}

func (f *fakeAcker) SetRoomReadMarkers(ctx context.Context, roomID, eventID string) error {
	f.markers.Add(1)
	return f.markerErr
}

func TestMarkReadZeroesRegardlessOfAckFailure(t *testing.T) {
	tests := []struct {
		name      string
		receipt   error
		marker    error
		wantErrs  int
		wantCount int
	}{
		{"both succeed", nil, nil, 0, 0},
		{"receipt fails", errors.New("boom"), nil, 1, 0},
		{"marker fails", nil, errors.New("boom"), 1, 0},
		{"both fail", errors.New("a"), errors.New("b"), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUnread()
			u.Observe("!r", 7)
			acker := &fakeAcker{receiptErr: tt.receipt, markerErr: tt.marker}
			m := NewMarker(u, acker, time.Second, zaptest.NewLogger(t))

			err := m.MarkRead(context.Background(), "!r", "$latest")
			if got := len(multierr.Errors(err)); got != tt.wantErrs {
				t.Errorf("got %d errors (%v), want %d", got, err, tt.wantErrs)
			}
			if u.Count("!r") != tt.wantCount {
				t.Errorf("Count() = %d, want 0", u.Count("!r"))
			}
			if acker.receipts.Load() != 1 || acker.markers.Load() != 1 {
				t.Errorf("receipts=%d markers=%d, want one of each", acker.receipts.Load(), acker.markers.Load())
			}
		})
	}
}

func TestMarkReadWithoutEventOnlyZeroes(t *testing.T) {
	u := NewUnread()
	u.Observe("!r", 2)
	acker := &fakeAcker{}
	if err := NewMarker(u, acker, 0, nil).MarkRead(context.Background(), "!r", ""); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if u.Count("!r") != 0 || acker.receipts.Load() != 0 {
		t.Errorf("count=%d receipts=%d", u.Count("!r"), acker.receipts.Load())
	}
}

func TestBuildAndDigest(t *testing.T) {
	snap := room.Snapshot{
		ID: "!dm", JoinedCount: 2,
		Members: []room.Member{{UserID: "@bob:x", DisplayName: "Bob", Membership: room.Join}},
	}
	ev := protocol.Event{RoomID: "!dm", SenderID: "@bob:x", Type: protocol.TypeMessage, Content: protocol.Content{Body: "ping"}}
	n := Build(ev, snap, nil, "@me:x")
	if n.RoomName != "Bob" || n.SenderName != "Bob" || n.Body != "ping" {
		t.Errorf("Build() = %+v", n)
	}

	got := Digest([]room.Summary{
		{RoomID: "a", UnreadCount: 1},
		{RoomID: "b"},
		{RoomID: "c", UnreadCount: 5},
	})
	if len(got) != 2 || got[0].RoomID != "c" || got[1].RoomID != "a" {
		t.Errorf("Digest() = %+v", got)
	}
}
