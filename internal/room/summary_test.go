package room

import (
	"testing"

	"github.com/matheus3301/typec/internal/protocol"
)

const me = "@me:x"

func testRooms() []Snapshot {
	return []Snapshot{
		{
			ID: "!dm", MyMembership: Join, JoinedCount: 2, UnreadCount: 3,
			Members: []Member{
				{UserID: me, Membership: Join},
				{UserID: "@bob:x", DisplayName: "Bob", Membership: Join},
			},
			LastEvent: &protocol.Event{Type: protocol.TypeMessage, Content: protocol.Content{Body: "hi"}, Timestamp: 10},
		},
		{
			ID: "!group", Name: "Team", MyMembership: Join, JoinedCount: 4,
			LastEvent: &protocol.Event{Type: protocol.TypeEncrypted, Decryption: protocol.Decryption{State: protocol.DecryptionFailed}},
		},
		{ID: "!invite", Name: "Party", MyMembership: Invite, Inviter: "@carol:x", JoinedCount: 3},
		{ID: "!left", MyMembership: Leave, JoinedCount: 2},
	}
}

func TestSummariesByTab(t *testing.T) {
	rooms := testRooms()

	dms := Summaries(rooms, nil, Options{MyUserID: me, Tab: TabDMs})
	if len(dms) != 1 || dms[0].RoomID != "!dm" {
		t.Fatalf("dms = %+v, want only !dm", dms)
	}
	if dms[0].DisplayName != "Bob" {
		t.Errorf("dm name = %q, want Bob (counterpart)", dms[0].DisplayName)
	}
	if dms[0].LastMessagePreview != "hi" {
		t.Errorf("preview = %q, want hi", dms[0].LastMessagePreview)
	}

	groups := Summaries(rooms, nil, Options{MyUserID: me, Tab: TabRooms})
	if len(groups) != 1 || groups[0].RoomID != "!group" {
		t.Fatalf("groups = %+v, want only !group", groups)
	}
	if groups[0].LastMessagePreview != "[encrypted]" {
		t.Errorf("encrypted preview = %q", groups[0].LastMessagePreview)
	}

	invites := Summaries(rooms, nil, Options{MyUserID: me, Tab: TabInvites})
	if len(invites) != 1 || !invites[0].Invited || invites[0].Inviter != "@carol:x" {
		t.Fatalf("invites = %+v", invites)
	}
}

func TestSummariesActiveSuppressesBadge(t *testing.T) {
	sums := Summaries(testRooms(), nil, Options{MyUserID: me, ActiveRoomID: "!dm", Tab: TabDMs})
	if len(sums) != 1 {
		t.Fatalf("got %d summaries", len(sums))
	}
	if !sums[0].IsActive {
		t.Error("IsActive = false for selected room")
	}
	if sums[0].ShowBadge() {
		t.Error("active room should not show an unread badge")
	}
}

func TestDisplayNameFallbacks(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"explicit", Snapshot{Name: "Lobby", JoinedCount: 9}, "Lobby"},
		{"alias", Snapshot{CanonicalAlias: "#lobby:x", JoinedCount: 9}, "#lobby:x"},
		{"dm localpart", Snapshot{JoinedCount: 2, Members: []Member{{UserID: "@dave:x", Membership: Join}}}, "dave"},
		{"dm counterpart before alias", Snapshot{CanonicalAlias: "#dm:x", JoinedCount: 2, Members: []Member{{UserID: "@dave:x", DisplayName: "Dave", Membership: Join}}}, "Dave"},
		{"dm waiting for invitee", Snapshot{JoinedCount: 1, InvitedCount: 1, Members: []Member{{UserID: me, Membership: Join}}}, unnamedRoom},
		{"nothing", Snapshot{JoinedCount: 5}, unnamedRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.snap, nil, me); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindExistingDM(t *testing.T) {
	id, ok := FindExistingDM(testRooms(), nil, "@bob:x")
	if !ok || id != "!dm" {
		t.Errorf("FindExistingDM(bob) = %q, %v", id, ok)
	}
	if _, ok := FindExistingDM(testRooms(), nil, "@zoe:x"); ok {
		t.Error("FindExistingDM(zoe) should not match")
	}
}

func TestFilterIgnoresCase(t *testing.T) {
	sums := []Summary{{DisplayName: "Straße Crew"}, {DisplayName: "Bob"}}
	got := Filter(sums, "CREW")
	if len(got) != 1 || got[0].DisplayName != "Straße Crew" {
		t.Errorf("Filter() = %+v", got)
	}
	if len(Filter(sums, "")) != 2 {
		t.Error("empty query should keep everything")
	}
}

func TestParseTab(t *testing.T) {
	if ParseTab("Rooms") != TabRooms || ParseTab("invites") != TabInvites || ParseTab("?") != TabDMs {
		t.Error("ParseTab mapping wrong")
	}
}
