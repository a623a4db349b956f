package protocol

import "testing"

func TestEventKey(t *testing.T) {
	tests := []struct {
		name string
		evt  Event
		want string
	}{
		{"event id wins", Event{EventID: "$e1", TransactionID: "t1"}, "$e1"},
		{"local echo", Event{TransactionID: "t1"}, "t1"},
		{"empty", Event{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStillEncrypted(t *testing.T) {
	tests := []struct {
		evt  Event
		want bool
	}{
		{Event{Type: TypeMessage}, false},
		{Event{Type: TypeEncrypted, Decryption: Decryption{State: DecryptionPending}}, true},
		{Event{Type: TypeEncrypted, Decryption: Decryption{State: DecryptionFailed}}, true},
		{Event{Type: TypeEncrypted, Decryption: Decryption{State: DecryptionSucceeded}}, false},
	}
	for _, tt := range tests {
		if got := tt.evt.StillEncrypted(); got != tt.want {
			t.Errorf("StillEncrypted(%s/%s) = %v, want %v", tt.evt.Type, tt.evt.Decryption.State, got, tt.want)
		}
	}
}

func TestIsLocalEcho(t *testing.T) {
	if !(Event{TransactionID: "t"}).IsLocalEcho() {
		t.Error("event with only a transaction id should be a local echo")
	}
	if (Event{EventID: "$e", TransactionID: "t"}).IsLocalEcho() {
		t.Error("acknowledged event should not be a local echo")
	}
}
