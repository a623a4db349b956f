package matrix

import (
	"encoding/json"
	"testing"

	"github.com/matheus3301/typec/internal/protocol"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

func rawEvent(t *testing.T, doc string) *event.Event {
	t.Helper()
	var evt event.Event
	if err := json.Unmarshal([]byte(doc), &evt); err != nil {
		t.Fatal(err)
	}
	return &evt
}

func TestToProtocol(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		want   protocol.Event
		wantOK bool
	}{
		{
			name:   "text",
			doc:    `{"type":"m.room.message","event_id":"$1","sender":"@a:x","origin_server_ts":5,"content":{"msgtype":"m.text","body":"hello"}}`,
			want:   protocol.Event{EventID: "$1", RoomID: "!r:x", SenderID: "@a:x", Type: protocol.TypeMessage, Timestamp: 5, Content: protocol.Content{Body: "hello", MsgType: "m.text"}},
			wantOK: true,
		},
		{
			name: "image",
			doc:  `{"type":"m.room.message","event_id":"$2","sender":"@a:x","origin_server_ts":6,"content":{"msgtype":"m.image","body":"cat.png","url":"mxc://x/cat","info":{"mimetype":"image/png","size":42}}}`,
			want: protocol.Event{EventID: "$2", RoomID: "!r:x", SenderID: "@a:x", Type: protocol.TypeMessage, Timestamp: 6,
				Content: protocol.Content{Body: "cat.png", MsgType: "m.image", MediaURL: "mxc://x/cat", MimeType: "image/png", Size: 42}},
			wantOK: true,
		},
		{
			name:   "own echo carries the transaction id",
			doc:    `{"type":"m.room.message","event_id":"$3","sender":"@me:x","origin_server_ts":7,"content":{"msgtype":"m.text","body":"sent"},"unsigned":{"transaction_id":"txn1"}}`,
			want:   protocol.Event{EventID: "$3", TransactionID: "txn1", RoomID: "!r:x", SenderID: "@me:x", Type: protocol.TypeMessage, Timestamp: 7, Content: protocol.Content{Body: "sent", MsgType: "m.text"}},
			wantOK: true,
		},
		{
			name:   "encrypted",
			doc:    `{"type":"m.room.encrypted","event_id":"$4","sender":"@a:x","origin_server_ts":8,"content":{"algorithm":"m.megolm.v1.aes-sha2"}}`,
			want:   protocol.Event{EventID: "$4", RoomID: "!r:x", SenderID: "@a:x", Type: protocol.TypeEncrypted, Timestamp: 8},
			wantOK: true,
		},
		{
			name: "state event",
			doc:  `{"type":"m.room.name","state_key":"","event_id":"$5","sender":"@a:x","origin_server_ts":9,"content":{"name":"n"}}`,
		},
		{
			name: "reaction",
			doc:  `{"type":"m.reaction","event_id":"$6","sender":"@a:x","origin_server_ts":9,"content":{}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toProtocol(id.RoomID("!r:x"), rawEvent(t, tt.doc))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("toProtocol() = %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestFileNameUsedForFiles(t *testing.T) {
	evt := rawEvent(t, `{"type":"m.room.message","event_id":"$1","sender":"@a:x","origin_server_ts":1,
		"content":{"msgtype":"m.file","body":"see attached","filename":"report.pdf","url":"mxc://x/r","info":{"mimetype":"application/pdf"}}}`)
	got, _ := toProtocol("!r:x", evt)
	if got.Content.Body != "report.pdf" || got.Content.MediaURL != "mxc://x/r" {
		t.Errorf("content = %+v", got.Content)
	}
}
