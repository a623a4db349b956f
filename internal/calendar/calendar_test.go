package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const newYearFeed = "BEGIN:VCALENDAR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;VALUE=DATE:20240101\r\n" +
	"SUMMARY:New Year\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No date\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseRoundTrip(t *testing.T) {
	idx := Parse(newYearFeed)

	for _, key := range []string{"20240101", "0101"} {
		es := idx[key]
		if len(es) != 1 || es[0].Summary != "New Year" {
			t.Errorf("idx[%q] = %+v, want New Year", key, es)
		}
	}
	if got := idx.Lookup("20310101", "0101"); len(got) != 1 || got[0].Summary != "New Year" {
		t.Errorf("recurring lookup in another year = %+v", got)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (undated block dropped)", idx.Len())
	}
}

func TestParseDropsIncompleteBlocks(t *testing.T) {
	doc := "BEGIN:VEVENT\nDTSTART:20240501\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nSUMMARY:Orphan\nEND:VEVENT\n"
	if idx := Parse(doc); idx.Len() != 0 {
		t.Errorf("Parse() = %+v, want empty", idx)
	}
}

func TestParseUnfoldsAndUnescapes(t *testing.T) {
	doc := "BEGIN:VEVENT\n" +
		"DTSTART:20240421\n" +
		"SUMMARY:Tiradentes\\, feriado\n" +
		"DESCRIPTION:Linha um\\nLinha\n" +
		"  dois\\; fim\\\\n\n" +
		"END:VEVENT\n"
	es := Parse(doc)["20240421"]
	if len(es) != 1 {
		t.Fatalf("got %d entries", len(es))
	}
	if es[0].Summary != "Tiradentes, feriado" {
		t.Errorf("Summary = %q", es[0].Summary)
	}
	if want := "Linha um\nLinha dois; fim\\n"; es[0].Description != want {
		t.Errorf("Description = %q, want %q", es[0].Description, want)
	}
	if es[0].Yearly {
		t.Error("entry without RRULE marked yearly")
	}
}

func TestLookupDedupesExactFirst(t *testing.T) {
	idx := Index{
		"20241225": {{Summary: "Christmas"}, {Summary: "Office closed"}},
		"1225":     {{Summary: "Christmas", Yearly: true}, {Summary: "Boxing eve", Yearly: true}},
	}
	got := idx.On(time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC))
	want := []string{"Christmas", "Office closed", "Boxing eve"}
	if len(got) != len(want) {
		t.Fatalf("On() = %+v", got)
	}
	for i, w := range want {
		if got[i].Summary != w {
			t.Errorf("entry %d = %q, want %q", i, got[i].Summary, w)
		}
	}
	if got[0].Yearly {
		t.Error("exact entry should come before the recurring duplicate")
	}
}

func TestMonth(t *testing.T) {
	idx := Parse(newYearFeed)
	m := idx.Month(2030, time.January)
	if len(m) != 1 || m[1][0].Summary != "New Year" {
		t.Errorf("Month() = %+v", m)
	}
	if len(idx.Month(2030, time.February)) != 0 {
		t.Error("February should be empty")
	}
}

type memCache struct {
	docs map[string]string
}

func (c *memCache) SaveFeed(_ context.Context, url, doc string) error {
	c.docs[url] = doc
	return nil
}

func (c *memCache) LoadFeed(_ context.Context, url string) (string, error) {
	doc, ok := c.docs[url]
	if !ok {
		return "", errors.New("not cached")
	}
	return doc, nil
}

func TestFeedLoadCachesAndFallsBack(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(newYearFeed))
	}))
	defer srv.Close()

	cache := &memCache{docs: map[string]string{}}
	f := NewFeed(srv.URL, srv.Client(), time.Second, cache, zap.NewNop())

	if idx := f.Load(context.Background()); len(idx["0101"]) != 1 {
		t.Fatalf("first load = %+v", idx)
	}
	if cache.docs[srv.URL] == "" {
		t.Fatal("feed not cached after a good fetch")
	}

	down.Store(true)
	if idx := f.Load(context.Background()); len(idx["0101"]) != 1 {
		t.Errorf("fallback load = %+v, want cached entries", idx)
	}
}

func TestFeedFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a calendar</html>"))
	}))
	defer srv.Close()

	f := NewFeed(srv.URL, srv.Client(), time.Second, nil, nil)
	if idx := f.Load(context.Background()); idx.Len() != 0 {
		t.Errorf("Load() = %+v, want empty", idx)
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()
	f = NewFeed(slow.URL, slow.Client(), 50*time.Millisecond, nil, nil)
	if idx := f.Load(context.Background()); idx.Len() != 0 {
		t.Errorf("timed out Load() = %+v, want empty", idx)
	}
}

func TestFeedRejectsOversizedDocument(t *testing.T) {
	defer func(n int64) { maxFeedSize = n }(maxFeedSize)
	maxFeedSize = int64(len(newYearFeed))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Still a valid calendar when cut at the limit.
		_, _ = w.Write([]byte(newYearFeed + "X-TRAILER:padding\r\n"))
	}))
	defer srv.Close()

	f := NewFeed(srv.URL, srv.Client(), time.Second, nil, zap.NewNop())
	if idx := f.Load(context.Background()); idx.Len() != 0 {
		t.Errorf("Load() = %+v, want an oversized feed rejected", idx)
	}
}
