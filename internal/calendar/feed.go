package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache keeps the last good copy of a feed document.
type Cache interface {
	SaveFeed(ctx context.Context, url, doc string) error
	LoadFeed(ctx context.Context, url string) (string, error)
}

// maxFeedSize caps a downloaded feed; larger documents are rejected.
var maxFeedSize int64 = 8 << 20

// Feed fetches and holds the holiday index for one URL.
type Feed struct {
	url     string
	client  *http.Client
	timeout time.Duration
	cache   Cache
	log     *zap.Logger

	mu    sync.RWMutex
	index Index
}

// NewFeed creates a Feed. cache may be nil.
func NewFeed(url string, client *http.Client, timeout time.Duration, cache Cache, log *zap.Logger) *Feed {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{url: url, client: client, timeout: timeout, cache: cache, log: log, index: Index{}}
}

// Load fetches the feed and replaces the index. A failed fetch falls back to
// the cached copy, and to an empty index when there is none. It never returns
// an error.
func (f *Feed) Load(ctx context.Context) Index {
	if f.url == "" {
		return f.Index()
	}
	doc, err := f.fetch(ctx)
	if err != nil {
		f.log.Warn("holiday feed unavailable", zap.String("url", f.url), zap.Error(err))
		doc = f.cached(ctx)
	} else if f.cache != nil {
		if err := f.cache.SaveFeed(ctx, f.url, doc); err != nil {
			f.log.Warn("cache holiday feed", zap.Error(err))
		}
	}

	idx := Parse(doc)
	f.mu.Lock()
	f.index = idx
	f.mu.Unlock()
	f.log.Info("holiday feed loaded", zap.Int("dates", idx.Len()))
	return idx
}

// Index returns the current index.
func (f *Feed) Index() Index {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.index
}

var errNotCalendar = errors.New("document is not a calendar")

func (f *Feed) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("fetch feed: status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return "", fmt.Errorf("read feed: %w", err)
	}
	if int64(len(body)) > maxFeedSize {
		return "", fmt.Errorf("read feed: larger than %d bytes", maxFeedSize)
	}
	doc := string(body)
	if !strings.Contains(doc, "BEGIN:VCALENDAR") {
		return "", errNotCalendar
	}
	return doc, nil
}

func (f *Feed) cached(ctx context.Context) string {
	if f.cache == nil {
		return ""
	}
	doc, err := f.cache.LoadFeed(ctx, f.url)
	if err != nil {
		f.log.Debug("no cached holiday feed", zap.Error(err))
		return ""
	}
	return doc
}
