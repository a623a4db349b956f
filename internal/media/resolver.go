// Package media downloads content referenced by mxc:// URIs, trying a list
// of endpoint templates in order.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"
	"go.uber.org/zap"
	"maunium.net/go/mautrix/id"
)

// ErrNotFound is returned when no endpoint served the media.
var ErrNotFound = errors.New("media not found")

// ErrInvalidRef is returned for references that are not mxc://server/id.
var ErrInvalidRef = errors.New("invalid media reference")

// DefaultTemplates are the download endpoints tried when none are configured:
// authenticated v1, legacy v3 and r0, client v3, then a scaled thumbnail.
var DefaultTemplates = []string{
	"{+homeserver}/_matrix/client/v1/media/download/{server}/{media_id}",
	"{+homeserver}/_matrix/media/v3/download/{server}/{media_id}",
	"{+homeserver}/_matrix/media/r0/download/{server}/{media_id}",
	"{+homeserver}/_matrix/client/v3/media/download/{server}/{media_id}",
	"{+homeserver}/_matrix/media/v3/thumbnail/{server}/{media_id}?width=1000&height=1000&method=scale",
}

// maxMediaSize caps one download; larger content is treated as a failure.
var maxMediaSize int64 = 50 << 20

// ErrTooLarge is returned when an endpoint serves more than maxMediaSize.
var ErrTooLarge = errors.New("media too large")

// Ref is a parsed mxc:// reference.
type Ref = id.ContentURI

// ParseRef parses "mxc://server/id", rejecting empty or malformed parts.
func ParseRef(s string) (Ref, error) {
	ref, err := id.ParseContentURI(s)
	if err != nil || !ref.IsValid() {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	return ref, nil
}

// Resolver fetches media with bearer authentication.
type Resolver struct {
	homeserver string
	token      string
	templates  []*uritemplate.Template
	client     *http.Client
	timeout    time.Duration
	log        *zap.Logger
}

// Options configures a Resolver.
type Options struct {
	Homeserver  string
	AccessToken string
	Templates   []string // defaults to DefaultTemplates
	Client      *http.Client
	Timeout     time.Duration // per attempt
	Logger      *zap.Logger
}

// NewResolver compiles the endpoint templates.
func NewResolver(opts Options) (*Resolver, error) {
	srcs := opts.Templates
	if len(srcs) == 0 {
		srcs = DefaultTemplates
	}
	tmpls := make([]*uritemplate.Template, 0, len(srcs))
	for _, src := range srcs {
		t, err := uritemplate.New(src)
		if err != nil {
			return nil, fmt.Errorf("media template %q: %w", src, err)
		}
		tmpls = append(tmpls, t)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		homeserver: strings.TrimRight(opts.Homeserver, "/"),
		token:      opts.AccessToken,
		templates:  tmpls,
		client:     opts.Client,
		timeout:    opts.Timeout,
		log:        opts.Logger,
	}, nil
}

// URLs returns the candidate download URLs for ref, in order.
func (r *Resolver) URLs(ref Ref) ([]string, error) {
	vals := uritemplate.Values{}
	vals.Set("homeserver", uritemplate.String(r.homeserver))
	vals.Set("server", uritemplate.String(ref.Homeserver))
	vals.Set("media_id", uritemplate.String(ref.FileID))

	urls := make([]string, 0, len(r.templates))
	for _, t := range r.templates {
		u, err := t.Expand(vals)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", t.Raw(), err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// ResolveMedia downloads the content behind an mxc:// reference. Each
// endpoint gets its own timeout; the first 2xx response wins.
func (r *Resolver) ResolveMedia(ctx context.Context, mxc string) ([]byte, error) {
	ref, err := ParseRef(mxc)
	if err != nil {
		return nil, err
	}
	urls, err := r.URLs(ref)
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := r.try(ctx, u)
		if err == nil {
			return data, nil
		}
		r.log.Debug("media endpoint failed", zap.String("url", u), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, mxc)
}

func (r *Resolver) try(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxMediaSize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxMediaSize)
	}
	return data, nil
}
