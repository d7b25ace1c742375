package source

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/catbits/pkg/httputil"
)

// DefaultPrefetch is the default number of concurrent downloads.
const DefaultPrefetch = 4

// Remote yields images downloaded over HTTP.
//
// Items are always yielded in input order. Without [Remote.Prefetch] each
// download happens inside Next; with it, downloads run ahead concurrently
// and Next waits for the item it needs.
type Remote struct {
	client  *httputil.Client
	urls    []string
	refresh bool
	pos     int

	mu       sync.Mutex
	slots    []chan fetched
	cancel   context.CancelFunc
	group    *errgroup.Group
	launched chan struct{}
}

type fetched struct {
	data []byte
	err  error
}

// URLs creates a remote source over the given URLs.
func URLs(client *httputil.Client, urls []string) *Remote {
	return &Remote{client: client, urls: urls}
}

// WithRefresh bypasses the HTTP cache.
func (r *Remote) WithRefresh(refresh bool) *Remote {
	r.refresh = refresh
	return r
}

// Prefetch starts downloading every URL in the background with at most n
// requests in flight. It must be called before the first Next.
func (r *Remote) Prefetch(ctx context.Context, n int) {
	if n <= 0 {
		n = DefaultPrefetch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	r.cancel = cancel
	r.group = g
	r.launched = make(chan struct{})
	r.slots = make([]chan fetched, len(r.urls))
	for i := range r.slots {
		r.slots[i] = make(chan fetched, 1)
	}

	go func() {
		defer close(r.launched)
		for i, url := range r.urls {
			slot := r.slots[i]
			g.Go(func() error {
				data, err := r.client.Fetch(ctx, url, r.refresh)
				slot <- fetched{data: data, err: err}
				// Per-item failures are reported through Next.
				return nil
			})
		}
	}()
}

// Next returns the next downloaded image.
func (r *Remote) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if r.pos >= len(r.urls) {
		return Item{}, io.EOF
	}
	i := r.pos
	r.pos++
	item := Item{Name: r.urls[i]}

	r.mu.Lock()
	slots := r.slots
	r.mu.Unlock()

	var f fetched
	if slots == nil {
		f.data, f.err = r.client.Fetch(ctx, item.Name, r.refresh)
	} else {
		select {
		case f = <-slots[i]:
		case <-ctx.Done():
			return item, ctx.Err()
		}
	}
	if f.err != nil {
		return item, f.err
	}
	item.Data = f.data
	return item, nil
}

// Len returns the number of URLs.
func (r *Remote) Len() int { return len(r.urls) }

// Close stops outstanding downloads.
func (r *Remote) Close() error {
	r.mu.Lock()
	cancel, g, launched := r.cancel, r.group, r.launched
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-launched
	return g.Wait()
}

var _ Source = (*Remote)(nil)
