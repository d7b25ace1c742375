package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/errors"
	"github.com/matzehuels/catbits/pkg/observability"
)

const (
	httpTimeout = 30 * time.Second

	// MaxBodySize caps a single response body.
	MaxBodySize = 64 << 20
)

// Client fetches raw bodies over HTTP with retry and caching.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	headers   map[string]string
}

// NewClient creates a Client. A nil cache disables caching; headers are
// applied to every request and may be nil.
func NewClient(c cache.Cache, namespace string, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:      NewHTTPClient(),
		cache:     c,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		headers:   headers,
	}
}

// NewHTTPClient creates an HTTP client with the standard fetch timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// WithHTTPClient replaces the underlying *http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithKeyer replaces the cache keyer.
func (c *Client) WithKeyer(k cache.Keyer) *Client {
	c.keyer = k
	return c
}

// Fetch returns the body at url, consulting the cache first unless refresh
// is set. Transient failures are retried with backoff.
func (c *Client) Fetch(ctx context.Context, url string, refresh bool) ([]byte, error) {
	if err := errors.ValidateURL(url); err != nil {
		return nil, err
	}

	key := c.keyer.HTTPKey(c.namespace, url)
	hooks := observability.Cache()
	if !refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			hooks.OnCacheHit(ctx, key)
			return data, nil
		}
		hooks.OnCacheMiss(ctx, key)
	}

	var body []byte
	err := RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.get(ctx, url)
		return err
	})
	if err != nil {
		if errors.GetCode(err) == "" && ctx.Err() == nil {
			err = errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", url)
		}
		return nil, err
	}

	if err := c.cache.Set(ctx, key, body, cache.TTLHTTP); err == nil {
		hooks.OnCacheSet(ctx, key, len(body))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", url)}
	}
	defer resp.Body.Close()

	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	if err := checkStatus(resp.StatusCode, url); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err == nil && len(body) > MaxBodySize {
		err = fmt.Errorf("body exceeds %d bytes", MaxBodySize)
	}
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "read %s", url)}
	}
	return body, nil
}

func checkStatus(code int, url string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s: status %d", url, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return &RetryableError{Err: errors.New(errors.ErrCodeNetwork, "%s: status %d", url, code)}
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: status %d", url, code)
	}
}
