// Package cache provides byte caches for fetched images and pipeline results.
//
// Three implementations share the [Cache] interface:
//   - [FileCache]: zstd-compressed entries under a directory (CLI default)
//   - [RedisCache]: a shared redis instance (server deployments)
//   - [NullCache]: caching disabled
//
// Keys are produced by a [Keyer] so that every option affecting a result
// is part of its key. A cache failure is never fatal to the pipeline: the
// runner treats read errors as misses and ignores write errors.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Time-to-live values per entry kind.
const (
	TTLHTTP   = 24 * time.Hour
	TTLResult = 7 * 24 * time.Hour
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key; hit is false on a miss or expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Open selects a cache from a URL:
//   - "" or "file": FileCache in dir
//   - "none" or "off": NullCache
//   - "redis://..." or "rediss://...": RedisCache
func Open(url, dir string) (Cache, error) {
	switch {
	case url == "" || url == "file":
		return NewFileCache(dir)
	case url == "none" || url == "off":
		return NewNullCache(), nil
	case strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://"):
		c, err := NewRedisCache(url, "catbits:")
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache %q (want file, none or redis://...)", url)
	}
}
