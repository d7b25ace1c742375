package cache

import (
	"context"
	"time"
)

// NullCache backs --cache none and --no-cache. Every lookup misses, so
// each image is downloaded, decoded and run through the stages again.
// It is also what a Runner falls back to when given no cache.
type NullCache struct{}

// NewNullCache returns a NullCache.
func NewNullCache() Cache { return &NullCache{} }

func (*NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*NullCache) Delete(context.Context, string) error { return nil }

func (*NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
