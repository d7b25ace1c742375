package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()

	payload := []byte(strings.Repeat("bits", 1000))
	if err := c.Set(ctx, "result:abc", payload, time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, hit, err := c.Get(ctx, "result:abc")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v, err %v; want hit", hit, err)
	}
	if string(got) != string(payload) {
		t.Error("Get returned different data")
	}

	if err := c.Delete(ctx, "result:abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "result:abc"); hit {
		t.Error("entry still present after Delete")
	}
	if err := c.Delete(ctx, "result:abc"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestFileCacheCompresses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	defer c.Close()

	payload := make([]byte, 64*1024)
	if err := c.Set(ctx, "zeros", payload, 0); err != nil {
		t.Fatal(err)
	}

	var size int64
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if size == 0 || size >= int64(len(payload))/4 {
		t.Errorf("stored size = %d, want well below %d", size, len(payload))
	}
}

func TestFileCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, hit, err := c.Get(ctx, "key"); hit || err != nil {
		t.Errorf("expired entry: hit %v, err %v; want miss", hit, err)
	}
}

func TestFileCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	defer c.Close()

	fc := c.(*FileCache)
	path := fc.path("key")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "key"); hit || err != nil {
		t.Errorf("corrupt entry: hit %v, err %v; want miss", hit, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.HTTPKey("remote", "https://x/a.jpg"); got != "http:remote:https://x/a.jpg" {
		t.Errorf("HTTPKey unexpected: %s", got)
	}

	base := ResultKeyOpts{Width: 1024, Height: 1024, Threshold: 128, P: 1, Q: 1, Iterations: 7, BlockSize: 4, ChunkSize: 128}
	k1 := k.ResultKey("img", base)
	if k1 != k.ResultKey("img", base) {
		t.Error("ResultKey should be deterministic")
	}
	if !strings.HasPrefix(k1, "result:") {
		t.Errorf("ResultKey should be prefixed: %s", k1)
	}

	changed := base
	changed.Iterations = 8
	if k1 == k.ResultKey("img", changed) {
		t.Error("Different ResultKeyOpts should produce different keys")
	}
	if k1 == k.ResultKey("other", base) {
		t.Error("Different image hashes should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "srv:1:")

	if got := scoped.HTTPKey("remote", "u"); got != "srv:1:http:remote:u" {
		t.Errorf("ScopedKeyer HTTPKey unexpected: %s", got)
	}
	if got := scoped.ResultKey("h", ResultKeyOpts{}); !strings.HasPrefix(got, "srv:1:result:") {
		t.Errorf("ScopedKeyer ResultKey should be prefixed: %s", got)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	if key := scoped.HTTPKey("test", "key"); key != "prefix:http:test:key" {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"", "*cache.FileCache", false},
		{"file", "*cache.FileCache", false},
		{"none", "*cache.NullCache", false},
		{"off", "*cache.NullCache", false},
		{"redis://localhost:6379/0", "*cache.RedisCache", false},
		{"memcached://x", "", true},
	}
	for _, tt := range tests {
		c, err := Open(tt.url, dir)
		if (err != nil) != tt.wantErr {
			t.Errorf("Open(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if got := typeName(c); got != tt.want {
			t.Errorf("Open(%q) = %s, want %s", tt.url, got, tt.want)
		}
		c.Close()
	}
}

func TestNewRedisCacheInvalidURL(t *testing.T) {
	if _, err := NewRedisCache("http://localhost:6379", ""); err == nil {
		t.Error("NewRedisCache should reject non-redis schemes")
	}
}

func TestRedisCacheKeyPrefix(t *testing.T) {
	c, err := NewRedisCache("redis://localhost:6379/0", "catbits:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := c.key("result:x"); got != "catbits:result:x" {
		t.Errorf("key() = %q, want %q", got, "catbits:result:x")
	}
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }
