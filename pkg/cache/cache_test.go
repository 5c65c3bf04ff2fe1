package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/clintagossett/artvault/pkg/cache"
)

// resolvedShare 测试用的缓存值结构体.
type resolvedShare struct {
	ArtifactID string `json:"artifact_id"`
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title"`
}

// mockKVStore 模拟KV存储实现.
type mockKVStore struct {
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{
		data: make(map[string][]byte),
	}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if value, exists := m.data[key]; exists {
		return value, nil
	}

	return nil, fmt.Errorf("key not found")
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data[key]
	return exists, nil
}

func (m *mockKVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}

	return keys, nil
}

func (m *mockKVStore) Close() error { return nil }

func TestCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newMockKVStore())

	want := resolvedShare{ArtifactID: "art_1", OwnerID: "user-1", Title: "demo"}
	if err := cache.Set(ctx, c, "share:ar_01ABC", want, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := cache.Get[resolvedShare](ctx, c, "share:ar_01ABC")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCacheGetMiss(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newMockKVStore())

	if _, err := cache.Get[resolvedShare](ctx, c, "absent"); err == nil {
		t.Fatal("expected error on miss")
	}
}

func TestCacheGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newMockKVStore())

	calls := 0
	getter := func() (resolvedShare, error) {
		calls++
		return resolvedShare{ArtifactID: "art_2"}, nil
	}

	// 首次未命中，调用 getter 并回填
	got, err := cache.GetOrSet(ctx, c, "share:x", getter, time.Minute)
	if err != nil {
		t.Fatalf("first GetOrSet failed: %v", err)
	}

	if got.ArtifactID != "art_2" || calls != 1 {
		t.Fatalf("got %+v, calls=%d", got, calls)
	}

	// 第二次命中缓存，getter 不再调用
	got, err = cache.GetOrSet(ctx, c, "share:x", getter, time.Minute)
	if err != nil {
		t.Fatalf("second GetOrSet failed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("getter called %d times, want 1", calls)
	}

	_ = got
}

func TestCacheGetOrSetGetterError(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newMockKVStore())

	wantErr := errors.New("db unavailable")
	_, err := cache.GetOrSet(ctx, c, "share:y", func() (resolvedShare, error) {
		return resolvedShare{}, wantErr
	}, time.Minute)

	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
