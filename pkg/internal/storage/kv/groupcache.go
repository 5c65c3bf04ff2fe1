package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/clintagossett/artvault/pkg/configs"
)

// GroupcacheKV 基于 Groupcache 的 KV 实现.
type GroupcacheKV struct {
	cache  *groupcache.Group
	peers  *groupcache.HTTPPool
	getter groupcache.Getter
	data   map[string][]byte
	mu     sync.RWMutex
}

// groupcacheGetter 实现 groupcache.Getter 接口.
type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(ctx context.Context, key string, dest groupcache.Sink) error {
	g.kv.mu.RLock()
	value, exists := g.kv.data[key]
	g.kv.mu.RUnlock()

	if !exists {
		return fmt.Errorf("key not found: %s", key)
	}

	if err := dest.SetBytes(value); err != nil {
		return fmt.Errorf("failed to set bytes to sink: %w", err)
	}

	return nil
}

// NewGroupcacheKV 创建 Groupcache KV 实例.
func NewGroupcacheKV(ctx context.Context, config any) (KVStore, error) {
	gcConfig, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid Groupcache config")
	}

	kvStore := &GroupcacheKV{
		data: make(map[string][]byte),
	}

	kvStore.getter = &groupcacheGetter{kv: kvStore}
	kvStore.cache = groupcache.NewGroup(gcConfig.Name, gcConfig.CacheBytes, kvStore.getter)

	if len(gcConfig.Peers) > 0 {
		kvStore.peers = groupcache.NewHTTPPoolOpts(gcConfig.Self, &groupcache.HTTPPoolOptions{})
		kvStore.peers.Set(gcConfig.Peers...)
	}

	return kvStore, nil
}

// Get 获取键的值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte

	err := g.cache.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data))
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	val, expired, _, derr := decodeWithTTL(data, time.Now())
	if derr != nil {
		return nil, derr
	}

	if expired {
		_ = g.Delete(ctx, key)
		return nil, fmt.Errorf("key not found: %s", key)
	}

	result := make([]byte, len(val))
	copy(result, val)

	return result, nil
}

// Set 设置键的值.
func (g *GroupcacheKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, _, err := encodeWithTTL(value, ttl)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.data[key] = make([]byte, len(encoded))
	copy(g.data[key], encoded)

	return nil
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.data, key)

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.data[key]

	return exists, nil
}

// Keys 获取所有键.
func (g *GroupcacheKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))
	for key := range g.data {
		if pattern == "" || key == pattern {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Close 关闭缓存.
func (g *GroupcacheKV) Close() error {
	// Groupcache 没有显式的关闭方法
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
