package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/clintagossett/artvault/pkg/configs"
)

// NATSKV 基于 NATS JetStream KV 的实现. JetStream KV 没有按键 TTL，
// 过期通过通用 TTL 包装惰性处理.
type NATSKV struct {
	js     nats.JetStreamContext
	kv     nats.KeyValue
	bucket string
	conn   *nats.Conn
}

// NewNATSKV 创建 NATS KV 实例.
func NewNATSKV(ctx context.Context, config any) (KVStore, error) {
	natsConfig, ok := config.(*configs.NATSKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid NATS config")
	}

	opts := []nats.Option{}
	if natsConfig.User != "" {
		opts = append(opts, nats.UserInfo(natsConfig.User, natsConfig.Password))
	}

	nc, err := nats.Connect(natsConfig.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kvStore, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket: natsConfig.Bucket,
	})
	if err != nil {
		// bucket 已存在时直接获取
		kvStore, err = js.KeyValue(natsConfig.Bucket)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create/get KV bucket: %w", err)
		}
	}

	return &NATSKV{
		js:     js,
		kv:     kvStore,
		bucket: natsConfig.Bucket,
		conn:   nc,
	}, nil
}

// Get 获取键的值.
func (n *NATSKV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, fmt.Errorf("key not found: %s", key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	val, expired, _, derr := decodeWithTTL(entry.Value(), time.Now())
	if derr != nil {
		return nil, derr
	}

	if expired {
		// 惰性删除已过期条目
		_ = n.kv.Delete(key)
		return nil, fmt.Errorf("key not found: %s", key)
	}

	return val, nil
}

// Set 设置键的值.
func (n *NATSKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, _, err := encodeWithTTL(value, ttl)
	if err != nil {
		return err
	}

	if _, err := n.kv.Put(key, encoded); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Delete 删除键.
func (n *NATSKV) Delete(ctx context.Context, key string) error {
	if err := n.kv.Delete(key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Exists 检查键是否存在.
func (n *NATSKV) Exists(ctx context.Context, key string) (bool, error) {
	entry, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to check key existence: %w", err)
	}

	_, expired, _, derr := decodeWithTTL(entry.Value(), time.Now())
	if derr != nil {
		return false, derr
	}

	if expired {
		_ = n.kv.Delete(key)
		return false, nil
	}

	return true, nil
}

// Keys 获取所有键.
func (n *NATSKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := n.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to get keys: %w", err)
	}

	result := make([]string, 0)

	for _, key := range keys {
		if pattern != "" && key != pattern {
			continue
		}

		if entry, e := n.kv.Get(key); e == nil {
			if _, expired, _, derr := decodeWithTTL(entry.Value(), time.Now()); derr == nil && expired {
				_ = n.kv.Delete(key)
				continue
			}
		}

		result = append(result, key)
	}

	return result, nil
}

// Close 关闭 NATS 连接.
func (n *NATSKV) Close() error {
	n.conn.Close()
	return nil
}

func init() {
	RegisterKVFactory(KVTypeNATS, NewNATSKV)
}
