package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore 基于 map 的内存块存储，供开发与测试使用.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Ref][]byte
}

// NewMemoryStore 创建内存块存储实例.
func NewMemoryStore(_ context.Context) (*MemoryStore, error) {
	return &MemoryStore{data: make(map[Ref][]byte)}, nil
}

// Put 写入内容，重复内容幂等.
func (m *MemoryStore) Put(_ context.Context, data []byte) (Ref, error) {
	ref := RefFromBytes(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[ref]; !ok {
		buf := make([]byte, len(data))
		copy(buf, data)
		m.data[ref] = buf
	}

	return ref, nil
}

// Get 按引用读取完整内容.
func (m *MemoryStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	result := make([]byte, len(data))
	copy(result, data)

	return result, nil
}

// Open 打开内容读取流.
func (m *MemoryStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	data, err := m.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists 检查块是否存在.
func (m *MemoryStore) Exists(_ context.Context, ref Ref) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[ref]

	return ok, nil
}

// Stat 返回块大小.
func (m *MemoryStore) Stat(_ context.Context, ref Ref) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return int64(len(data)), nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryStore) Close() error {
	return nil
}

// Len 返回已存块数量，测试用.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}
