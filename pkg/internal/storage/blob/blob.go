// Package blob 提供内容寻址的块存储接口和实现.
//
// 所有文件内容按 SHA-256 摘要寻址：Put 返回十六进制摘要作为引用，
// 相同内容写入多次只存一份. 生产环境使用 S3/MinIO 后端，
// memory 后端用于开发和测试.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/clintagossett/artvault/pkg/configs"
)

// Ref 是块的内容寻址引用（SHA-256 摘要的十六进制形式，64 个字符）.
type Ref string

// RefFromBytes 计算内容摘要.
func RefFromBytes(data []byte) Ref {
	sum := sha256.Sum256(data)
	return Ref(hex.EncodeToString(sum[:]))
}

// Valid 检查引用格式（64 位小写十六进制）.
func (r Ref) Valid() bool {
	if len(r) != sha256.Size*2 {
		return false
	}

	_, err := hex.DecodeString(string(r))

	return err == nil
}

func (r Ref) String() string { return string(r) }

// Store 定义内容寻址块存储接口.
type Store interface {
	// Put 写入内容并返回其引用. 重复写入相同内容是幂等的.
	Put(ctx context.Context, data []byte) (Ref, error)
	// Get 按引用读取完整内容.
	Get(ctx context.Context, ref Ref) ([]byte, error)
	// Open 按引用打开内容读取流，调用方负责 Close.
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
	// Exists 检查引用对应的块是否存在.
	Exists(ctx context.Context, ref Ref) (bool, error)
	// Stat 返回块大小（字节）.
	Stat(ctx context.Context, ref Ref) (int64, error)
	// Close 释放底层连接.
	Close() error
}

// ErrNotFound 块不存在.
var ErrNotFound = fmt.Errorf("blob not found")

// Client 包装 Store 并携带类型信息.
type Client struct {
	Store

	backend configs.BlobType
}

// Backend 返回后端类型.
func (c *Client) Backend() configs.BlobType {
	return c.backend
}

// New 按配置创建块存储客户端.
func New(ctx context.Context, cfg *configs.BlobConfig) (*Client, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Type {
	case configs.BlobTypeS3:
		store, err = NewS3Store(ctx, &cfg.S3)
	case configs.BlobTypeMemory:
		store, err = NewMemoryStore(ctx)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	return &Client{Store: store, backend: cfg.Type}, nil
}
