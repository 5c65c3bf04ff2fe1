// Package storage 处理存储操作，聚合数据库、块存储、KV 缓存与消息队列.
//
// Example:
//
// 初始化
//
//	 ctx := context.Background()
//	 mgr, err := storage.Init(ctx)
//
//		if err != nil {
//		    // 处理错误
//		}
//
// 获取存储客户端
//
//	dbClient := mgr.GetDBClient()
//	blobClient := mgr.GetBlobClient()
package storage

import (
	"context"
	"sync"

	"github.com/clintagossett/artvault/pkg/configs"
	"github.com/clintagossett/artvault/pkg/internal/model"
	blobc "github.com/clintagossett/artvault/pkg/internal/storage/blob"
	dbc "github.com/clintagossett/artvault/pkg/internal/storage/db"
	kvc "github.com/clintagossett/artvault/pkg/internal/storage/kv"
	mqc "github.com/clintagossett/artvault/pkg/internal/storage/mq"
	nlog "github.com/clintagossett/artvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB   *dbc.Client
	Blob *blobc.Client
	KV   *kvc.Client
	MQ   *mqc.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置. 重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	var err error

	mgrOnce.Do(func() {
		cfg := configs.GetConfig()
		m := &Manager{}

		// DB
		dbi, e := dbc.New(ctx, &cfg.DB)
		if e != nil {
			err = e
			return
		}

		m.DB = dbi

		if e := m.DB.AutoMigrate(model.All()...); e != nil {
			err = e
			return
		}

		// Blob
		blobi, e := blobc.New(ctx, &cfg.Blob)
		if e != nil {
			err = e
			return
		}

		m.Blob = blobi

		// KV
		kvi, e := kvc.NewKVClient(ctx, &cfg.KV)
		if e != nil {
			err = e
			return
		}

		m.KV = kvi

		// MQ（事件总线关闭时跳过）
		if cfg.Events.Enabled {
			mqi, e := mqc.New(ctx, &cfg.MQ)
			if e != nil {
				err = e
				return
			}

			m.MQ = mqi
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, err
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetBlobClient 获取块存储客户端.
func (m *Manager) GetBlobClient() *blobc.Client {
	return m.Blob
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// Close 释放所有存储资源.
func (m *Manager) Close() error {
	var err error

	if m.Blob != nil {
		if e := m.Blob.Close(); e != nil {
			err = e
		}
	}

	if m.KV != nil {
		if e := m.KV.Close(); e != nil {
			err = e
		}
	}

	if m.MQ != nil {
		if e := m.MQ.Close(); e != nil {
			err = e
		}
	}

	return err
}
