package model

import (
	"time"
)

// FileRecord 文件注册表条目：把 (版本, 路径) 映射到块引用.
// html/markdown 版本恰好一条（路径等于版本入口文件），zip 版本每个成员一条.
// BlobRef 创建后不可变，内容变更永远走新版本.
type FileRecord struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	VersionID string `gorm:"size:64;index;index:idx_version_path,unique" json:"version_id"`
	// FilePath POSIX 风格相对路径，版本内唯一
	FilePath string `gorm:"size:1024;index:idx_version_path,unique" json:"file_path"`

	BlobRef  string `gorm:"size:128;index" json:"blob_ref"`
	MimeType string `gorm:"size:255"       json:"mime_type"`
	FileSize int64  `json:"file_size"`

	Lifecycle

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
