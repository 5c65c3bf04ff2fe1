package model

import (
	"time"
)

// FileType 版本内容类型.
type FileType string

const (
	FileTypeHTML     FileType = "html"
	FileTypeMarkdown FileType = "markdown"
	FileTypeZip      FileType = "zip"
)

// Version 版本模型. 版本号在制品内单调递增且永不复用，
// 删除后留下空洞是预期行为.
type Version struct {
	ID         string `gorm:"primaryKey;size:64" json:"id"`
	ArtifactID string `gorm:"size:64;index;index:idx_artifact_version,unique" json:"artifact_id"`
	// VersionNumber 正整数，制品内唯一，包含已删除的行
	VersionNumber int `gorm:"index:idx_artifact_version,unique" json:"version_number"`

	FileType FileType `gorm:"size:16" json:"file_type"`
	// EntryPoint 未指定路径时默认服务的文件路径
	EntryPoint string `gorm:"size:1024" json:"entry_point,omitempty"`
	// VersionName 用户自定义标签，最长 100 字符
	VersionName string `gorm:"size:100"  json:"version_name,omitempty"`
	FileSize    int64  `json:"file_size"`
	CreatedBy   string `gorm:"size:255"  json:"created_by"`

	// InlineContent 遗留的内联内容字段，统一存储迁移完成后废弃
	InlineContent string `gorm:"type:text" json:"-"`

	Lifecycle

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
