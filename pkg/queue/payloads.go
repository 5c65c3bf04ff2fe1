package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 制品领域 --------------------------

// ArtifactCreatedPayload 新制品建立.
type ArtifactCreatedPayload struct {
	ArtifactID string `json:"artifact_id"`
	ShareToken string `json:"share_token"`
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title,omitempty"`
}

// ArtifactDeletedPayload 制品软删除，级联所有版本与文件.
type ArtifactDeletedPayload struct {
	ArtifactID      string    `json:"artifact_id"`
	DeletedBy       string    `json:"deleted_by"`
	DeletedAt       time.Time `json:"deleted_at"`
	VersionsDeleted int       `json:"versions_deleted"`
	FilesDeleted    int       `json:"files_deleted"`
}

// -------------------------- 版本领域 --------------------------

// VersionCreatedPayload 新版本写入账本.
type VersionCreatedPayload struct {
	ArtifactID    string `json:"artifact_id"`
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	FileType      string `json:"file_type"`
	FileCount     int    `json:"file_count"`
	FileSize      int64  `json:"file_size,omitempty"`
	CreatedBy     string `json:"created_by,omitempty"`
}

// VersionDeletedPayload 单个版本软删除.
type VersionDeletedPayload struct {
	ArtifactID    string    `json:"artifact_id"`
	VersionID     string    `json:"version_id"`
	VersionNumber int       `json:"version_number"`
	DeletedBy     string    `json:"deleted_by"`
	DeletedAt     time.Time `json:"deleted_at"`
}

// -------------------------- 迁移领域 --------------------------

// MigrationBatchPayload 一个迁移批次执行完毕.
type MigrationBatchPayload struct {
	Processed int      `json:"processed"`
	Migrated  int      `json:"migrated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
	HasMore   bool     `json:"has_more"`
	DryRun    bool     `json:"dry_run"`
}
