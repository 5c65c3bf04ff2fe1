// Package types 定义 HTTP 层的请求与响应结构体.
package types

import "time"

// CreateArtifactRequest 创建制品（含首个版本）所需参数.
type CreateArtifactRequest struct {
	// Title 制品标题
	Title string `json:"title" rule:"required,max=512"`
	// Description 可选描述
	Description string `json:"description"`
	// FileType 首个版本的内容类型：html / markdown / zip
	FileType string `json:"file_type" rule:"required,oneof=html markdown zip"`
	// Content 文件内容；html/markdown 为原始文本，zip 为 base64 编码的压缩包
	Content string `json:"content" rule:"required"`
	// EntryPoint 可选的默认服务路径；zip 未指定时自动推断
	EntryPoint string `json:"entry_point"`
}

// ArtifactInfo 制品的公开信息.
type ArtifactInfo struct {
	ID          string    `json:"id"`
	ShareToken  string    `json:"share_token"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateArtifactResponse 创建制品的响应体.
type CreateArtifactResponse struct {
	Artifact ArtifactInfo `json:"artifact"`
	// Version 同时创建的首个版本
	Version VersionInfo `json:"version"`
}

// GetArtifactResponse 获取单个制品的响应体.
type GetArtifactResponse struct {
	Artifact ArtifactInfo `json:"artifact"`
}

// ListArtifactsResponse 制品列表响应体.
type ListArtifactsResponse struct {
	Artifacts []ArtifactInfo `json:"artifacts"`
}

// UpdateArtifactRequest 修改制品元数据.
type UpdateArtifactRequest struct {
	Title       *string `json:"title" rule:"omitempty,max=512"`
	Description *string `json:"description"`
}
