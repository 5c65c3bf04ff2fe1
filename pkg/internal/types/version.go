package types

import "time"

// CreateVersionRequest 在现有制品上追加版本.
type CreateVersionRequest struct {
	// FileType 内容类型：html / markdown / zip
	FileType string `json:"file_type" rule:"required,oneof=html markdown zip"`
	// Content html/markdown 为原始文本，zip 为 base64 编码的压缩包
	Content string `json:"content" rule:"required"`
	// EntryPoint 可选的默认服务路径
	EntryPoint string `json:"entry_point"`
	// VersionName 可选的用户标签，最长 100 字符
	VersionName string `json:"version_name" rule:"omitempty,max=100"`
}

// VersionInfo 版本的公开信息.
type VersionInfo struct {
	ID            string    `json:"id"`
	ArtifactID    string    `json:"artifact_id"`
	VersionNumber int       `json:"version_number"`
	FileType      string    `json:"file_type"`
	EntryPoint    string    `json:"entry_point,omitempty"`
	VersionName   string    `json:"version_name,omitempty"`
	FileSize      int64     `json:"file_size"`
	FileCount     int       `json:"file_count,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateVersionResponse 追加版本的响应体.
type CreateVersionResponse struct {
	Version VersionInfo `json:"version"`
}

// ListVersionsResponse 版本列表响应体，按版本号降序（最新在前）.
type ListVersionsResponse struct {
	Versions []VersionInfo `json:"versions"`
}

// GetVersionResponse 获取单个版本的响应体.
type GetVersionResponse struct {
	Version VersionInfo `json:"version"`
}

// UpdateVersionNameRequest 修改版本标签；null 清空标签.
type UpdateVersionNameRequest struct {
	VersionName *string `json:"version_name"`
}

// FileInfo 文件记录的公开信息.
type FileInfo struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	BlobRef  string `json:"blob_ref"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// ListFilesResponse 版本文件列表响应体.
type ListFilesResponse struct {
	Files []FileInfo `json:"files"`
}
