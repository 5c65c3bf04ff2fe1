package types

// CountPendingResponse 迁移进度的只读统计.
type CountPendingResponse struct {
	// Total 活跃版本总数
	Total int64 `json:"total"`
	// WithLegacyInlineContent 仍带内联内容的版本数
	WithLegacyInlineContent int64 `json:"with_legacy_inline_content"`
	// WithFileRecords 已拥有文件记录的版本数
	WithFileRecords int64 `json:"with_file_records"`
	// NeedsMigration 待迁移版本数（有内联内容且无文件记录）
	NeedsMigration int64 `json:"needs_migration"`
	// NeedsProvenanceBackfill 缺少 created_by 的版本数
	NeedsProvenanceBackfill int64 `json:"needs_provenance_backfill"`
}

// MigrateBatchRequest 执行一个迁移批次.
type MigrateBatchRequest struct {
	// BatchSize 本批最多处理的版本数，缺省取配置值
	BatchSize int `json:"batch_size" rule:"omitempty,min=1,max=1000"`
	// DryRun 只读演练：完整执行读取与决策但不落任何写
	DryRun bool `json:"dry_run"`
}

// MigrateBatchResponse 一个批次的执行报告.
type MigrateBatchResponse struct {
	Processed int      `json:"processed"`
	Migrated  int      `json:"migrated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
	// HasMore 是否还有待迁移版本
	HasMore bool `json:"has_more"`
}

// BackfillProvenanceResponse 回填 created_by 的执行报告.
type BackfillProvenanceResponse struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// MigrationStats 校验时采集的统计信息.
type MigrationStats struct {
	ActiveVersions        int64 `json:"active_versions"`
	VersionsWithFiles     int64 `json:"versions_with_files"`
	VersionsMissingOwner  int64 `json:"versions_missing_owner"`
	VersionsMissingEntry  int64 `json:"versions_missing_entry"`
	ActiveFileRecords     int64 `json:"active_file_records"`
	LegacyInlineRemaining int64 `json:"legacy_inline_remaining"`
}

// VerifyMigrationResponse 迁移一致性校验结果，废弃遗留字段前的门禁.
type VerifyMigrationResponse struct {
	IsComplete bool           `json:"is_complete"`
	Issues     []string       `json:"issues"`
	Stats      MigrationStats `json:"stats"`
}

// FixEntryPointsResponse 入口文件修复报告.
type FixEntryPointsResponse struct {
	Fixed  int      `json:"fixed"`
	Errors []string `json:"errors"`
}
