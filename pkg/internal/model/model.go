package model

// All 返回所有需要自动迁移的模型.
func All() []any {
	return []any{
		&Artifact{},
		&Version{},
		&FileRecord{},
	}
}
