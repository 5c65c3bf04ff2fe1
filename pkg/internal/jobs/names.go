package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobMigrationBatch  = "migration.batch.nightly"
	JobMigrationVerify = "migration.verify.weekly"
)

// Cron 表达式常量.
const (
	CronMigrationBatch  = "0 3 * * *"
	CronMigrationVerify = "30 4 * * 0"
)
