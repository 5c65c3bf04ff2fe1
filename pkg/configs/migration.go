package configs

import "github.com/spf13/viper"

const (
	DefaultMigrationBatchSize = 50
)

// MigrationConfig 统一存储迁移任务的配置.
type MigrationConfig struct {
	BatchSize int  `mapstructure:"batch_size" rule:"min=1,max=1000"`
	DryRun    bool `mapstructure:"dry_run"`
	// Scheduled 为 true 时注册夜间定时批次（见 internal/jobs）
	Scheduled bool `mapstructure:"scheduled"`
}

func (c *MigrationConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("migration.batch_size", DefaultMigrationBatchSize)
	v.SetDefault("migration.dry_run", false)
	v.SetDefault("migration.scheduled", false)
}
