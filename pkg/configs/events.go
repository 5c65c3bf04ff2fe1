package configs

import "github.com/spf13/viper"

// EventsConfig 控制生命周期事件发布的开关（全局与分主题）.
type EventsConfig struct {
	Enabled  bool                 `mapstructure:"enabled"`
	Artifact ArtifactEventsConfig `mapstructure:"artifact"`
}

// ArtifactEventsConfig 制品领域的事件开关.
type ArtifactEventsConfig struct {
	Created        bool `mapstructure:"created"`
	Deleted        bool `mapstructure:"deleted"`
	VersionCreated bool `mapstructure:"version_created"`
	VersionDeleted bool `mapstructure:"version_deleted"`
	MigrationBatch bool `mapstructure:"migration_batch"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.artifact.created", true)
	v.SetDefault("events.artifact.deleted", true)
	v.SetDefault("events.artifact.version_created", true)
	v.SetDefault("events.artifact.version_deleted", true)
	v.SetDefault("events.artifact.migration_batch", true)
}
