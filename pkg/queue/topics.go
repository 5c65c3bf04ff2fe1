// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：av.<域>.<动作>，尽量稳定且向后兼容.
// 域：artifact(制品)、version(版本)、migration(存储迁移)
// 动作：created/deleted/batch 等

const (
	// 制品领域.
	TopicArtifactCreated = "av.artifact.created" // 新制品建立（含首个版本）
	TopicArtifactDeleted = "av.artifact.deleted" // 制品软删除（级联所有版本与文件）

	// 版本领域.
	TopicVersionCreated = "av.version.created" // 新版本写入账本
	TopicVersionDeleted = "av.version.deleted" // 单个版本软删除

	// 统一存储迁移领域.
	TopicMigrationBatch = "av.migration.batch" // 一个迁移批次执行完毕（含报告）
)

// 主题分组，用于批量操作或权限控制.
var (
	// 制品相关主题集合.
	ArtifactTopics = []string{
		TopicArtifactCreated, TopicArtifactDeleted,
	}

	// 版本相关主题集合.
	VersionTopics = []string{
		TopicVersionCreated, TopicVersionDeleted,
	}

	// 迁移相关主题集合.
	MigrationTopics = []string{
		TopicMigrationBatch,
	}
)
