// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"

	"github.com/clintagossett/artvault/pkg/configs"
	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/storage"
	"github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 每天 03:00 分批迁移遗留内联内容（需开启 migration.scheduled）
//   - 每周日 04:30 核对迁移完成状态并记录日志
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)
	cfg := configs.GetConfig().Migration

	if cfg.Scheduled {
		_ = sched.AddCron(JobMigrationBatch, CronMigrationBatch, func(ctx context.Context) {
			runMigrationBatch(ctx, cfg.BatchSize, cfg.DryRun)
		}, baseCtx)
	}

	_ = sched.AddCron(JobMigrationVerify, CronMigrationVerify, func(ctx context.Context) {
		runMigrationVerify(ctx)
	}, baseCtx)

	return nil
}

// runMigrationBatch 连续执行迁移批次直到没有剩余.
func runMigrationBatch(ctx context.Context, batchSize int, dryRun bool) {
	l := log.Logger().With().Str("job", "migration.batch").Logger()
	svc := service.NewMigrateService(ctx)

	for {
		resp, err := svc.MigrateBatch(ctx, batchSize, dryRun)
		if err != nil {
			l.Error().Err(err).Msg("migrate batch failed")

			return
		}

		l.Info().
			Int("processed", resp.Processed).
			Int("migrated", resp.Migrated).
			Int("errors", len(resp.Errors)).
			Bool("dry_run", dryRun).
			Msg("migration batch done")

		if !resp.HasMore || dryRun {
			return
		}
	}
}

// runMigrationVerify 核对迁移状态，仅记录结果.
func runMigrationVerify(ctx context.Context) {
	l := log.Logger().With().Str("job", "migration.verify").Logger()
	svc := service.NewMigrateService(ctx)

	resp, err := svc.VerifyMigration(ctx)
	if err != nil {
		l.Error().Err(err).Msg("verify migration failed")

		return
	}

	if resp.IsComplete {
		l.Info().Int64("active_versions", resp.Stats.ActiveVersions).Msg("migration complete")

		return
	}

	for _, issue := range resp.Issues {
		l.Warn().Str("issue", issue).Msg("migration incomplete")
	}
}
