package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/storage/blob"
	"github.com/clintagossett/artvault/pkg/internal/storage/db"
	"github.com/clintagossett/artvault/pkg/internal/storage/mq"
	"github.com/clintagossett/artvault/pkg/internal/types"
	nlog "github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/metrics"
	"github.com/clintagossett/artvault/pkg/queue"
)

// 迁移行结果的计数标签.
const (
	migrationMigrated = "migrated"
	migrationSkipped  = "skipped"
	migrationError    = "error"
)

// MigrateService 统一存储迁移：把遗留内联内容搬进块存储 + 文件注册表，
// 回填缺失的归属与入口. 所有操作都是幂等的，可重复执行直至收敛.
type MigrateService struct {
	dbc   *db.Client
	blobc *blob.Client
	mqc   *mq.Client
}

// NewMigrateService 创建并返回一个新的 MigrateService 实例.
func NewMigrateService(c context.Context) *MigrateService {
	return &MigrateService{
		dbc:   ctxPkg.GetDBClient(c),
		blobc: ctxPkg.GetBlobClient(c),
		mqc:   ctxPkg.GetMQClient(c),
	}
}

// hasFileRecordsSubquery 活跃文件记录存在性子查询，迁移状态由此推导而非单独字段.
func hasFileRecordsSubquery(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Model(&model.FileRecord{}).
		Select("1").
		Where("file_records.version_id = versions.id AND file_records.is_deleted = ?", false)
}

// CountPending 统计迁移进度. 只读，可随时调用.
func (s *MigrateService) CountPending(ctx context.Context) (*types.CountPendingResponse, error) {
	tx := s.dbc.GetDB().WithContext(ctx)
	resp := &types.CountPendingResponse{}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ?", false).
		Count(&resp.Total).Error; err != nil {
		return nil, fmt.Errorf("count versions: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND inline_content <> ''", false).
		Count(&resp.WithLegacyInlineContent).Error; err != nil {
		return nil, fmt.Errorf("count legacy versions: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ?", false).
		Where("EXISTS (?)", hasFileRecordsSubquery(tx)).
		Count(&resp.WithFileRecords).Error; err != nil {
		return nil, fmt.Errorf("count migrated versions: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND inline_content <> ''", false).
		Where("NOT EXISTS (?)", hasFileRecordsSubquery(tx)).
		Count(&resp.NeedsMigration).Error; err != nil {
		return nil, fmt.Errorf("count pending versions: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND created_by = ''", false).
		Count(&resp.NeedsProvenanceBackfill).Error; err != nil {
		return nil, fmt.Errorf("count provenance backfill: %w", err)
	}

	return resp, nil
}

// MigrateBatch 迁移一批遗留版本. 单行失败只记录到 Errors，不中断批次；
// dryRun 只统计将要发生的动作，不做任何写入.
func (s *MigrateService) MigrateBatch(ctx context.Context, batchSize int, dryRun bool) (*types.MigrateBatchResponse, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	tx := s.dbc.GetDB().WithContext(ctx)

	var versions []model.Version

	err := tx.Where("is_deleted = ? AND inline_content <> ''", false).
		Where("NOT EXISTS (?)", hasFileRecordsSubquery(tx)).
		Order("created_at asc").
		Limit(batchSize).
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("load migration batch: %w", err)
	}

	resp := &types.MigrateBatchResponse{Processed: len(versions), Errors: []string{}}

	for i := range versions {
		v := &versions[i]

		if dryRun {
			resp.Migrated++

			continue
		}

		migrated, err := s.migrateVersion(ctx, v)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", v.ID, err))
			metrics.MigrationCounter.WithLabelValues(migrationError).Inc()
			nlog.Logger().Error().Err(err).Str("version", v.ID).Msg("migrate version failed")

			continue
		}

		if !migrated {
			metrics.MigrationCounter.WithLabelValues(migrationSkipped).Inc()

			continue
		}

		resp.Migrated++
		metrics.MigrationCounter.WithLabelValues(migrationMigrated).Inc()
	}

	resp.Skipped = resp.Processed - resp.Migrated - len(resp.Errors)

	// 批次装满说明后面很可能还有.
	resp.HasMore = len(versions) == batchSize

	s.publishBatch(ctx, resp, dryRun)

	return resp, nil
}

// migrateVersion 把一个版本的内联内容落成块 + 文件记录.
// 批次装载和落库之间可能有并发批次抢先完成，事务内复查记录存在性，
// 已被处理的版本按跳过处理而不是撞唯一索引报错.
func (s *MigrateService) migrateVersion(ctx context.Context, v *model.Version) (bool, error) {
	entry := v.EntryPoint
	if entry == "" {
		entry = defaultEntryPointForFileType(v.FileType)
	}

	data := []byte(v.InlineContent)

	ref, err := s.blobc.Put(ctx, data)
	if err != nil {
		return false, fmt.Errorf("put blob: %w", err)
	}

	now := time.Now().UTC()
	rec := &model.FileRecord{
		ID:        newFileID(now),
		VersionID: v.ID,
		FilePath:  entry,
		BlobRef:   string(ref),
		MimeType:  mimeTypeForFileType(v.FileType),
		FileSize:  int64(len(data)),
	}

	var migrated bool

	err = s.dbc.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64

		if err := tx.Model(&model.FileRecord{}).
			Where("version_id = ? AND is_deleted = ?", v.ID, false).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("recheck file records: %w", err)
		}

		if existing > 0 {
			return nil
		}

		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("create file record: %w", err)
		}

		updates := map[string]any{"file_size": int64(len(data))}
		if v.EntryPoint == "" {
			updates["entry_point"] = entry
		}

		if err := tx.Model(&model.Version{}).Where("id = ?", v.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update version: %w", err)
		}

		migrated = true

		return nil
	})

	return migrated, err
}

// BackfillProvenance 用所属制品的拥有者回填缺失的 created_by.
func (s *MigrateService) BackfillProvenance(ctx context.Context, batchSize int) (*types.BackfillProvenanceResponse, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	tx := s.dbc.GetDB().WithContext(ctx)

	var versions []model.Version

	err := tx.Where("is_deleted = ? AND created_by = ''", false).
		Order("created_at asc").
		Limit(batchSize).
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("load backfill batch: %w", err)
	}

	resp := &types.BackfillProvenanceResponse{Errors: []string{}}

	for i := range versions {
		v := &versions[i]

		var artifact model.Artifact

		if err := tx.Where("id = ?", v.ArtifactID).First(&artifact).Error; err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: load artifact: %v", v.ID, err))

			continue
		}

		if artifact.OwnerID == "" {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: artifact %s has no owner", v.ID, artifact.ID))

			continue
		}

		err := tx.Model(&model.Version{}).
			Where("id = ? AND created_by = ''", v.ID).
			Update("created_by", artifact.OwnerID).Error
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", v.ID, err))

			continue
		}

		resp.Updated++
	}

	return resp, nil
}

// VerifyMigration 全量核对迁移完成状态. IsComplete 为真当且仅当
// 每个活跃非 zip 版本至少有一条文件记录，且归属与入口都已回填.
func (s *MigrateService) VerifyMigration(ctx context.Context) (*types.VerifyMigrationResponse, error) {
	tx := s.dbc.GetDB().WithContext(ctx)

	resp := &types.VerifyMigrationResponse{Issues: []string{}}
	stats := &resp.Stats

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ?", false).
		Count(&stats.ActiveVersions).Error; err != nil {
		return nil, fmt.Errorf("count active versions: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ?", false).
		Where("EXISTS (?)", hasFileRecordsSubquery(tx)).
		Count(&stats.VersionsWithFiles).Error; err != nil {
		return nil, fmt.Errorf("count versions with files: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND created_by = ''", false).
		Count(&stats.VersionsMissingOwner).Error; err != nil {
		return nil, fmt.Errorf("count missing owner: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND entry_point = ''", false).
		Count(&stats.VersionsMissingEntry).Error; err != nil {
		return nil, fmt.Errorf("count missing entry: %w", err)
	}

	if err := tx.Model(&model.FileRecord{}).
		Where("is_deleted = ?", false).
		Count(&stats.ActiveFileRecords).Error; err != nil {
		return nil, fmt.Errorf("count file records: %w", err)
	}

	if err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND inline_content <> ''", false).
		Where("NOT EXISTS (?)", hasFileRecordsSubquery(tx)).
		Count(&stats.LegacyInlineRemaining).Error; err != nil {
		return nil, fmt.Errorf("count legacy remaining: %w", err)
	}

	var missingFiles int64

	err := tx.Model(&model.Version{}).
		Where("is_deleted = ? AND file_type <> ?", false, model.FileTypeZip).
		Where("NOT EXISTS (?)", hasFileRecordsSubquery(tx)).
		Count(&missingFiles).Error
	if err != nil {
		return nil, fmt.Errorf("count versions missing files: %w", err)
	}

	if missingFiles > 0 {
		resp.Issues = append(resp.Issues, fmt.Sprintf("%d active non-zip versions have no file records", missingFiles))
	}

	if stats.VersionsMissingOwner > 0 {
		resp.Issues = append(resp.Issues, fmt.Sprintf("%d active versions missing created_by", stats.VersionsMissingOwner))
	}

	if stats.VersionsMissingEntry > 0 {
		resp.Issues = append(resp.Issues, fmt.Sprintf("%d active versions missing entry_point", stats.VersionsMissingEntry))
	}

	resp.IsComplete = len(resp.Issues) == 0

	return resp, nil
}

// FixMissingEntryPoints 为缺失入口的活跃版本补入口：优先第一个 HTML
// 文件记录，其次任意第一个文件记录，都没有时写入默认值并记为错误.
func (s *MigrateService) FixMissingEntryPoints(ctx context.Context) (*types.FixEntryPointsResponse, error) {
	tx := s.dbc.GetDB().WithContext(ctx)

	var versions []model.Version

	err := tx.Where("is_deleted = ? AND entry_point = ''", false).
		Order("created_at asc").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("load versions missing entry: %w", err)
	}

	resp := &types.FixEntryPointsResponse{Errors: []string{}}

	for i := range versions {
		v := &versions[i]

		entry, found, err := s.pickEntryPoint(ctx, v.ID)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", v.ID, err))

			continue
		}

		if !found {
			entry = DefaultEntryPointHTML
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: no file records, defaulted entry point to %s", v.ID, entry))
			nlog.Logger().Error().
				Str("version", v.ID).
				Msg("no file records found, defaulting entry point")
		}

		err = tx.Model(&model.Version{}).
			Where("id = ? AND entry_point = ''", v.ID).
			Update("entry_point", entry).Error
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", v.ID, err))

			continue
		}

		resp.Fixed++
	}

	return resp, nil
}

// pickEntryPoint 从版本的文件记录里挑入口，HTML 优先.
func (s *MigrateService) pickEntryPoint(ctx context.Context, versionID string) (string, bool, error) {
	tx := s.dbc.GetDB().WithContext(ctx)

	var rec model.FileRecord

	err := tx.Where("version_id = ? AND is_deleted = ?", versionID, false).
		Where("file_path LIKE ? OR file_path LIKE ?", "%.html", "%.htm").
		Order("file_path asc").
		First(&rec).Error
	if err == nil {
		return rec.FilePath, true, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("find html record: %w", err)
	}

	err = tx.Where("version_id = ? AND is_deleted = ?", versionID, false).
		Order("file_path asc").
		First(&rec).Error
	if err == nil {
		return rec.FilePath, true, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("find file record: %w", err)
	}

	return "", false, nil
}

// publishBatch 迁移批次完成事件，未接消息队列时静默跳过.
func (s *MigrateService) publishBatch(ctx context.Context, resp *types.MigrateBatchResponse, dryRun bool) {
	if s.mqc == nil {
		return
	}

	msg := mustEventMessage(queue.TopicMigrationBatch, queue.MigrationBatchPayload{
		Processed: resp.Processed,
		Migrated:  resp.Migrated,
		Skipped:   resp.Skipped,
		Errors:    resp.Errors,
		HasMore:   resp.HasMore,
		DryRun:    dryRun,
	})

	if err := s.mqc.Publish(ctx, queue.TopicMigrationBatch, msg); err != nil {
		nlog.Logger().Error().Err(err).Msg("publish migration batch event failed")
	}
}
