package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/storage/blob"
	"github.com/clintagossett/artvault/pkg/internal/storage/db"
	"github.com/clintagossett/artvault/pkg/internal/storage/mq"
	"github.com/clintagossett/artvault/pkg/internal/types"
	nlog "github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/queue"
	"github.com/clintagossett/artvault/pkg/rule"
)

// maxVersionNameLen 版本标签长度上限，按字符数而非字节数计.
const maxVersionNameLen = 100

// createVersionRetries 版本号唯一索引冲突时的重试次数.
// max+1 与插入在同一事务内，配合唯一索引 (artifact_id, version_number)
// 保证并发追加版本不会产生重复号码.
const createVersionRetries = 3

// VersionService 版本账本：制品内单调编号、软删除、永不改号.
type VersionService struct {
	dbc   *db.Client
	blobc *blob.Client
	mqc   *mq.Client
}

// NewVersionService 创建并返回一个新的 VersionService 实例.
func NewVersionService(c context.Context) *VersionService {
	svc := &VersionService{
		dbc:   ctxPkg.GetDBClient(c),
		blobc: ctxPkg.GetBlobClient(c),
		mqc:   ctxPkg.GetMQClient(c),
	}

	if svc.dbc == nil {
		nlog.Logger().Warn().Msg("DB client not initialized, VersionService features limited")
	}

	return svc
}

// CreateVersion 在现有制品上追加一个版本.
// 版本号取 max(已有号码，含已删除) + 1，永不复用.
func (s *VersionService) CreateVersion(ctx context.Context, user, artifactID string, req *types.CreateVersionRequest) (*types.CreateVersionResponse, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	if err := rule.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	artifact, err := s.loadActiveArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	if artifact.OwnerID != user {
		return nil, ErrForbidden
	}

	plan, err := buildContentPlan(model.FileType(req.FileType), req.Content, req.EntryPoint)
	if err != nil {
		return nil, err
	}

	// 先写块存储：插入失败留下的孤儿块是可接受垃圾，注册表绝不引用未落盘的块
	if err := storePlan(ctx, s.blobc, plan); err != nil {
		return nil, err
	}

	version, err := s.insertVersion(ctx, artifactID, plan, model.FileType(req.FileType), req.VersionName, user)
	if err != nil {
		return nil, err
	}

	s.publishVersionCreated(ctx, version, len(plan.Entries))

	return &types.CreateVersionResponse{Version: toVersionInfo(version, len(plan.Entries))}, nil
}

// insertVersion 事务内计算 max+1 并插入版本行与文件记录，
// 唯一索引冲突时整体重试.
func (s *VersionService) insertVersion(ctx context.Context, artifactID string, plan *contentPlan, ft model.FileType, versionName, createdBy string) (*model.Version, error) {
	var version *model.Version

	for attempt := range createVersionRetries {
		now := time.Now().UTC()

		err := s.dbc.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxNum int

			// 包含已删除的行：空洞是预期行为，号码永不复用
			if err := tx.Model(&model.Version{}).
				Where("artifact_id = ?", artifactID).
				Select("COALESCE(MAX(version_number), 0)").
				Scan(&maxNum).Error; err != nil {
				return fmt.Errorf("max version number: %w", err)
			}

			v := &model.Version{
				ID:            newVersionID(now),
				ArtifactID:    artifactID,
				VersionNumber: maxNum + 1,
				FileType:      ft,
				EntryPoint:    plan.EntryPoint,
				VersionName:   versionName,
				FileSize:      plan.TotalSize,
				CreatedBy:     createdBy,
			}

			if err := tx.Create(v).Error; err != nil {
				return err
			}

			if err := tx.Create(fileRecordsForPlan(plan, v.ID, now)).Error; err != nil {
				return fmt.Errorf("create file records: %w", err)
			}

			if err := tx.Model(&model.Artifact{}).
				Where("id = ?", artifactID).
				Update("updated_at", now).Error; err != nil {
				return fmt.Errorf("bump artifact updated_at: %w", err)
			}

			version = v

			return nil
		})
		if err == nil {
			return version, nil
		}

		if !isDuplicateKeyErr(err) || attempt == createVersionRetries-1 {
			return nil, fmt.Errorf("create version: %w", err)
		}
	}

	return nil, fmt.Errorf("create version: retries exhausted")
}

// SoftDeleteVersion 软删除一个版本并级联其全部活跃文件记录.
// 制品必须保留至少一个活跃版本，删除仅存的活跃版本返回 ErrLastActiveVersion.
func (s *VersionService) SoftDeleteVersion(ctx context.Context, user, versionID string) error {
	if user == "" {
		return ErrUnauthenticated
	}

	// 级联共享同一时间戳与操作者
	now := time.Now().UTC()

	var (
		version  model.Version
		artifact model.Artifact
	)

	err := s.dbc.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND is_deleted = ?", versionID, false).
			First(&version).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return fmt.Errorf("load version: %w", err)
		}

		if err := tx.Where("id = ? AND is_deleted = ?", version.ArtifactID, false).
			First(&artifact).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return fmt.Errorf("load artifact: %w", err)
		}

		if artifact.OwnerID != user {
			return ErrForbidden
		}

		var others int64
		if err := tx.Model(&model.Version{}).
			Where("artifact_id = ? AND is_deleted = ? AND id <> ?", version.ArtifactID, false, versionID).
			Count(&others).Error; err != nil {
			return fmt.Errorf("count active versions: %w", err)
		}

		if others == 0 {
			return ErrLastActiveVersion
		}

		// WHERE is_deleted = false 使重放幂等：已删除的行保留原始删除信息
		if err := tx.Model(&model.Version{}).
			Where("id = ? AND is_deleted = ?", versionID, false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": user,
			}).Error; err != nil {
			return fmt.Errorf("delete version: %w", err)
		}

		if err := tx.Model(&model.FileRecord{}).
			Where("version_id = ? AND is_deleted = ?", versionID, false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": user,
			}).Error; err != nil {
			return fmt.Errorf("cascade file records: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publishVersionDeleted(ctx, &version, user, now)

	return nil
}

// ListActiveVersions 返回制品的活跃版本，按版本号降序（最新在前）.
func (s *VersionService) ListActiveVersions(ctx context.Context, artifactID string) (*types.ListVersionsResponse, error) {
	if _, err := s.loadActiveArtifact(ctx, artifactID); err != nil {
		return nil, err
	}

	var versions []model.Version

	err := s.dbc.GetDB().WithContext(ctx).
		Where("artifact_id = ? AND is_deleted = ?", artifactID, false).
		Order("version_number desc").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	infos := make([]types.VersionInfo, 0, len(versions))
	for i := range versions {
		infos = append(infos, toVersionInfo(&versions[i], 0))
	}

	return &types.ListVersionsResponse{Versions: infos}, nil
}

// LatestActiveVersion 返回制品号码最大的活跃版本.
func (s *VersionService) LatestActiveVersion(ctx context.Context, artifactID string) (*model.Version, error) {
	var version model.Version

	err := s.dbc.GetDB().WithContext(ctx).
		Where("artifact_id = ? AND is_deleted = ?", artifactID, false).
		Order("version_number desc").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("latest version: %w", err)
	}

	return &version, nil
}

// GetVersionByNumber 按号码取活跃版本，软删除的版本视为缺失.
func (s *VersionService) GetVersionByNumber(ctx context.Context, artifactID string, number int) (*model.Version, error) {
	var version model.Version

	err := s.dbc.GetDB().WithContext(ctx).
		Where("artifact_id = ? AND version_number = ? AND is_deleted = ?", artifactID, number, false).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get version by number: %w", err)
	}

	return &version, nil
}

// GetVersion 按 ID 取活跃版本.
func (s *VersionService) GetVersion(ctx context.Context, versionID string) (*model.Version, error) {
	var version model.Version

	err := s.dbc.GetDB().WithContext(ctx).
		Where("id = ? AND is_deleted = ?", versionID, false).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get version: %w", err)
	}

	return &version, nil
}

// UpdateVersionName 修改版本标签，nil 清空. 仅制品拥有者可操作.
func (s *VersionService) UpdateVersionName(ctx context.Context, user, versionID string, name *string) error {
	if user == "" {
		return ErrUnauthenticated
	}

	if name != nil && utf8.RuneCountInString(*name) > maxVersionNameLen {
		return fmt.Errorf("%w: version name exceeds %d characters", ErrValidation, maxVersionNameLen)
	}

	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}

	artifact, err := s.loadActiveArtifact(ctx, version.ArtifactID)
	if err != nil {
		return err
	}

	if artifact.OwnerID != user {
		return ErrForbidden
	}

	newName := ""
	if name != nil {
		newName = *name
	}

	if err := s.dbc.GetDB().WithContext(ctx).Model(&model.Version{}).
		Where("id = ?", versionID).
		Update("version_name", newName).Error; err != nil {
		return fmt.Errorf("update version name: %w", err)
	}

	return nil
}

// loadActiveArtifact 取活跃制品，缺失或已删除返回 ErrNotFound.
func (s *VersionService) loadActiveArtifact(ctx context.Context, artifactID string) (*model.Artifact, error) {
	var artifact model.Artifact

	err := s.dbc.GetDB().WithContext(ctx).
		Where("id = ? AND is_deleted = ?", artifactID, false).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("load artifact: %w", err)
	}

	return &artifact, nil
}

func (s *VersionService) publishVersionCreated(ctx context.Context, v *model.Version, fileCount int) {
	if s.mqc == nil {
		return
	}

	err := s.mqc.Publish(ctx, queue.TopicVersionCreated, mustEventMessage(queue.TopicVersionCreated, queue.VersionCreatedPayload{
		ArtifactID:    v.ArtifactID,
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		FileType:      string(v.FileType),
		FileCount:     fileCount,
		FileSize:      v.FileSize,
		CreatedBy:     v.CreatedBy,
	}))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("version", v.ID).Msg("publish version created failed")
	}
}

func (s *VersionService) publishVersionDeleted(ctx context.Context, v *model.Version, actor string, at time.Time) {
	if s.mqc == nil {
		return
	}

	err := s.mqc.Publish(ctx, queue.TopicVersionDeleted, mustEventMessage(queue.TopicVersionDeleted, queue.VersionDeletedPayload{
		ArtifactID:    v.ArtifactID,
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		DeletedBy:     actor,
		DeletedAt:     at,
	}))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("version", v.ID).Msg("publish version deleted failed")
	}
}

// toVersionInfo 转换为公开信息.
func toVersionInfo(v *model.Version, fileCount int) types.VersionInfo {
	return types.VersionInfo{
		ID:            v.ID,
		ArtifactID:    v.ArtifactID,
		VersionNumber: v.VersionNumber,
		FileType:      string(v.FileType),
		EntryPoint:    v.EntryPoint,
		VersionName:   v.VersionName,
		FileSize:      v.FileSize,
		FileCount:     fileCount,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
	}
}

// isDuplicateKeyErr 识别唯一索引冲突，兼容未实现错误翻译的方言.
func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
