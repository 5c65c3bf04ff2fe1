package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clintagossett/artvault/pkg/cache"
	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/storage/blob"
	"github.com/clintagossett/artvault/pkg/internal/storage/db"
	"github.com/clintagossett/artvault/pkg/internal/storage/kv"
	"github.com/clintagossett/artvault/pkg/internal/storage/mq"
	"github.com/clintagossett/artvault/pkg/internal/types"
	nlog "github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/queue"
	"github.com/clintagossett/artvault/pkg/rule"
)

// shareTokenCacheTTL 分享令牌到制品映射的缓存时间.
// 软删除会主动失效缓存，TTL 只是兜底.
const shareTokenCacheTTL = 5 * time.Minute

// shareTokenCacheKey KV 中分享令牌缓存的键.
func shareTokenCacheKey(token string) string { return "share:" + token }

// ArtifactService 制品目录：分享令牌寻址与级联软删除.
type ArtifactService struct {
	dbc   *db.Client
	blobc *blob.Client
	kvc   *kv.Client
	mqc   *mq.Client
}

// NewArtifactService 创建并返回一个新的 ArtifactService 实例.
func NewArtifactService(c context.Context) *ArtifactService {
	svc := &ArtifactService{
		dbc:   ctxPkg.GetDBClient(c),
		blobc: ctxPkg.GetBlobClient(c),
		kvc:   ctxPkg.GetKVClient(c),
		mqc:   ctxPkg.GetMQClient(c),
	}

	if svc.dbc == nil {
		nlog.Logger().Warn().Msg("DB client not initialized, ArtifactService features limited")
	}

	return svc
}

// CreateArtifact 创建制品并写入首个版本，两者在同一事务内落库.
func (s *ArtifactService) CreateArtifact(ctx context.Context, user string, req *types.CreateArtifactRequest) (*types.CreateArtifactResponse, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	if err := rule.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	plan, err := buildContentPlan(model.FileType(req.FileType), req.Content, req.EntryPoint)
	if err != nil {
		return nil, err
	}

	if err := storePlan(ctx, s.blobc, plan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	artifact := &model.Artifact{
		ID:          newArtifactID(now),
		OwnerID:     user,
		ShareToken:  NewShareToken(now),
		Title:       req.Title,
		Description: req.Description,
	}

	var version *model.Version

	err = s.dbc.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(artifact).Error; err != nil {
			return fmt.Errorf("create artifact: %w", err)
		}

		v := &model.Version{
			ID:            newVersionID(now),
			ArtifactID:    artifact.ID,
			VersionNumber: 1,
			FileType:      model.FileType(req.FileType),
			EntryPoint:    plan.EntryPoint,
			FileSize:      plan.TotalSize,
			CreatedBy:     user,
		}

		if err := tx.Create(v).Error; err != nil {
			return fmt.Errorf("create first version: %w", err)
		}

		if err := tx.Create(fileRecordsForPlan(plan, v.ID, now)).Error; err != nil {
			return fmt.Errorf("create file records: %w", err)
		}

		version = v

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishArtifactCreated(ctx, artifact)

	return &types.CreateArtifactResponse{
		Artifact: toArtifactInfo(artifact),
		Version:  toVersionInfo(version, len(plan.Entries)),
	}, nil
}

// ResolveByShareToken 按分享令牌取活跃制品，软删除视为缺失.
// 命中结果短暂缓存在 KV 中，服务路径上的热点查询不必每次穿透数据库.
func (s *ArtifactService) ResolveByShareToken(ctx context.Context, token string) (*model.Artifact, error) {
	if s.kvc != nil {
		c := cache.NewCache(s.kvc.KVStore)

		artifact, err := cache.GetOrSet(ctx, c, shareTokenCacheKey(token), func() (model.Artifact, error) {
			a, err := s.resolveByShareTokenDB(ctx, token)
			if err != nil {
				return model.Artifact{}, err
			}

			return *a, nil
		}, shareTokenCacheTTL)
		if err != nil {
			return nil, err
		}

		// 缓存命中后仍须过滤已删除的行
		if artifact.IsDeleted {
			return nil, ErrNotFound
		}

		return &artifact, nil
	}

	return s.resolveByShareTokenDB(ctx, token)
}

func (s *ArtifactService) resolveByShareTokenDB(ctx context.Context, token string) (*model.Artifact, error) {
	var artifact model.Artifact

	err := s.dbc.GetDB().WithContext(ctx).
		Where("share_token = ? AND is_deleted = ?", token, false).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("resolve share token: %w", err)
	}

	return &artifact, nil
}

// GetArtifact 按 ID 取活跃制品，仅拥有者可见.
func (s *ArtifactService) GetArtifact(ctx context.Context, user, artifactID string) (*types.GetArtifactResponse, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	artifact, err := s.loadActive(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	if artifact.OwnerID != user {
		return nil, ErrForbidden
	}

	return &types.GetArtifactResponse{Artifact: toArtifactInfo(artifact)}, nil
}

// ListArtifacts 返回用户的活跃制品，按更新时间降序.
func (s *ArtifactService) ListArtifacts(ctx context.Context, user string) (*types.ListArtifactsResponse, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	var artifacts []model.Artifact

	err := s.dbc.GetDB().WithContext(ctx).
		Where("owner_id = ? AND is_deleted = ?", user, false).
		Order("updated_at desc").
		Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	infos := make([]types.ArtifactInfo, 0, len(artifacts))
	for i := range artifacts {
		infos = append(infos, toArtifactInfo(&artifacts[i]))
	}

	return &types.ListArtifactsResponse{Artifacts: infos}, nil
}

// UpdateArtifact 修改制品元数据，仅拥有者可操作.
func (s *ArtifactService) UpdateArtifact(ctx context.Context, user, artifactID string, req *types.UpdateArtifactRequest) (*types.GetArtifactResponse, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	if err := rule.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	artifact, err := s.loadActive(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	if artifact.OwnerID != user {
		return nil, ErrForbidden
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}

	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := s.dbc.GetDB().WithContext(ctx).Model(artifact).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update artifact: %w", err)
		}
	}

	return &types.GetArtifactResponse{Artifact: toArtifactInfo(artifact)}, nil
}

// SoftDeleteArtifact 软删除制品并级联所有版本与文件记录.
// 整个级联共享一次捕获的时间戳与操作者；已删除的子行跳过，
// 原始删除信息不被覆盖，因此中断后重放是幂等的.
func (s *ArtifactService) SoftDeleteArtifact(ctx context.Context, user, artifactID string) error {
	if user == "" {
		return ErrUnauthenticated
	}

	now := time.Now().UTC()

	var (
		artifact        model.Artifact
		versionsDeleted int64
		filesDeleted    int64
	)

	err := s.dbc.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND is_deleted = ?", artifactID, false).
			First(&artifact).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return fmt.Errorf("load artifact: %w", err)
		}

		if artifact.OwnerID != user {
			return ErrForbidden
		}

		res := tx.Model(&model.Artifact{}).
			Where("id = ? AND is_deleted = ?", artifactID, false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": user,
			})
		if res.Error != nil {
			return fmt.Errorf("delete artifact: %w", res.Error)
		}

		res = tx.Model(&model.Version{}).
			Where("artifact_id = ? AND is_deleted = ?", artifactID, false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": user,
			})
		if res.Error != nil {
			return fmt.Errorf("cascade versions: %w", res.Error)
		}

		versionsDeleted = res.RowsAffected

		res = tx.Model(&model.FileRecord{}).
			Where("version_id IN (?)",
				tx.Session(&gorm.Session{NewDB: true}).Model(&model.Version{}).
					Select("id").Where("artifact_id = ?", artifactID)).
			Where("is_deleted = ?", false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": user,
			})
		if res.Error != nil {
			return fmt.Errorf("cascade file records: %w", res.Error)
		}

		filesDeleted = res.RowsAffected

		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateShareToken(ctx, artifact.ShareToken)
	s.publishArtifactDeleted(ctx, &artifact, user, now, int(versionsDeleted), int(filesDeleted))

	return nil
}

// loadActive 取活跃制品.
func (s *ArtifactService) loadActive(ctx context.Context, artifactID string) (*model.Artifact, error) {
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

// invalidateShareToken 删除分享令牌缓存.
func (s *ArtifactService) invalidateShareToken(ctx context.Context, token string) {
	if s.kvc == nil {
		return
	}

	if err := s.kvc.Delete(ctx, shareTokenCacheKey(token)); err != nil {
		nlog.Logger().Warn().Err(err).Str("token", token).Msg("invalidate share token cache failed")
	}
}

func (s *ArtifactService) publishArtifactCreated(ctx context.Context, a *model.Artifact) {
	if s.mqc == nil {
		return
	}

	err := s.mqc.Publish(ctx, queue.TopicArtifactCreated, mustEventMessage(queue.TopicArtifactCreated, queue.ArtifactCreatedPayload{
		ArtifactID: a.ID,
		ShareToken: a.ShareToken,
		OwnerID:    a.OwnerID,
		Title:      a.Title,
	}))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("artifact", a.ID).Msg("publish artifact created failed")
	}
}

func (s *ArtifactService) publishArtifactDeleted(ctx context.Context, a *model.Artifact, actor string, at time.Time, versions, files int) {
	if s.mqc == nil {
		return
	}

	err := s.mqc.Publish(ctx, queue.TopicArtifactDeleted, mustEventMessage(queue.TopicArtifactDeleted, queue.ArtifactDeletedPayload{
		ArtifactID:      a.ID,
		DeletedBy:       actor,
		DeletedAt:       at,
		VersionsDeleted: versions,
		FilesDeleted:    files,
	}))
	if err != nil {
		nlog.Logger().Warn().Err(err).Str("artifact", a.ID).Msg("publish artifact deleted failed")
	}
}

// toArtifactInfo 转换为公开信息.
func toArtifactInfo(a *model.Artifact) types.ArtifactInfo {
	return types.ArtifactInfo{
		ID:          a.ID,
		ShareToken:  a.ShareToken,
		OwnerID:     a.OwnerID,
		Title:       a.Title,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
