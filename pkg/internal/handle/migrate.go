package handle

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/configs"
	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/types"
	"github.com/clintagossett/artvault/pkg/log"
)

// MigrationCount 统计迁移进度.
//
//	@Summary		迁移进度统计
//	@Tags			迁移
//	@Produce		json
//	@Success		200	{object}	types.CountPendingResponse	"统计结果"
//	@Router			/api/v1/admin/migration/count [get]
func MigrationCount(c *gin.Context) {
	svc := service.NewMigrateService(c.Request.Context())

	res, err := svc.CountPending(c.Request.Context())
	if err != nil {
		log.Logger().Error().Err(err).Msg("count pending failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// MigrationBatch 迁移一批遗留版本.
//
//	@Summary		执行迁移批次
//	@Description	把遗留内联内容搬进块存储与文件注册表. dry_run 为真时只统计不写入.
//	@Tags			迁移
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.MigrateBatchRequest	false	"批次参数"
//	@Success		200		{object}	types.MigrateBatchResponse	"批次结果"
//	@Router			/api/v1/admin/migration/batch [post]
func MigrationBatch(c *gin.Context) {
	l := log.Logger()

	// 请求体可选，空体走配置默认值
	var req types.MigrateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		l.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	if req.BatchSize <= 0 {
		req.BatchSize = configs.GetConfig().Migration.BatchSize
	}

	svc := service.NewMigrateService(c.Request.Context())

	res, err := svc.MigrateBatch(c.Request.Context(), req.BatchSize, req.DryRun)
	if err != nil {
		l.Error().Err(err).Msg("migrate batch failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// MigrationBackfill 回填缺失的版本归属.
//
//	@Summary		回填版本归属
//	@Tags			迁移
//	@Produce		json
//	@Success		200	{object}	types.BackfillProvenanceResponse	"回填结果"
//	@Router			/api/v1/admin/migration/backfill [post]
func MigrationBackfill(c *gin.Context) {
	svc := service.NewMigrateService(c.Request.Context())

	res, err := svc.BackfillProvenance(c.Request.Context(), configs.GetConfig().Migration.BatchSize)
	if err != nil {
		log.Logger().Error().Err(err).Msg("backfill provenance failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// MigrationVerify 核对迁移完成状态.
//
//	@Summary		核对迁移状态
//	@Tags			迁移
//	@Produce		json
//	@Success		200	{object}	types.VerifyMigrationResponse	"核对结果"
//	@Router			/api/v1/admin/migration/verify [get]
func MigrationVerify(c *gin.Context) {
	svc := service.NewMigrateService(c.Request.Context())

	res, err := svc.VerifyMigration(c.Request.Context())
	if err != nil {
		log.Logger().Error().Err(err).Msg("verify migration failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// MigrationFixEntryPoints 为缺失入口的版本补入口.
//
//	@Summary		修复缺失入口
//	@Tags			迁移
//	@Produce		json
//	@Success		200	{object}	types.FixEntryPointsResponse	"修复结果"
//	@Router			/api/v1/admin/migration/fix-entrypoints [post]
func MigrationFixEntryPoints(c *gin.Context) {
	svc := service.NewMigrateService(c.Request.Context())

	res, err := svc.FixMissingEntryPoints(c.Request.Context())
	if err != nil {
		log.Logger().Error().Err(err).Msg("fix entry points failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}
