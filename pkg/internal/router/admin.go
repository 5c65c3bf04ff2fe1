package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/handle"
)

// RegisterMigrationRoutes 注册统一存储迁移的运维路由.
func RegisterMigrationRoutes(g *gin.RouterGroup) {
	migrationRoutes := g.Group("/migration")
	{
		migrationRoutes.GET("/count", handle.MigrationCount)
		migrationRoutes.POST("/batch", handle.MigrationBatch)
		migrationRoutes.POST("/backfill", handle.MigrationBackfill)
		migrationRoutes.GET("/verify", handle.MigrationVerify)
		migrationRoutes.POST("/fix-entrypoints", handle.MigrationFixEntryPoints)
	}
}
