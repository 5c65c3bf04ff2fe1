package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/configs"
	"github.com/clintagossett/artvault/pkg/internal/handle"
	"github.com/clintagossett/artvault/pkg/middleware"
)

// RegisterArtifactRoutes 注册制品与版本管理路由.
func RegisterArtifactRoutes(g *gin.RouterGroup) {
	// 写接口统一限流
	limiter := middleware.RateLimitMiddleware(configs.GetConfig().RateLimit)

	artifactRoutes := g.Group("/artifacts")
	{
		artifactRoutes.POST("", limiter, handle.CreateArtifact)
		artifactRoutes.GET("", handle.ListArtifacts)

		singleGroup := artifactRoutes.Group("/:id")
		{
			singleGroup.GET("", handle.GetArtifact)
			singleGroup.PATCH("", limiter, handle.UpdateArtifact)
			singleGroup.DELETE("", limiter, handle.DeleteArtifact)

			// 版本账本
			versionGroup := singleGroup.Group("/versions")
			{
				versionGroup.GET("", handle.ListVersions)
				versionGroup.POST("", limiter, handle.CreateVersion)
			}
		}
	}

	// 版本直接寻址（版本 ID 全局唯一）
	versionRoutes := g.Group("/versions/:id")
	{
		versionRoutes.DELETE("", limiter, handle.DeleteVersion)
		versionRoutes.PATCH("/name", limiter, handle.UpdateVersionName)
		versionRoutes.GET("/files", handle.ListVersionFiles)
	}
}
