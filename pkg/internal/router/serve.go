package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/handle"
)

// RegisterServeRoutes 注册公开的分享解析路由，无需认证.
// 裸路径 /artifact/:token/v1 由 gin 的 RedirectTrailingSlash 归一到通配路由.
func RegisterServeRoutes(engine *gin.Engine, cache gin.HandlerFunc) {
	serveRoutes := engine.Group("/artifact")

	if cache != nil {
		serveRoutes.Use(cache)
	}

	serveRoutes.GET("/:token/:version/*filepath", handle.ServeArtifact)
}
