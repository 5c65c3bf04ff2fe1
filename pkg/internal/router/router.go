// Package router 管理路由配置，用于设置HTTP服务的路由规则.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/middleware"
)

// RegisterAll 把全部路由绑定到 gin 引擎.
// /api/v1 下是需要身份的管理面，/a 下是公开的分享解析面.
func RegisterAll(engine *gin.Engine, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	api := engine.Group("/api/v1")
	{
		RegisterArtifactRoutes(api)
		RegisterHealthCheckRoute(api)
		RegisterSchedulerRoutes(api)

		admin := api.Group("/admin", middleware.RoleMiddleware(), middleware.RequireMinRole(middleware.RoleOperator))
		RegisterMigrationRoutes(admin)
	}

	RegisterServeRoutes(engine, o.serveCache)
	RegisterSwaggerRoute(engine)
}

// options 路由注册的可选项.
type options struct {
	serveCache gin.HandlerFunc
}

// Option 配置路由注册.
type Option func(*options)

// WithServeCache 给分享解析路径挂响应缓存中间件.
func WithServeCache(h gin.HandlerFunc) Option {
	return func(o *options) { o.serveCache = h }
}
