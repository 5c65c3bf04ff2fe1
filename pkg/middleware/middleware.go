// Package middleware 提供中间件
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/metrics"
)

// PrometheusMiddleware 创建Gin的Prometheus中间件.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// 执行下一个中间件/处理器
		c.Next()

		// 用路由模板而非真实路径，避免 token 导致标签爆炸
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		duration := time.Since(start).Seconds()

		metrics.RequestCounter.WithLabelValues(method, endpoint).Inc()
		metrics.RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	}
}
