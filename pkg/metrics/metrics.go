// Package metrics 提供 Prometheus 监控指标，覆盖 HTTP 请求、分享解析与迁移批次.
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册 pprof 端点

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clintagossett/artvault/pkg/configs"
)

var (
	// RequestCounter HTTP 请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)

	// RequestDuration HTTP 请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ResolveCounter 分享解析结果计数，stage 取值 ok/bad_version/artifact_miss/version_miss/file_miss/storage_error.
	ResolveCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolve_total",
			Help: "Share link resolution outcomes by stage",
		},
		[]string{"stage"},
	)

	// MigrationCounter 迁移批次处理行数计数，result 取值 migrated/skipped/error.
	MigrationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_migration_rows_total",
			Help: "Unified-storage migration row outcomes",
		},
		[]string{"result"},
	)

	registry = prometheus.NewRegistry()
)

// InitMetrics 初始化指标注册表.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.RuntimeMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	registry.MustRegister(RequestCounter, RequestDuration, ResolveCounter, MigrationCounter)

	return nil
}

// StartMetricsServer 在 debug 引擎上暴露 /metrics（以及可选的 pprof）.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

// GetRegistry 获取 Prometheus 注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
