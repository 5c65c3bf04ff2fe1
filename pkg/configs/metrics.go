package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`        // watermill 指标服务地址
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"` // 是否收集 Go 运行时指标
	Pprof          bool   `mapstructure:"pprof"`           // 是否注册 pprof 端点
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", ":9091")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
}
