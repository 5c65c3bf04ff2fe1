package configs

import (
	"github.com/spf13/viper"
)

// TracingConfig 分布式追踪配置，支持 OTLP 与 Zipkin 导出.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	ExporterType   string  `mapstructure:"exporter_type"` // otlp-http / otlp-grpc / zipkin
	Endpoint       string  `mapstructure:"endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" rule:"min=0,max=1"`
}

func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "artvault")
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", "otlp-http")
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
}
