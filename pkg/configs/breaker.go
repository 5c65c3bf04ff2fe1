package configs

import "github.com/spf13/viper"

// BreakerConfig 块存储读路径的熔断配置.
type BreakerConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxRequestsInHalf uint32  `mapstructure:"max_requests_in_half"`
	IntervalSeconds   int     `mapstructure:"interval_seconds"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MinRequests       uint32  `mapstructure:"min_requests"`
	FailureRate       float64 `mapstructure:"failure_rate" rule:"min=0,max=1"`
}

func (c *BreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_requests_in_half", 5)
	v.SetDefault("breaker.interval_seconds", 60)
	v.SetDefault("breaker.timeout_seconds", 30)
	v.SetDefault("breaker.min_requests", 10)
	v.SetDefault("breaker.failure_rate", 0.5)
}
