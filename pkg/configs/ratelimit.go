package configs

import "github.com/spf13/viper"

// RateLimitConfig 写接口的限流配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"min=0"`
	Burst   int     `mapstructure:"burst" rule:"min=0"`
	Key     string  `mapstructure:"key"` // global / ip / header:<name>
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.key", "ip")
}
