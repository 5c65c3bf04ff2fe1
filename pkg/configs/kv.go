package configs

import (
	"github.com/spf13/viper"
)

// KVConfig 键值存储配置，用于分享令牌等热点查询的缓存.
type KVConfig struct {
	Type       string             `mapstructure:"type" rule:"oneof=memory redis nats groupcache"`
	Redis      RedisKVConfig      `mapstructure:"redis"`
	NATS       NATSKVConfig       `mapstructure:"nats"`
	Groupcache GroupcacheKVConfig `mapstructure:"groupcache"`
}

// RedisKVConfig Redis KV 配置.
type RedisKVConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"   rule:"min=0,max=15"`
}

// NATSKVConfig NATS JetStream KV 配置.
type NATSKVConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"`
}

// GroupcacheKVConfig Groupcache KV 配置.
type GroupcacheKVConfig struct {
	Name       string   `mapstructure:"name"`
	CacheBytes int64    `mapstructure:"cache_bytes"`
	Self       string   `mapstructure:"self"`
	Peers      []string `mapstructure:"peers"`
}

const defaultGroupcacheBytes = 64 << 20 // 64MB

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", "memory")

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)

	v.SetDefault("kv.nats.url", "nats://localhost:4222")
	v.SetDefault("kv.nats.bucket", "artvault-kv")

	v.SetDefault("kv.groupcache.name", "artvault")
	v.SetDefault("kv.groupcache.cache_bytes", defaultGroupcacheBytes)
	v.SetDefault("kv.groupcache.self", "http://127.0.0.1:8081")
	v.SetDefault("kv.groupcache.peers", []string{})
}
