// Package configs 管理应用程序配置，按关注点拆分为 server/db/blob/kv/mq/log 等小节.
// 支持多种配置格式（YAML、JSON、TOML、dotenv），环境变量前缀为 ARTVAULT_，
// 并可按需启用配置热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本号，构建时可通过 ldflags 覆盖.
var AppVersion = "1.0.0"

// AppConfig 全局应用程序配置.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Blob      BlobConfig      `mapstructure:"blob"`
	KV        KVConfig        `mapstructure:"kv"`
	MQ        MQConfig        `mapstructure:"mq"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Events    EventsConfig    `mapstructure:"events"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Migration MigrationConfig `mapstructure:"migration"`
}

var (
	globalConfig AppConfig
	appViper     *viper.Viper
)

// section 所有配置小节都实现 setDefaults.
type section interface {
	setDefaults(v *viper.Viper)
}

func allSections() []section {
	return []section{
		&ServerConfig{}, &DBConfig{}, &BlobConfig{}, &KVConfig{}, &MQConfig{},
		&LogConfig{}, &MetricsConfig{}, &TracingConfig{}, &EventsConfig{},
		&RateLimitConfig{}, &BreakerConfig{}, &MigrationConfig{},
	}
}

// InitConfig 加载应用程序配置. path 可以是配置文件或包含 config.* 的目录.
func InitConfig(path string) error {
	appViper = viper.New()

	for _, s := range allSections() {
		s.setDefaults(appViper)
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，Viper 按扩展名自动检测类型
		appViper.SetConfigFile(path)
	} else {
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(filepath.Join(path, "configs"))
	}

	appViper.SetEnvPrefix("ARTVAULT")
	appViper.AutomaticEnv()

	if err := appViper.ReadInConfig(); err != nil {
		// 允许无配置文件运行（全部走默认值与环境变量）
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	watchReload(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// watchReload 按需启用配置热重载.
func watchReload(v *viper.Viper, enabled bool) {
	if !enabled {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("config file changed:", e.Name)

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

// GetViper 返回全局 Viper 实例.
func GetViper() *viper.Viper {
	return appViper
}
