package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// DBType 数据库类型.
type DBType string

const (
	PostgreSQL DBType = "postgresql"
	MySQL      DBType = "mysql"
	SQLite     DBType = "sqlite"
)

const (
	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBUser         = "postgres"
	DefaultDBName         = "artvault"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 0 // 0 表示不限制
	DefaultDBMaxIdleConns = 5
)

// DBConfig 数据库配置.
type DBConfig struct {
	Type         DBType `mapstructure:"type"           rule:"oneof=postgresql mysql sqlite"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"           rule:"min=1,max=65535"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" rule:"min=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" rule:"min=0"`
}

// GetDSN 按数据库类型拼接连接串.
func (c *DBConfig) GetDSN() string {
	switch c.Type {
	case PostgreSQL:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	case MySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case SQLite:
		return fmt.Sprintf("file:%s.db", c.Database)
	default:
		return ""
	}
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", PostgreSQL)
	v.SetDefault("db.host", DefaultDBHost)
	v.SetDefault("db.port", DefaultDBPort)
	v.SetDefault("db.user", DefaultDBUser)
	v.SetDefault("db.password", "")
	v.SetDefault("db.database", DefaultDBName)
	v.SetDefault("db.sslmode", DefaultDBSSLMode)
	v.SetDefault("db.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("db.max_idle_conns", DefaultDBMaxIdleConns)
}
