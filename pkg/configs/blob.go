package configs

import (
	"github.com/spf13/viper"
)

// BlobType 块存储后端类型.
type BlobType string

const (
	BlobTypeS3     BlobType = "s3"
	BlobTypeMemory BlobType = "memory" // 开发/测试用
)

// BlobConfig 内容寻址块存储配置. 生产环境使用 S3/MinIO，
// memory 后端仅供本地开发与测试.
type BlobConfig struct {
	Type BlobType `mapstructure:"type" rule:"oneof=s3 memory"`
	S3   S3Config `mapstructure:"s3"`
}

// S3Config MinIO/S3 存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
}

func (c *BlobConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("blob.type", BlobTypeS3)
	v.SetDefault("blob.s3.endpoint", "localhost:9000")
	v.SetDefault("blob.s3.access_key_id", "minioadmin")
	v.SetDefault("blob.s3.secret_access_key", "minioadmin")
	v.SetDefault("blob.s3.use_ssl", false)
	v.SetDefault("blob.s3.bucket", "artvault-blobs")
	v.SetDefault("blob.s3.region", "us-east-1")
}
