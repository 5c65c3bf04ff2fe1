package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/clintagossett/artvault/pkg/configs"
	nlog "github.com/clintagossett/artvault/pkg/log"
)

// S3Store 基于 MinIO 客户端的块存储实现.
// 对象键按摘要前两位分桶：blobs/<sha[:2]>/<sha>.
type S3Store struct {
	cli    *minio.Client
	bucket string
}

// NewS3Store 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func NewS3Store(ctx context.Context, cfg *configs.S3Config) (*S3Store, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("artvault", configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.Bucket).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("blob store connected")

	return &S3Store{cli: cli, bucket: cfg.Bucket}, nil
}

// objectKey 把引用映射为对象键.
func objectKey(ref Ref) string {
	return "blobs/" + string(ref)[:2] + "/" + string(ref)
}

// Put 写入内容. 已存在的对象直接复用，不重复上传.
func (s *S3Store) Put(ctx context.Context, data []byte) (Ref, error) {
	ref := RefFromBytes(data)

	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return "", err
	}

	if exists {
		return ref, nil
	}

	_, err = s.cli.PutObject(ctx, s.bucket, objectKey(ref),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", ref, err)
	}

	return ref, nil
}

// Get 按引用读取完整内容.
func (s *S3Store) Get(ctx context.Context, ref Ref) ([]byte, error) {
	rc, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}

	return data, nil
}

// Open 打开内容读取流.
func (s *S3Store) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	obj, err := s.cli.GetObject(ctx, s.bucket, objectKey(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", ref, err)
	}

	// GetObject 是惰性的，Stat 触发首个请求以便把 404 提前暴露出来
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()

		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}

		return nil, fmt.Errorf("stat blob %s: %w", ref, err)
	}

	return obj, nil
}

// Exists 检查块是否存在.
func (s *S3Store) Exists(ctx context.Context, ref Ref) (bool, error) {
	_, err := s.cli.StatObject(ctx, s.bucket, objectKey(ref), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}

		return false, fmt.Errorf("stat blob %s: %w", ref, err)
	}

	return true, nil
}

// Stat 返回块大小.
func (s *S3Store) Stat(ctx context.Context, ref Ref) (int64, error) {
	info, err := s.cli.StatObject(ctx, s.bucket, objectKey(ref), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}

		return 0, fmt.Errorf("stat blob %s: %w", ref, err)
	}

	return info.Size, nil
}

// Close 关闭客户端（minio 无显式关闭，接口兼容）.
func (s *S3Store) Close() error {
	return nil
}

// HealthCheck 通过列出桶验证连接.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.cli.ListBuckets(ctx)
	return err
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}

	return false
}
