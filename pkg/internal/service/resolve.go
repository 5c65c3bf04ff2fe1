package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/clintagossett/artvault/pkg/configs"
	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/storage/blob"
	"github.com/clintagossett/artvault/pkg/internal/storage/db"
	"github.com/clintagossett/artvault/pkg/internal/storage/kv"
	"github.com/clintagossett/artvault/pkg/metrics"
	nlog "github.com/clintagossett/artvault/pkg/log"
)

// versionSelectorRe 版本选择器形如 v3，其余一律 400.
var versionSelectorRe = regexp.MustCompile(`^v(\d+)$`)

// 解析结果计数的 stage 标签.
const (
	stageOK           = "ok"
	stageBadVersion   = "bad_version"
	stageArtifactMiss = "artifact_miss"
	stageVersionMiss  = "version_miss"
	stageFileMiss     = "file_miss"
	stageStorageError = "storage_error"
)

// Resolution 一次成功解析的产物：字节流 + MIME + 大小.
type Resolution struct {
	Data     []byte
	MimeType string
	Size     int64
}

// ResolveError 解析失败，携带 HTTP 状态码与区分失败阶段的文案.
type ResolveError struct {
	Status  int
	Message string
}

func (e *ResolveError) Error() string { return e.Message }

// blobBreaker 块存储读取的熔断器，懒初始化全局单例.
var (
	blobBreaker     *gobreaker.CircuitBreaker
	blobBreakerOnce sync.Once
)

func getBlobBreaker() *gobreaker.CircuitBreaker {
	blobBreakerOnce.Do(func() {
		cfg := configs.GetConfig().Breaker
		if !cfg.Enabled {
			return
		}

		blobBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "blob-read",
			MaxRequests: cfg.MaxRequestsInHalf,
			Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
			Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.MinRequests {
					return false
				}

				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)

				return failureRate >= cfg.FailureRate
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				nlog.Logger().Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		})
	})

	return blobBreaker
}

// ResolveService 解析路由：把 (分享令牌, 版本选择器, 路径) 翻译为字节流.
// 完全无状态只读，每个迁移阶段都是可能的提前退出.
type ResolveService struct {
	dbc   *db.Client
	blobc *blob.Client
	kvc   *kv.Client
}

// NewResolveService 创建并返回一个新的 ResolveService 实例.
func NewResolveService(c context.Context) *ResolveService {
	return &ResolveService{
		dbc:   ctxPkg.GetDBClient(c),
		blobc: ctxPkg.GetBlobClient(c),
		kvc:   ctxPkg.GetKVClient(c),
	}
}

// Resolve 执行解析状态机. 错误按阶段给出可区分的文案，
// 让用户能分清坏链接和坏路径；任何失败都是终态，不做重试.
func (s *ResolveService) Resolve(ctx context.Context, token, selector, rawPath string) (*Resolution, *ResolveError) {
	// 1. 版本选择器必须形如 v<N>
	m := versionSelectorRe.FindStringSubmatch(selector)
	if m == nil {
		metrics.ResolveCounter.WithLabelValues(stageBadVersion).Inc()

		return nil, &ResolveError{Status: http.StatusBadRequest, Message: "Invalid version format"}
	}

	number, err := strconv.Atoi(m[1])
	if err != nil {
		metrics.ResolveCounter.WithLabelValues(stageBadVersion).Inc()

		return nil, &ResolveError{Status: http.StatusBadRequest, Message: "Invalid version format"}
	}

	// 2. 分享令牌 → 制品，软删除视为缺失
	artifactSvc := &ArtifactService{dbc: s.dbc, blobc: s.blobc, kvc: s.kvc}

	artifact, err := artifactSvc.ResolveByShareToken(ctx, token)
	if err != nil {
		metrics.ResolveCounter.WithLabelValues(stageArtifactMiss).Inc()

		return nil, &ResolveError{Status: http.StatusNotFound, Message: "Artifact not found"}
	}

	// 3. 号码 → 版本，软删除的版本永不被服务
	versionSvc := &VersionService{dbc: s.dbc, blobc: s.blobc}

	version, err := versionSvc.GetVersionByNumber(ctx, artifact.ID, number)
	if err != nil {
		metrics.ResolveCounter.WithLabelValues(stageVersionMiss).Inc()

		return nil, &ResolveError{Status: http.StatusNotFound, Message: fmt.Sprintf("Version %d not found", number)}
	}

	// 4. 入口兜底：未指定路径或约定默认值时替换为版本入口
	effectivePath := rawPath
	if (effectivePath == "" || effectivePath == DefaultEntryPointHTML) && version.EntryPoint != "" {
		effectivePath = version.EntryPoint
	}

	if decoded, derr := url.PathUnescape(effectivePath); derr == nil {
		effectivePath = decoded
	}

	// 5. 路径 → 文件记录
	fileSvc := &FileService{dbc: s.dbc, blobc: s.blobc}

	rec, err := fileSvc.GetActiveFile(ctx, version.ID, effectivePath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// 尚未迁移到统一存储的遗留版本直接服务内联内容
			if res := s.serveInline(version, effectivePath); res != nil {
				metrics.ResolveCounter.WithLabelValues(stageOK).Inc()

				return res, nil
			}

			metrics.ResolveCounter.WithLabelValues(stageFileMiss).Inc()

			return nil, &ResolveError{Status: http.StatusNotFound, Message: "File not found"}
		}

		metrics.ResolveCounter.WithLabelValues(stageStorageError).Inc()

		return nil, &ResolveError{Status: http.StatusInternalServerError, Message: "Storage error"}
	}

	// 6. 块引用 → 字节流
	data, err := s.fetchBlob(ctx, blob.Ref(rec.BlobRef))
	if err != nil {
		nlog.Logger().Error().Err(err).
			Str("artifact", artifact.ID).
			Str("blob_ref", rec.BlobRef).
			Msg("blob fetch failed")
		metrics.ResolveCounter.WithLabelValues(stageStorageError).Inc()

		return nil, &ResolveError{Status: http.StatusInternalServerError, Message: "Storage error"}
	}

	metrics.ResolveCounter.WithLabelValues(stageOK).Inc()

	return &Resolution{Data: data, MimeType: rec.MimeType, Size: int64(len(data))}, nil
}

// fetchBlob 经熔断器读取块内容，熔断关闭时直连.
func (s *ResolveService) fetchBlob(ctx context.Context, ref blob.Ref) ([]byte, error) {
	cb := getBlobBreaker()
	if cb == nil {
		return s.blobc.Get(ctx, ref)
	}

	result, err := cb.Execute(func() (any, error) {
		return s.blobc.Get(ctx, ref)
	})
	if err != nil {
		return nil, err
	}

	data, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected breaker result type")
	}

	return data, nil
}

// serveInline 遗留版本的内联内容兜底：仅当请求命中版本入口且
// 内联字段非空时生效，返回 nil 表示不适用.
func (s *ResolveService) serveInline(v *model.Version, effectivePath string) *Resolution {
	if v.InlineContent == "" {
		return nil
	}

	entry := v.EntryPoint
	if entry == "" {
		entry = defaultEntryPointForFileType(v.FileType)
	}

	if effectivePath != entry {
		return nil
	}

	nlog.Logger().Info().
		Str("version", v.ID).
		Msg("serving legacy inline content, version pending migration")

	data := []byte(v.InlineContent)

	return &Resolution{
		Data:     data,
		MimeType: mimeTypeForFileType(v.FileType),
		Size:     int64(len(data)),
	}
}
