package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/clintagossett/artvault/pkg/cache"
)

const (
	// DefaultMaxBodyBytes 超过该体积的响应不进缓存.
	DefaultMaxBodyBytes = 1 << 20 // 1MB

	defaultCacheTTL = 30 * time.Second
)

// CacheConfig 响应缓存中间件配置. 主要服务于分享解析路径：
// 版本内容不可变，同一 URL 的重复请求可以直接吃缓存.
type CacheConfig struct {
	Cache        *appcache.Cache // 必须: 业务注入的 Cache 实例
	TTL          time.Duration
	MaxBodyBytes int
	BypassHeader string // 请求头存在该 header(任意值) 则跳过缓存
}

// DefaultCacheConfig 返回一份默认配置.
func DefaultCacheConfig(c *appcache.Cache) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          defaultCacheTTL,
		MaxBodyBytes: DefaultMaxBodyBytes,
		BypassHeader: "X-Cache-Bypass",
	}
}

// cachedHeaders 随条目一起缓存并在命中时回放的响应头.
// 分享路径的成功响应依赖不可变缓存头和跨域头，命中缓存不能丢.
var cachedHeaders = []string{"Cache-Control", "Access-Control-Allow-Origin"}

// responseCacheEntry 序列化存储结构.
type responseCacheEntry struct {
	Status      int               `json:"s"`
	ContentType string            `json:"c,omitempty"`
	Body        []byte            `json:"b,omitempty"`
	ETag        string            `json:"e,omitempty"`
	Headers     map[string]string `json:"h,omitempty"`
}

// CacheMiddleware 构造响应缓存中间件. 只缓存 GET 200，
// 支持 ETag / If-None-Match，任何缓存失败不影响主流程.
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: Cache cannot be nil")
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}

	if cfg.BypassHeader == "" {
		cfg.BypassHeader = "X-Cache-Bypass"
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.GetHeader(cfg.BypassHeader) != "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("rc:%x", xxhash.Sum64String(c.Request.URL.RequestURI()))

		if entry, err := appcache.Get[responseCacheEntry](c.Request.Context(), cfg.Cache, key); err == nil {
			serveCached(c, entry)
			return
		}

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer, max: cfg.MaxBodyBytes}
		c.Writer = bw

		c.Next()

		storeResponse(c, cfg, key, bw)
	}
}

// serveCached 用缓存条目响应，命中 If-None-Match 时走 304.
func serveCached(c *gin.Context, entry responseCacheEntry) {
	c.Header("X-Cache", "HIT")

	for k, v := range entry.Headers {
		c.Header(k, v)
	}

	if entry.ETag != "" {
		c.Header("ETag", entry.ETag)

		if c.GetHeader("If-None-Match") == entry.ETag {
			c.AbortWithStatus(http.StatusNotModified)
			return
		}
	}

	c.Data(entry.Status, entry.ContentType, entry.Body)
	c.Abort()
}

// storeResponse 把 200 响应写回缓存，超限或非 200 跳过.
func storeResponse(c *gin.Context, cfg CacheConfig, key string, bw *bodyCaptureWriter) {
	status := c.Writer.Status()
	if status != http.StatusOK || bw.truncated {
		return
	}

	body := bytes.Clone(bw.buf.Bytes())
	entry := responseCacheEntry{
		Status:      status,
		ContentType: c.Writer.Header().Get("Content-Type"),
		Body:        body,
		ETag:        fmt.Sprintf("\"%x\"", xxhash.Sum64(body)),
	}

	for _, k := range cachedHeaders {
		if v := c.Writer.Header().Get(k); v != "" {
			if entry.Headers == nil {
				entry.Headers = map[string]string{}
			}

			entry.Headers[k] = v
		}
	}

	// 异步回填，不阻塞响应
	go func(ctx context.Context) {
		_ = appcache.Set(ctx, cfg.Cache, key, entry, cfg.TTL)
	}(context.WithoutCancel(c.Request.Context()))
}

// bodyCaptureWriter 包装响应写入用于捕获 body.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf       bytes.Buffer
	max       int
	truncated bool
}

// Write 捕获响应体，超过上限后停止捕获并标记截断.
func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if w.max == 0 {
		w.buf.Write(b)
		return w.ResponseWriter.Write(b)
	}

	if w.truncated {
		return w.ResponseWriter.Write(b)
	}

	remain := w.max - w.buf.Len()
	if remain <= 0 {
		w.truncated = true
		return w.ResponseWriter.Write(b)
	}

	if len(b) > remain {
		w.buf.Write(b[:remain])
		w.truncated = true
	} else {
		w.buf.Write(b)
	}

	return w.ResponseWriter.Write(b)
}
