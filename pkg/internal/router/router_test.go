package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appcache "github.com/clintagossett/artvault/pkg/cache"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/router"
	"github.com/clintagossett/artvault/pkg/internal/storage"
	blobc "github.com/clintagossett/artvault/pkg/internal/storage/blob"
	dbc "github.com/clintagossett/artvault/pkg/internal/storage/db"
	kvc "github.com/clintagossett/artvault/pkg/internal/storage/kv"
	"github.com/clintagossett/artvault/pkg/internal/types"
	"github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/middleware"
)

// newTestEngine 构造挂好存储中间件与全部路由的测试引擎.
func newTestEngine(t *testing.T, opts ...router.Option) *gin.Engine {
	t.Helper()

	// 先完成 logger 的懒初始化, 避免其 gin.SetMode 副作用覆盖 TestMode.
	log.Init()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := gdb.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	store, err := blobc.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}

	kvs, err := kvc.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("new memory kv: %v", err)
	}

	mgr := &storage.Manager{
		DB:   &dbc.Client{DB: gdb},
		Blob: &blobc.Client{Store: store},
		KV:   &kvc.Client{KVStore: kvs},
	}

	engine := gin.New()
	engine.Use(middleware.StorageMiddleware(mgr))
	router.RegisterAll(engine, opts...)

	return engine
}

// doJSON 发送 JSON 请求并返回响应.
func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	return w
}

// createArtifact 走 HTTP 创建一个 html 制品.
func createArtifact(t *testing.T, engine *gin.Engine, content string) types.CreateArtifactResponse {
	t.Helper()

	w := doJSON(t, engine, http.MethodPost, "/api/v1/artifacts", gin.H{
		"title":     "Demo",
		"file_type": "html",
		"content":   content,
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("create artifact: status %d body %s", w.Code, w.Body.String())
	}

	var resp types.CreateArtifactResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return resp
}

// TestShareLinkLifecycle 创建制品后分享链接立即可用，带不可变缓存头.
func TestShareLinkLifecycle(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<html>hello</html>")

	w := doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/v1/", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve: status %d body %s", w.Code, w.Body.String())
	}

	if w.Body.String() != "<html>hello</html>" {
		t.Errorf("body mismatch: %q", w.Body.String())
	}

	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Errorf("unexpected Cache-Control: %q", cc)
	}

	if ao := w.Header().Get("Access-Control-Allow-Origin"); ao != "*" {
		t.Errorf("unexpected Access-Control-Allow-Origin: %q", ao)
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("unexpected Content-Type: %q", ct)
	}
}

// TestShareLinkCacheHitKeepsHeaders 分享路径挂响应缓存后，命中缓存的
// 成功响应仍要带不可变缓存头和跨域头.
func TestShareLinkCacheHitKeepsHeaders(t *testing.T) {
	kvs, err := kvc.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("new memory kv: %v", err)
	}

	serveCache := middleware.CacheMiddleware(middleware.DefaultCacheConfig(appcache.NewCache(kvs)))
	engine := newTestEngine(t, router.WithServeCache(serveCache))

	art := createArtifact(t, engine, "<html>hello</html>")
	path := "/artifact/" + art.Artifact.ShareToken + "/v1/"

	w := doJSON(t, engine, http.MethodGet, path, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first serve: status %d body %s", w.Code, w.Body.String())
	}

	// 回填是异步的，轮询到命中为止
	var hit *httptest.ResponseRecorder

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := doJSON(t, engine, http.MethodGet, path, nil, nil)
		if w.Header().Get("X-Cache") == "HIT" {
			hit = w
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	if hit == nil {
		t.Fatal("serve cache never hit")
	}

	if hit.Body.String() != "<html>hello</html>" {
		t.Errorf("body mismatch: %q", hit.Body.String())
	}

	if cc := hit.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Errorf("cache hit lost Cache-Control: %q", cc)
	}

	if ao := hit.Header().Get("Access-Control-Allow-Origin"); ao != "*" {
		t.Errorf("cache hit lost Access-Control-Allow-Origin: %q", ao)
	}
}

// TestVersionAddressing 多版本并存，按号码精确访问，旧链接不受新版本影响.
func TestVersionAddressing(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<p>v1</p>")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/artifacts/"+art.Artifact.ID+"/versions", gin.H{
		"file_type": "html",
		"content":   "<p>v2</p>",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create version: status %d body %s", w.Code, w.Body.String())
	}

	for i, want := range []string{"<p>v1</p>", "<p>v2</p>"} {
		path := fmt.Sprintf("/artifact/%s/v%d/", art.Artifact.ShareToken, i+1)

		w := doJSON(t, engine, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Errorf("v%d: status %d body %q", i+1, w.Code, w.Body.String())
		}
	}

	// 列表按版本号降序
	w = doJSON(t, engine, http.MethodGet, "/api/v1/artifacts/"+art.Artifact.ID+"/versions", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list versions: status %d", w.Code)
	}

	var list types.ListVersionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}

	if len(list.Versions) != 2 || list.Versions[0].VersionNumber != 2 {
		t.Errorf("unexpected version list: %+v", list.Versions)
	}
}

// TestDeleteVersionGuards 删除版本后其链接 404，最后一个版本拒绝删除.
func TestDeleteVersionGuards(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<p>v1</p>")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/artifacts/"+art.Artifact.ID+"/versions", gin.H{
		"file_type": "html",
		"content":   "<p>v2</p>",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create version: status %d", w.Code)
	}

	var created types.CreateVersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode version: %v", err)
	}

	w = doJSON(t, engine, http.MethodDelete, "/api/v1/versions/"+created.Version.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete version: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/v2/", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted version should 404, got %d", w.Code)
	}

	// v1 仍然可用
	w = doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/v1/", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("v1 should survive, got %d", w.Code)
	}

	// 删除最后一个活跃版本 → 409
	w = doJSON(t, engine, http.MethodDelete, "/api/v1/versions/"+art.Version.ID, nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("deleting last version should 409, got %d body %s", w.Code, w.Body.String())
	}
}

// TestDeleteArtifactCascades 删除制品后管理面与分享面都不可见.
func TestDeleteArtifactCascades(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<p>v1</p>")

	w := doJSON(t, engine, http.MethodDelete, "/api/v1/artifacts/"+art.Artifact.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete artifact: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/artifacts/"+art.Artifact.ID, nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted artifact should 404 in API, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/v1/", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted artifact should 404 on share link, got %d", w.Code)
	}
}

// TestServeErrorShapes 非法版本选择器与未知令牌的错误形态.
func TestServeErrorShapes(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<p>v1</p>")

	w := doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/latest/", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad selector should 400, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}

	if body["error"] != "Invalid version format" {
		t.Errorf("unexpected error message: %q", body["error"])
	}

	w = doJSON(t, engine, http.MethodGet, "/artifact/ar_unknown/v1/", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown token should 404, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/artifact/"+art.Artifact.ShareToken+"/v7/", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing version should 404, got %d", w.Code)
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}

	if body["error"] != "Version 7 not found" {
		t.Errorf("unexpected error message: %q", body["error"])
	}
}

// TestOwnershipForbidden 其他用户不能改动或删除他人的制品.
func TestOwnershipForbidden(t *testing.T) {
	engine := newTestEngine(t)

	art := createArtifact(t, engine, "<p>v1</p>")

	intruder := map[string]string{"X-User": "intruder@example.com"}

	w := doJSON(t, engine, http.MethodDelete, "/api/v1/artifacts/"+art.Artifact.ID, nil, intruder)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign delete should 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/api/v1/artifacts/"+art.Artifact.ID+"/versions", gin.H{
		"file_type": "html",
		"content":   "<p>evil</p>",
	}, intruder)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign version create should 403, got %d", w.Code)
	}
}

// TestMigrationRoutesRequireRole 迁移运维接口要求 operator 以上角色.
func TestMigrationRoutesRequireRole(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/admin/migration/count", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("missing role should 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/admin/migration/count", nil, map[string]string{"X-Role": "operator"})
	if w.Code != http.StatusOK {
		t.Errorf("operator should pass, got %d body %s", w.Code, w.Body.String())
	}

	var counts types.CountPendingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}

	if counts.Total != 0 {
		t.Errorf("fresh database should have 0 versions, got %d", counts.Total)
	}
}
