package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/storage"
	blobc "github.com/clintagossett/artvault/pkg/internal/storage/blob"
	dbc "github.com/clintagossett/artvault/pkg/internal/storage/db"
	kvc "github.com/clintagossett/artvault/pkg/internal/storage/kv"
	"github.com/clintagossett/artvault/pkg/internal/types"
)

// newTestContext 构造注入了内存存储的测试上下文：
// sqlite 内存库 + 内存块存储 + 内存 KV，消息队列留空.
func newTestContext(t *testing.T) context.Context {
	t.Helper()

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

	return ctxPkg.WithStorageManager(context.Background(), mgr)
}

// mustCreateArtifact 创建一个 html 制品供后续用例使用.
func mustCreateArtifact(t *testing.T, ctx context.Context, owner string) *types.CreateArtifactResponse {
	t.Helper()

	svc := service.NewArtifactService(ctx)

	resp, err := svc.CreateArtifact(ctx, owner, &types.CreateArtifactRequest{
		Title:    "Demo",
		FileType: "html",
		Content:  "<html><body>v1</body></html>",
	})
	if err != nil {
		t.Fatalf("create artifact: %v", err)
	}

	return resp
}

// TestCreateArtifactCreatesFirstVersion 创建制品时应同时生成 1 号版本与文件记录.
func TestCreateArtifactCreatesFirstVersion(t *testing.T) {
	ctx := newTestContext(t)

	resp := mustCreateArtifact(t, ctx, "user-1")

	if resp.Artifact.ShareToken == "" {
		t.Error("expected non-empty share token")
	}

	if resp.Version.VersionNumber != 1 {
		t.Errorf("expected version number 1, got %d", resp.Version.VersionNumber)
	}

	if resp.Version.EntryPoint != "index.html" {
		t.Errorf("expected entry point index.html, got %q", resp.Version.EntryPoint)
	}

	files, err := service.NewFileService(ctx).ListFiles(ctx, resp.Version.ID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("expected 1 file record, got %d", len(files))
	}

	data, err := ctxPkg.GetBlobClient(ctx).Get(ctx, blobc.Ref(files[0].BlobRef))
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}

	if string(data) != "<html><body>v1</body></html>" {
		t.Errorf("blob content mismatch: %q", data)
	}
}

// TestVersionNumberNeverReused 删除版本后新版本号继续递增，号码永不复用.
func TestVersionNumberNeverReused(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	v2, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>v2</p>",
	})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if v2.Version.VersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", v2.Version.VersionNumber)
	}

	if err := vsvc.SoftDeleteVersion(ctx, owner, v2.Version.ID); err != nil {
		t.Fatalf("delete v2: %v", err)
	}

	v3, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>v3</p>",
	})
	if err != nil {
		t.Fatalf("create v3: %v", err)
	}

	// 2 号已被删除版本占用，新版本必须是 3
	if v3.Version.VersionNumber != 3 {
		t.Errorf("expected version 3 after deleting v2, got %d", v3.Version.VersionNumber)
	}

	list, err := vsvc.ListActiveVersions(ctx, art.Artifact.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}

	if len(list.Versions) != 2 {
		t.Fatalf("expected 2 active versions, got %d", len(list.Versions))
	}

	// 降序：最新在前
	if list.Versions[0].VersionNumber != 3 || list.Versions[1].VersionNumber != 1 {
		t.Errorf("unexpected ordering: %d, %d", list.Versions[0].VersionNumber, list.Versions[1].VersionNumber)
	}
}

// TestSoftDeleteLastActiveVersion 删除仅存的活跃版本必须拒绝.
func TestSoftDeleteLastActiveVersion(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	err := vsvc.SoftDeleteVersion(ctx, owner, art.Version.ID)
	if err != service.ErrLastActiveVersion {
		t.Fatalf("expected ErrLastActiveVersion, got %v", err)
	}

	// 版本依旧可用
	latest, err := vsvc.LatestActiveVersion(ctx, art.Artifact.ID)
	if err != nil {
		t.Fatalf("latest active version: %v", err)
	}

	if latest.VersionNumber != 1 {
		t.Errorf("expected version 1 still active, got %d", latest.VersionNumber)
	}
}

// TestSoftDeleteVersionCascade 删除版本级联其文件记录，共享同一删除信息，
// 重复删除返回 NotFound 且不覆盖原始删除信息.
func TestSoftDeleteVersionCascade(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	v2, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>v2</p>",
	})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if err := vsvc.SoftDeleteVersion(ctx, owner, v2.Version.ID); err != nil {
		t.Fatalf("delete v2: %v", err)
	}

	db := ctxPkg.GetDBClient(ctx).GetDB()

	var version model.Version
	if err := db.Where("id = ?", v2.Version.ID).First(&version).Error; err != nil {
		t.Fatalf("load version: %v", err)
	}

	if !version.IsDeleted || version.DeletedAt == nil || version.DeletedBy != owner {
		t.Fatalf("version not soft-deleted correctly: %+v", version.Lifecycle)
	}

	var recs []model.FileRecord
	if err := db.Where("version_id = ?", v2.Version.ID).Find(&recs).Error; err != nil {
		t.Fatalf("load file records: %v", err)
	}

	for _, r := range recs {
		if !r.IsDeleted || r.DeletedBy != owner {
			t.Errorf("file record %s not cascaded", r.ID)
		}

		if r.DeletedAt == nil || !r.DeletedAt.Equal(*version.DeletedAt) {
			t.Errorf("file record %s deleted_at differs from version", r.ID)
		}
	}

	// 已删除版本再次删除：按活跃行查找，应当 NotFound
	if err := vsvc.SoftDeleteVersion(ctx, owner, v2.Version.ID); err != service.ErrNotFound {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

// TestSoftDeleteVersionForbidden 非拥有者不能删除版本.
func TestSoftDeleteVersionForbidden(t *testing.T) {
	ctx := newTestContext(t)

	art := mustCreateArtifact(t, ctx, "user-1")
	vsvc := service.NewVersionService(ctx)

	_, err := vsvc.CreateVersion(ctx, "user-1", art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>v2</p>",
	})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if err := vsvc.SoftDeleteVersion(ctx, "intruder", art.Version.ID); err != service.ErrForbidden {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

// TestUpdateVersionName 设置、清空与超长版本名.
func TestUpdateVersionName(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	name := "release candidate"
	if err := vsvc.UpdateVersionName(ctx, owner, art.Version.ID, &name); err != nil {
		t.Fatalf("set name: %v", err)
	}

	v, err := vsvc.GetVersion(ctx, art.Version.ID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}

	if v.VersionName != name {
		t.Errorf("expected name %q, got %q", name, v.VersionName)
	}

	// nil 清空
	if err := vsvc.UpdateVersionName(ctx, owner, art.Version.ID, nil); err != nil {
		t.Fatalf("clear name: %v", err)
	}

	v, err = vsvc.GetVersion(ctx, art.Version.ID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}

	if v.VersionName != "" {
		t.Errorf("expected cleared name, got %q", v.VersionName)
	}

	// 超过 100 字符拒绝
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}

	longName := string(long)

	err = vsvc.UpdateVersionName(ctx, owner, art.Version.ID, &longName)
	if err == nil || service.HTTPStatus(err) != 400 {
		t.Errorf("expected validation error for 101-char name, got %v", err)
	}

	// 长度按字符计：60 个汉字（180 字节）在上限之内
	wide := strings.Repeat("版", 60)
	if err := vsvc.UpdateVersionName(ctx, owner, art.Version.ID, &wide); err != nil {
		t.Fatalf("set multibyte name: %v", err)
	}

	v, err = vsvc.GetVersion(ctx, art.Version.ID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}

	if v.VersionName != wide {
		t.Errorf("expected multibyte name kept, got %q", v.VersionName)
	}

	// 101 个汉字超限
	tooWide := strings.Repeat("版", 101)

	err = vsvc.UpdateVersionName(ctx, owner, art.Version.ID, &tooWide)
	if err == nil || service.HTTPStatus(err) != 400 {
		t.Errorf("expected validation error for 101-rune name, got %v", err)
	}
}

// TestSoftDeleteArtifactCascade 删除制品级联所有活跃版本与文件，
// 共享同一删除信息；先删的版本保留原始删除信息.
func TestSoftDeleteArtifactCascade(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	asvc := service.NewArtifactService(ctx)
	vsvc := service.NewVersionService(ctx)

	v2, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>v2</p>",
	})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}

	// 先单独删掉 v2，记录其删除时间
	if err := vsvc.SoftDeleteVersion(ctx, "moderator", v2.Version.ID); err != nil {
		t.Fatalf("delete v2: %v", err)
	}

	db := ctxPkg.GetDBClient(ctx).GetDB()

	var before model.Version
	if err := db.Where("id = ?", v2.Version.ID).First(&before).Error; err != nil {
		t.Fatalf("load v2: %v", err)
	}

	if err := asvc.SoftDeleteArtifact(ctx, owner, art.Artifact.ID); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}

	var artifact model.Artifact
	if err := db.Where("id = ?", art.Artifact.ID).First(&artifact).Error; err != nil {
		t.Fatalf("load artifact: %v", err)
	}

	if !artifact.IsDeleted || artifact.DeletedBy != owner {
		t.Fatalf("artifact not soft-deleted: %+v", artifact.Lifecycle)
	}

	var v1 model.Version
	if err := db.Where("id = ?", art.Version.ID).First(&v1).Error; err != nil {
		t.Fatalf("load v1: %v", err)
	}

	if !v1.IsDeleted || v1.DeletedBy != owner {
		t.Fatalf("v1 not cascaded: %+v", v1.Lifecycle)
	}

	if v1.DeletedAt == nil || !v1.DeletedAt.Equal(*artifact.DeletedAt) {
		t.Error("v1 deleted_at differs from artifact")
	}

	// 先删的 v2 保留原始删除者与时间
	var after model.Version
	if err := db.Where("id = ?", v2.Version.ID).First(&after).Error; err != nil {
		t.Fatalf("reload v2: %v", err)
	}

	if after.DeletedBy != "moderator" {
		t.Errorf("expected v2 deleted_by preserved as moderator, got %q", after.DeletedBy)
	}

	if after.DeletedAt == nil || !after.DeletedAt.Equal(*before.DeletedAt) {
		t.Error("v2 deleted_at was overwritten by cascade")
	}

	// 重复删除整个制品应当 NotFound（活跃行查不到）
	if err := asvc.SoftDeleteArtifact(ctx, owner, art.Artifact.ID); err != service.ErrNotFound {
		t.Errorf("expected ErrNotFound on repeat artifact delete, got %v", err)
	}
}

// TestResolveByShareTokenAfterDelete 删除后分享令牌立即失效（含缓存失效）.
func TestResolveByShareTokenAfterDelete(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	asvc := service.NewArtifactService(ctx)

	// 先解析一次，填充缓存
	if _, err := asvc.ResolveByShareToken(ctx, art.Artifact.ShareToken); err != nil {
		t.Fatalf("resolve before delete: %v", err)
	}

	if err := asvc.SoftDeleteArtifact(ctx, owner, art.Artifact.ID); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}

	if _, err := asvc.ResolveByShareToken(ctx, art.Artifact.ShareToken); err != service.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestCreateVersionValidation 非法类型与空内容应当被校验拒绝.
func TestCreateVersionValidation(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	_, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "pdf",
		Content:  "nope",
	})
	if err == nil || service.HTTPStatus(err) != 400 {
		t.Errorf("expected validation error for bad file type, got %v", err)
	}

	_, err = vsvc.CreateVersion(ctx, "", art.Artifact.ID, &types.CreateVersionRequest{
		FileType: "html",
		Content:  "<p>x</p>",
	})
	if err != service.ErrUnauthenticated {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

// failingStore 所有操作都失败的块存储，模拟后端不可用.
type failingStore struct{}

func (failingStore) Put(ctx context.Context, data []byte) (blobc.Ref, error) {
	return "", fmt.Errorf("backend down")
}

func (failingStore) Get(ctx context.Context, ref blobc.Ref) ([]byte, error) {
	return nil, fmt.Errorf("backend down")
}

func (failingStore) Open(ctx context.Context, ref blobc.Ref) (io.ReadCloser, error) {
	return nil, fmt.Errorf("backend down")
}

func (failingStore) Exists(ctx context.Context, ref blobc.Ref) (bool, error) {
	return false, fmt.Errorf("backend down")
}

func (failingStore) Stat(ctx context.Context, ref blobc.Ref) (int64, error) {
	return 0, fmt.Errorf("backend down")
}

func (failingStore) Close() error { return nil }

// TestPutFileBlobFirst 单文件追加先落块再落记录；块写入失败时不得产生记录.
func TestPutFileBlobFirst(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	fsvc := service.NewFileService(ctx)

	data := []byte("body { margin: 0 }")

	rec, err := fsvc.PutFile(ctx, art.Version.ID, "extra.css", data, "text/css")
	if err != nil {
		t.Fatalf("put file: %v", err)
	}

	if rec.BlobRef != string(blobc.RefFromBytes(data)) {
		t.Errorf("record does not reference content digest: %q", rec.BlobRef)
	}

	got, err := ctxPkg.GetBlobClient(ctx).Get(ctx, blobc.Ref(rec.BlobRef))
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}

	if string(got) != string(data) {
		t.Errorf("blob content mismatch: %q", got)
	}

	if _, err := fsvc.GetActiveFile(ctx, art.Version.ID, "extra.css"); err != nil {
		t.Errorf("record not readable: %v", err)
	}

	// 块存储故障：记录插入不应发生
	brokenMgr := &storage.Manager{
		DB:   ctxPkg.GetDBClient(ctx),
		Blob: &blobc.Client{Store: failingStore{}},
	}
	brokenCtx := ctxPkg.WithStorageManager(context.Background(), brokenMgr)

	_, err = service.NewFileService(brokenCtx).PutFile(brokenCtx, art.Version.ID, "broken.css", data, "text/css")
	if !errors.Is(err, service.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	if _, err := fsvc.GetActiveFile(ctx, art.Version.ID, "broken.css"); err != service.ErrNotFound {
		t.Errorf("registry must not reference unwritten blob, got %v", err)
	}
}
