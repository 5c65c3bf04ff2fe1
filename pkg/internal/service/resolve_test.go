package service_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/types"
)

// zipBase64 在内存里打一个 zip 包并 base64 编码.
func zipBase64(t *testing.T, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}

		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// TestResolveHappyPath 空路径回落到入口文件并返回内容.
func TestResolveHappyPath(t *testing.T) {
	ctx := newTestContext(t)

	art := mustCreateArtifact(t, ctx, "user-1")
	rsvc := service.NewResolveService(ctx)

	res, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, "v1", "")
	if rerr != nil {
		t.Fatalf("resolve: %v", rerr)
	}

	if res.MimeType != "text/html" {
		t.Errorf("expected text/html, got %q", res.MimeType)
	}

	if string(res.Data) != "<html><body>v1</body></html>" {
		t.Errorf("content mismatch: %q", res.Data)
	}

	// 显式请求 index.html 等价于空路径
	res2, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, "v1", "index.html")
	if rerr != nil {
		t.Fatalf("resolve index.html: %v", rerr)
	}

	if !bytes.Equal(res.Data, res2.Data) {
		t.Error("index.html and empty path should serve the same bytes")
	}
}

// TestResolveInvalidVersionFormat 版本选择器必须形如 v<N>.
func TestResolveInvalidVersionFormat(t *testing.T) {
	ctx := newTestContext(t)

	art := mustCreateArtifact(t, ctx, "user-1")
	rsvc := service.NewResolveService(ctx)

	for _, sel := range []string{"1", "v", "va", "v1.2", "V1", "v-1", ""} {
		_, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, sel, "")
		if rerr == nil {
			t.Errorf("selector %q: expected error", sel)

			continue
		}

		if rerr.Status != 400 || rerr.Message != "Invalid version format" {
			t.Errorf("selector %q: got %d %q", sel, rerr.Status, rerr.Message)
		}
	}
}

// TestResolveArtifactNotFound 未知令牌与已删除制品统一返回 404.
func TestResolveArtifactNotFound(t *testing.T) {
	ctx := newTestContext(t)

	art := mustCreateArtifact(t, ctx, "user-1")
	rsvc := service.NewResolveService(ctx)

	_, rerr := rsvc.Resolve(ctx, "ar_nonexistent", "v1", "")
	if rerr == nil || rerr.Status != 404 || rerr.Message != "Artifact not found" {
		t.Errorf("unknown token: got %v", rerr)
	}

	asvc := service.NewArtifactService(ctx)
	if err := asvc.SoftDeleteArtifact(ctx, "user-1", art.Artifact.ID); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}

	_, rerr = rsvc.Resolve(ctx, art.Artifact.ShareToken, "v1", "")
	if rerr == nil || rerr.Status != 404 || rerr.Message != "Artifact not found" {
		t.Errorf("deleted artifact: got %v", rerr)
	}
}

// TestResolveVersionNotFound 缺失与已删除的版本报 404，文案含版本号.
func TestResolveVersionNotFound(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	rsvc := service.NewResolveService(ctx)

	_, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, "v9", "")
	if rerr == nil || rerr.Status != 404 || rerr.Message != "Version 9 not found" {
		t.Errorf("missing version: got %v", rerr)
	}

	// 删除 v2 后按号码访问同样 404
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

	_, rerr = rsvc.Resolve(ctx, art.Artifact.ShareToken, "v2", "")
	if rerr == nil || rerr.Status != 404 || rerr.Message != "Version 2 not found" {
		t.Errorf("deleted version: got %v", rerr)
	}
}

// TestResolveFileNotFound 路径不存在返回 404 File not found.
func TestResolveFileNotFound(t *testing.T) {
	ctx := newTestContext(t)

	art := mustCreateArtifact(t, ctx, "user-1")
	rsvc := service.NewResolveService(ctx)

	_, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, "v1", "missing.css")
	if rerr == nil || rerr.Status != 404 || rerr.Message != "File not found" {
		t.Errorf("missing file: got %v", rerr)
	}
}

// TestResolveZipArchive zip 版本解包出多文件，入口自动推断，子路径可寻址.
func TestResolveZipArchive(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	content := zipBase64(t, map[string]string{
		"index.html":     "<html>zip home</html>",
		"assets/app.js":  "console.log('hi')",
		"assets/app.css": "body{}",
	})

	asvc := service.NewArtifactService(ctx)

	resp, err := asvc.CreateArtifact(ctx, owner, &types.CreateArtifactRequest{
		Title:    "Site",
		FileType: "zip",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("create zip artifact: %v", err)
	}

	if resp.Version.EntryPoint != "index.html" {
		t.Errorf("expected inferred entry index.html, got %q", resp.Version.EntryPoint)
	}

	files, err := service.NewFileService(ctx).ListFiles(ctx, resp.Version.ID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 file records, got %d", len(files))
	}

	rsvc := service.NewResolveService(ctx)

	res, rerr := rsvc.Resolve(ctx, resp.Artifact.ShareToken, "v1", "assets/app.js")
	if rerr != nil {
		t.Fatalf("resolve asset: %v", rerr)
	}

	if string(res.Data) != "console.log('hi')" {
		t.Errorf("asset content mismatch: %q", res.Data)
	}

	// URL 编码的路径先解码再查找
	res, rerr = rsvc.Resolve(ctx, resp.Artifact.ShareToken, "v1", "assets%2Fapp.css")
	if rerr != nil {
		t.Fatalf("resolve encoded path: %v", rerr)
	}

	if string(res.Data) != "body{}" {
		t.Errorf("encoded path content mismatch: %q", res.Data)
	}
}

// TestResolveMarkdown markdown 版本默认入口 content.md，MIME 为 text/markdown.
func TestResolveMarkdown(t *testing.T) {
	ctx := newTestContext(t)

	asvc := service.NewArtifactService(ctx)

	resp, err := asvc.CreateArtifact(ctx, "user-1", &types.CreateArtifactRequest{
		Title:    "Notes",
		FileType: "markdown",
		Content:  "# hello",
	})
	if err != nil {
		t.Fatalf("create markdown artifact: %v", err)
	}

	if resp.Version.EntryPoint != "content.md" {
		t.Errorf("expected entry content.md, got %q", resp.Version.EntryPoint)
	}

	rsvc := service.NewResolveService(ctx)

	res, rerr := rsvc.Resolve(ctx, resp.Artifact.ShareToken, "v1", "")
	if rerr != nil {
		t.Fatalf("resolve: %v", rerr)
	}

	if res.MimeType != "text/markdown" {
		t.Errorf("expected text/markdown, got %q", res.MimeType)
	}

	if string(res.Data) != "# hello" {
		t.Errorf("content mismatch: %q", res.Data)
	}
}

// TestResolveManyVersions 多版本并存时按号码精确寻址.
func TestResolveManyVersions(t *testing.T) {
	ctx := newTestContext(t)
	owner := "user-1"

	art := mustCreateArtifact(t, ctx, owner)
	vsvc := service.NewVersionService(ctx)

	for i := 2; i <= 5; i++ {
		_, err := vsvc.CreateVersion(ctx, owner, art.Artifact.ID, &types.CreateVersionRequest{
			FileType: "html",
			Content:  fmt.Sprintf("<p>v%d</p>", i),
		})
		if err != nil {
			t.Fatalf("create v%d: %v", i, err)
		}
	}

	rsvc := service.NewResolveService(ctx)

	for i := 2; i <= 5; i++ {
		res, rerr := rsvc.Resolve(ctx, art.Artifact.ShareToken, fmt.Sprintf("v%d", i), "")
		if rerr != nil {
			t.Fatalf("resolve v%d: %v", i, rerr)
		}

		want := fmt.Sprintf("<p>v%d</p>", i)
		if string(res.Data) != want {
			t.Errorf("v%d content mismatch: %q", i, res.Data)
		}
	}
}
