package service_test

import (
	"context"
	"fmt"
	"testing"

	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/service"
)

// seedLegacyArtifact 直接落库一个遗留制品：版本只有内联内容，
// 没有文件记录，createdBy 缺失. 模拟统一存储上线前的数据形态.
func seedLegacyArtifact(t *testing.T, ctx context.Context, owner, token string, n int) *model.Artifact {
	t.Helper()

	db := ctxPkg.GetDBClient(ctx).GetDB()

	artifact := &model.Artifact{
		ID:         "art_legacy_" + token,
		OwnerID:    owner,
		ShareToken: token,
		Title:      "Legacy " + token,
	}
	if err := db.Create(artifact).Error; err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	for i := 1; i <= n; i++ {
		v := &model.Version{
			ID:            fmt.Sprintf("ver_legacy_%s_%d", token, i),
			ArtifactID:    artifact.ID,
			VersionNumber: i,
			FileType:      model.FileTypeHTML,
			InlineContent: fmt.Sprintf("<html>legacy %d</html>", i),
		}
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed version %d: %v", i, err)
		}
	}

	return artifact
}

// TestCountPending 迁移进度统计.
func TestCountPending(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 2)
	mustCreateArtifact(t, ctx, "owner-2") // 已迁移形态：有文件记录

	msvc := service.NewMigrateService(ctx)

	counts, err := msvc.CountPending(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}

	if counts.Total != 3 {
		t.Errorf("expected 3 total versions, got %d", counts.Total)
	}

	if counts.WithLegacyInlineContent != 2 {
		t.Errorf("expected 2 legacy versions, got %d", counts.WithLegacyInlineContent)
	}

	if counts.WithFileRecords != 1 {
		t.Errorf("expected 1 migrated version, got %d", counts.WithFileRecords)
	}

	if counts.NeedsMigration != 2 {
		t.Errorf("expected 2 pending versions, got %d", counts.NeedsMigration)
	}

	if counts.NeedsProvenanceBackfill != 2 {
		t.Errorf("expected 2 versions needing backfill, got %d", counts.NeedsProvenanceBackfill)
	}
}

// TestMigrateBatchDryRun 干跑只统计，不产生任何写入.
func TestMigrateBatchDryRun(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 2)

	msvc := service.NewMigrateService(ctx)

	resp, err := msvc.MigrateBatch(ctx, 10, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	if resp.Processed != 2 || resp.Migrated != 2 {
		t.Errorf("dry run counts: processed=%d migrated=%d", resp.Processed, resp.Migrated)
	}

	counts, err := msvc.CountPending(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}

	if counts.NeedsMigration != 2 {
		t.Errorf("dry run must not migrate, still expected 2 pending, got %d", counts.NeedsMigration)
	}
}

// TestMigrateBatch 迁移写入块与文件记录、补入口，且幂等.
func TestMigrateBatch(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 2)

	msvc := service.NewMigrateService(ctx)

	resp, err := msvc.MigrateBatch(ctx, 10, false)
	if err != nil {
		t.Fatalf("migrate batch: %v", err)
	}

	if resp.Migrated != 2 || len(resp.Errors) != 0 {
		t.Fatalf("expected 2 migrated, got %+v", resp)
	}

	if resp.HasMore {
		t.Error("batch not full, expected hasMore=false")
	}

	db := ctxPkg.GetDBClient(ctx).GetDB()

	var v model.Version
	if err := db.Where("id = ?", "ver_legacy_ar_legacy1_1").First(&v).Error; err != nil {
		t.Fatalf("load version: %v", err)
	}

	if v.EntryPoint != "index.html" {
		t.Errorf("expected backfilled entry index.html, got %q", v.EntryPoint)
	}

	var recs []model.FileRecord
	if err := db.Where("version_id = ?", v.ID).Find(&recs).Error; err != nil {
		t.Fatalf("load file records: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("expected 1 file record, got %d", len(recs))
	}

	if recs[0].MimeType != "text/html" || recs[0].FilePath != "index.html" {
		t.Errorf("unexpected record: %+v", recs[0])
	}

	// 迁移后的版本可以被解析服务正常服务
	rsvc := service.NewResolveService(ctx)

	res, rerr := rsvc.Resolve(ctx, "ar_legacy1", "v1", "")
	if rerr != nil {
		t.Fatalf("resolve migrated version: %v", rerr)
	}

	if string(res.Data) != "<html>legacy 1</html>" {
		t.Errorf("migrated content mismatch: %q", res.Data)
	}

	// 幂等：再跑一批，没有待迁移的行
	resp, err = msvc.MigrateBatch(ctx, 10, false)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}

	if resp.Processed != 0 {
		t.Errorf("expected empty second batch, processed=%d", resp.Processed)
	}
}

// TestMigrateBatchHasMore 批次装满时 hasMore 为真.
func TestMigrateBatchHasMore(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 3)

	msvc := service.NewMigrateService(ctx)

	resp, err := msvc.MigrateBatch(ctx, 2, false)
	if err != nil {
		t.Fatalf("migrate batch: %v", err)
	}

	if resp.Processed != 2 || !resp.HasMore {
		t.Errorf("expected full batch with hasMore, got %+v", resp)
	}

	resp, err = msvc.MigrateBatch(ctx, 2, false)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}

	if resp.Processed != 1 {
		t.Errorf("expected 1 remaining, processed=%d", resp.Processed)
	}
}

// TestBackfillProvenance 从所属制品回填 created_by.
func TestBackfillProvenance(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 2)

	msvc := service.NewMigrateService(ctx)

	resp, err := msvc.BackfillProvenance(ctx, 10)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if resp.Updated != 2 || len(resp.Errors) != 0 {
		t.Fatalf("expected 2 updated, got %+v", resp)
	}

	db := ctxPkg.GetDBClient(ctx).GetDB()

	var versions []model.Version
	if err := db.Where("artifact_id = ?", "art_legacy_ar_legacy1").Find(&versions).Error; err != nil {
		t.Fatalf("load versions: %v", err)
	}

	for _, v := range versions {
		if v.CreatedBy != "owner-1" {
			t.Errorf("version %s created_by not backfilled: %q", v.ID, v.CreatedBy)
		}
	}
}

// TestVerifyMigration 迁移前后完成态的判定.
func TestVerifyMigration(t *testing.T) {
	ctx := newTestContext(t)

	seedLegacyArtifact(t, ctx, "owner-1", "ar_legacy1", 1)

	msvc := service.NewMigrateService(ctx)

	verify, err := msvc.VerifyMigration(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if verify.IsComplete {
		t.Error("expected incomplete before migration")
	}

	if len(verify.Issues) == 0 {
		t.Error("expected issues before migration")
	}

	if _, err := msvc.MigrateBatch(ctx, 10, false); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := msvc.BackfillProvenance(ctx, 10); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	verify, err = msvc.VerifyMigration(ctx)
	if err != nil {
		t.Fatalf("verify after: %v", err)
	}

	if !verify.IsComplete {
		t.Errorf("expected complete, issues: %v", verify.Issues)
	}

	if verify.Stats.ActiveVersions != 1 || verify.Stats.VersionsWithFiles != 1 {
		t.Errorf("unexpected stats: %+v", verify.Stats)
	}
}

// TestFixMissingEntryPoints HTML 文件优先，其次任意文件，最后默认值.
func TestFixMissingEntryPoints(t *testing.T) {
	ctx := newTestContext(t)

	db := ctxPkg.GetDBClient(ctx).GetDB()

	artifact := &model.Artifact{ID: "art_fix", OwnerID: "owner-1", ShareToken: "ar_fix", Title: "Fix"}
	if err := db.Create(artifact).Error; err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	// 有 HTML 文件的版本
	withHTML := &model.Version{ID: "ver_html", ArtifactID: artifact.ID, VersionNumber: 1, FileType: model.FileTypeZip}
	// 只有非 HTML 文件的版本
	withAsset := &model.Version{ID: "ver_asset", ArtifactID: artifact.ID, VersionNumber: 2, FileType: model.FileTypeZip}
	// 完全没有文件记录的版本
	empty := &model.Version{ID: "ver_empty", ArtifactID: artifact.ID, VersionNumber: 3, FileType: model.FileTypeZip}

	for _, v := range []*model.Version{withHTML, withAsset, empty} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed version: %v", err)
		}
	}

	recs := []*model.FileRecord{
		{ID: "fil_1", VersionID: withHTML.ID, FilePath: "assets/app.js", BlobRef: "aa", MimeType: "text/javascript"},
		{ID: "fil_2", VersionID: withHTML.ID, FilePath: "pages/home.html", BlobRef: "bb", MimeType: "text/html"},
		{ID: "fil_3", VersionID: withAsset.ID, FilePath: "data.json", BlobRef: "cc", MimeType: "application/json"},
	}
	for _, r := range recs {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed file record: %v", err)
		}
	}

	msvc := service.NewMigrateService(ctx)

	resp, err := msvc.FixMissingEntryPoints(ctx)
	if err != nil {
		t.Fatalf("fix entry points: %v", err)
	}

	if resp.Fixed != 3 {
		t.Errorf("expected 3 fixed, got %d", resp.Fixed)
	}

	// 没有文件记录的版本记为错误但不失败
	if len(resp.Errors) != 1 {
		t.Errorf("expected 1 error for empty version, got %v", resp.Errors)
	}

	checks := map[string]string{
		withHTML.ID:  "pages/home.html",
		withAsset.ID: "data.json",
		empty.ID:     "index.html",
	}

	for id, want := range checks {
		var v model.Version
		if err := db.Where("id = ?", id).First(&v).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}

		if v.EntryPoint != want {
			t.Errorf("%s: expected entry %q, got %q", id, want, v.EntryPoint)
		}
	}
}
