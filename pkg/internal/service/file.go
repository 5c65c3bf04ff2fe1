package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	ctxPkg "github.com/clintagossett/artvault/pkg/context"
	"github.com/clintagossett/artvault/pkg/internal/model"
	"github.com/clintagossett/artvault/pkg/internal/storage/blob"
	"github.com/clintagossett/artvault/pkg/internal/storage/db"
	nlog "github.com/clintagossett/artvault/pkg/log"
)

const (
	// DefaultEntryPointHTML html 类型与 zip 推断失败时的默认入口.
	DefaultEntryPointHTML = "index.html"
	// DefaultEntryPointMarkdown markdown 类型的默认入口.
	DefaultEntryPointMarkdown = "content.md"

	defaultMimeType = "application/octet-stream"

	// maxZipMembers 单个 zip 版本允许的最大成员数.
	maxZipMembers = 10000
	// maxMemberSize 单个解压成员允许的最大字节数.
	maxMemberSize = 100 << 20 // 100MB

	// blobUploadConcurrency 批量写块存储的并发度.
	blobUploadConcurrency = 8
)

// FileService 文件注册表：把 (版本, 路径) 映射到块引用.
type FileService struct {
	dbc   *db.Client
	blobc *blob.Client
}

// NewFileService 创建并返回一个新的 FileService 实例.
func NewFileService(c context.Context) *FileService {
	svc := &FileService{
		dbc:   ctxPkg.GetDBClient(c),
		blobc: ctxPkg.GetBlobClient(c),
	}

	if svc.dbc == nil {
		nlog.Logger().Warn().Msg("DB client not initialized, FileService features limited")
	}

	if svc.blobc == nil {
		nlog.Logger().Warn().Msg("blob client not initialized, FileService features limited")
	}

	return svc
}

// PutFile 先写块存储再插入记录. 块写入成功但记录插入失败时，
// 孤儿块是可接受的垃圾（永远不会被引用）；注册表绝不引用未落盘的块.
func (s *FileService) PutFile(ctx context.Context, versionID, filePath string, data []byte, mimeType string) (*model.FileRecord, error) {
	ref, err := s.blobc.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: put blob: %v", ErrStorage, err)
	}

	now := time.Now().UTC()
	rec := &model.FileRecord{
		ID:        newFileID(now),
		VersionID: versionID,
		FilePath:  filePath,
		BlobRef:   string(ref),
		MimeType:  mimeType,
		FileSize:  int64(len(data)),
	}

	if err := s.dbc.GetDB().WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create file record: %w", err)
	}

	return rec, nil
}

// GetActiveFile 只返回未删除的记录；所属版本的删除状态由调用方（路由）另行检查.
func (s *FileService) GetActiveFile(ctx context.Context, versionID, filePath string) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := s.dbc.GetDB().WithContext(ctx).
		Where("version_id = ? AND file_path = ? AND is_deleted = ?", versionID, filePath, false).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get file record: %w", err)
	}

	return &rec, nil
}

// ListFiles 返回版本的全部活跃文件记录，按路径排序.
func (s *FileService) ListFiles(ctx context.Context, versionID string) ([]model.FileRecord, error) {
	var recs []model.FileRecord

	err := s.dbc.GetDB().WithContext(ctx).
		Where("version_id = ? AND is_deleted = ?", versionID, false).
		Order("file_path asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}

	return recs, nil
}

// fileEntry 待写入的一个文件：路径 + 内容 + MIME，BlobRef 在写块存储后回填.
type fileEntry struct {
	Path     string
	Data     []byte
	MimeType string
	BlobRef  blob.Ref
}

// contentPlan 一次版本创建的完整内容计划：全部文件 + 入口路径.
// 计划先于任何数据库写入构建完成，文件批量与入口赋值作为一个逻辑工作单元落库.
type contentPlan struct {
	Entries    []fileEntry
	EntryPoint string
	TotalSize  int64
}

// buildContentPlan 按内容类型展开文件列表并确定入口路径.
// html/markdown 恰好一个文件；zip 解包为多个文件并推断入口.
func buildContentPlan(fileType model.FileType, content, entryPoint string) (*contentPlan, error) {
	switch fileType {
	case model.FileTypeHTML:
		p := entryPoint
		if p == "" {
			p = DefaultEntryPointHTML
		}

		data := []byte(content)

		return &contentPlan{
			Entries:    []fileEntry{{Path: p, Data: data, MimeType: "text/html"}},
			EntryPoint: p,
			TotalSize:  int64(len(data)),
		}, nil

	case model.FileTypeMarkdown:
		p := entryPoint
		if p == "" {
			p = DefaultEntryPointMarkdown
		}

		data := []byte(content)

		return &contentPlan{
			Entries:    []fileEntry{{Path: p, Data: data, MimeType: "text/markdown"}},
			EntryPoint: p,
			TotalSize:  int64(len(data)),
		}, nil

	case model.FileTypeZip:
		return buildZipPlan(content, entryPoint)

	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrValidation, fileType)
	}
}

// buildZipPlan 解包 base64 编码的 zip 内容.
func buildZipPlan(content, entryPoint string) (*contentPlan, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: content is not valid base64", ErrValidation)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: content is not a valid zip archive", ErrValidation)
	}

	if len(zr.File) > maxZipMembers {
		return nil, fmt.Errorf("%w: archive has too many members", ErrValidation)
	}

	entries := make([]fileEntry, 0, len(zr.File))

	var total int64

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		p, err := cleanArchivePath(f.Name)
		if err != nil {
			return nil, err
		}

		if f.UncompressedSize64 > maxMemberSize {
			return nil, fmt.Errorf("%w: member %s exceeds size limit", ErrValidation, p)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", p, err)
		}

		data, err := io.ReadAll(io.LimitReader(rc, maxMemberSize+1))
		_ = rc.Close()

		if err != nil {
			return nil, fmt.Errorf("read zip member %s: %w", p, err)
		}

		if len(data) > maxMemberSize {
			return nil, fmt.Errorf("%w: member %s exceeds size limit", ErrValidation, p)
		}

		entries = append(entries, fileEntry{
			Path:     p,
			Data:     data,
			MimeType: detectMimeType(p),
		})
		total += int64(len(data))
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: archive contains no files", ErrValidation)
	}

	ep := entryPoint
	if ep == "" {
		ep = inferEntryPoint(entries)
	}

	return &contentPlan{Entries: entries, EntryPoint: ep, TotalSize: total}, nil
}

// cleanArchivePath 规范化归档内路径，拒绝绝对路径与目录穿越.
func cleanArchivePath(name string) (string, error) {
	p := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if p == "." || p == "" {
		return "", fmt.Errorf("%w: empty member path", ErrValidation)
	}

	if path.IsAbs(p) || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: illegal member path %q", ErrValidation, name)
	}

	return p, nil
}

// inferEntryPoint 入口推断顺序：根目录 index.html，任意 index.html，
// 任意 html 文件，否则第一个文件（按路径排序）.
func inferEntryPoint(entries []fileEntry) string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}

	sort.Strings(paths)

	for _, p := range paths {
		if p == DefaultEntryPointHTML {
			return p
		}
	}

	for _, p := range paths {
		if path.Base(p) == DefaultEntryPointHTML {
			return p
		}
	}

	for _, p := range paths {
		ext := strings.ToLower(path.Ext(p))
		if ext == ".html" || ext == ".htm" {
			return p
		}
	}

	return paths[0]
}

// detectMimeType 按扩展名推断 MIME，未知扩展名退回 octet-stream.
func detectMimeType(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == ".md" {
		return "text/markdown"
	}

	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}

	return defaultMimeType
}

// mimeTypeForFileType 遗留内联内容迁移时按版本类型确定 MIME.
func mimeTypeForFileType(ft model.FileType) string {
	switch ft {
	case model.FileTypeHTML:
		return "text/html"
	case model.FileTypeMarkdown:
		return "text/markdown"
	default:
		return defaultMimeType
	}
}

// defaultEntryPointForFileType 遗留迁移的类型默认入口.
func defaultEntryPointForFileType(ft model.FileType) string {
	if ft == model.FileTypeMarkdown {
		return DefaultEntryPointMarkdown
	}

	return DefaultEntryPointHTML
}

// storePlan 并发把计划内的全部内容写入块存储并回填 BlobRef.
// 这一步在任何数据库写入之前执行，失败只会留下可回收的孤儿块.
func storePlan(ctx context.Context, blobc *blob.Client, plan *contentPlan) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobUploadConcurrency)

	for i := range plan.Entries {
		g.Go(func() error {
			ref, err := blobc.Put(gctx, plan.Entries[i].Data)
			if err != nil {
				return fmt.Errorf("put blob for %s: %w", plan.Entries[i].Path, err)
			}

			plan.Entries[i].BlobRef = ref

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return nil
}

// fileRecordsForPlan 把计划展开为待插入的文件记录行.
func fileRecordsForPlan(plan *contentPlan, versionID string, now time.Time) []model.FileRecord {
	recs := make([]model.FileRecord, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		recs = append(recs, model.FileRecord{
			ID:        newFileID(now),
			VersionID: versionID,
			FilePath:  e.Path,
			BlobRef:   string(e.BlobRef),
			MimeType:  e.MimeType,
			FileSize:  int64(len(e.Data)),
		})
	}

	return recs
}
