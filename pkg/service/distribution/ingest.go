package distribution

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

const (
	maxFilenameRunes    = 255
	maxDescriptionRunes = 2000
	octetStream         = "application/octet-stream"
)

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// PublishRequest 发布请求
type PublishRequest struct {
	Content  io.Reader
	Filename string
	// MimeType 为空或 application/octet-stream 时按内容识别
	MimeType string
	// Size 是客户端声明的大小，<= 0 表示未知
	Size int64
	// WorkplaceIDs 为空表示发布给所有组织
	WorkplaceIDs []string
	Category     constant.Category
	Description  string
	ExpiresAt    *time.Time
}

// ingested 是通过校验后的上传内容
type ingested struct {
	data     []byte
	filename string
	mimeType string
	hash     string
	targets  []string
	category constant.Category
}

func (s *serviceImpl) Publish(ctx context.Context, req *PublishRequest, caller model.Identity) (*model.DistributionRecord, error) {
	if !caller.IsPublisher() {
		return nil, constant.ErrForbidden
	}
	if req == nil || req.Content == nil {
		s.countPublish("rejected")
		return nil, constant.NewValidationError(constant.RuleEmptyFile, "未提供文件内容")
	}
	if req.Size > s.opts.MaxUploadSize {
		s.countPublish("rejected")
		return nil, constant.NewValidationError(constant.RuleMaxSize, "文件大小 %d 超过上限 %d", req.Size, s.opts.MaxUploadSize)
	}

	// 读取内容前先确认窗口仍有余量，只有通过校验的上传才会计入窗口
	if err := s.limiter.Check(ctx, caller.UserID, max(req.Size, 0)); err != nil {
		return nil, s.limitFailure(err)
	}
	in, err := s.validate(req)
	if err != nil {
		s.countPublish("rejected")
		return nil, err
	}
	if err := s.limiter.Allow(ctx, caller.UserID, int64(len(in.data))); err != nil {
		return nil, s.limitFailure(err)
	}

	now := s.now()
	record := &model.DistributionRecord{
		Filename:       in.filename,
		MimeType:       in.mimeType,
		Size:           int64(len(in.data)),
		Hash:           in.hash,
		UploadedBy:     caller.UserID,
		UploadedByName: caller.UserName,
		WorkplaceIDs:   in.targets,
		Category:       in.category,
		Description:    truncateRunes(strings.TrimSpace(req.Description), maxDescriptionRunes),
		IsActive:       true,
		ExpiresAt:      req.ExpiresAt,
	}

	existing, err := s.repo.FindActiveByHash(ctx, in.hash)
	if err != nil {
		s.countPublish("failed")
		return nil, fmt.Errorf("查询重复文件失败: %w", err)
	}

	dedupHit := false
	if existing != nil {
		dedupHit, err = s.reuseExisting(ctx, record, existing)
		if err != nil {
			s.countPublish("failed")
			return nil, err
		}
		if !dedupHit {
			log.Info().Str("hash", in.hash).Str("file_id", existing.StorageFileID).Msg("重复文件的物理对象已被回收，重新写入存储")
		}
	}
	if !dedupHit {
		if err := s.storeAndCreate(ctx, record, in, now); err != nil {
			s.countPublish("failed")
			return nil, err
		}
		s.countPublish("stored")
	} else {
		s.countPublish("dedup_hit")
	}

	log.Info().
		Uint("record_id", record.ID).
		Str("publisher", caller.UserID).
		Str("hash", record.Hash).
		Bool("dedup_hit", dedupHit).
		Int("targets", len(record.WorkplaceIDs)).
		Msg("文件已发布")

	s.publishEvent(event.DistributionPublished, event.PublishedPayload{
		RecordID:    record.ID,
		PublisherID: caller.UserID,
		Hash:        record.Hash,
		Size:        record.Size,
		Category:    string(record.Category),
		DedupHit:    dedupHit,
		TargetCount: len(record.WorkplaceIDs),
	})
	return record, nil
}

func (s *serviceImpl) limitFailure(err error) error {
	if errors.Is(err, constant.ErrRateLimited) {
		s.countPublish("rate_limited")
		if s.metrics != nil {
			s.metrics.RateLimited.Inc()
		}
		return err
	}
	s.countPublish("failed")
	return fmt.Errorf("检查上传频率失败: %w", err)
}

// reuseExisting 锁定去重命中的物理对象后创建引用它的新记录。
// 对象已没有任何有效引用（正在或已经被回收）时不创建记录并返回 false。
func (s *serviceImpl) reuseExisting(ctx context.Context, record *model.DistributionRecord, existing *model.DistributionRecord) (bool, error) {
	ref := existing.PhysicalRef()
	reused := false
	err := s.txManager.Do(ctx, func(repos repository.Repositories) error {
		active, err := repos.Distribution.LockRef(ctx, ref)
		if err != nil {
			return err
		}
		if active == 0 {
			return nil
		}
		record.StorageType = existing.StorageType
		record.StorageFileID = existing.StorageFileID
		record.StoragePath = existing.StoragePath
		record.Size = existing.Size
		if err := repos.Distribution.Create(ctx, record); err != nil {
			return err
		}
		reused = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("保存分发记录失败: %w", err)
	}
	return reused, nil
}

// storeAndCreate 写入存储后在事务中保存记录与接收组织，保存失败时清理刚写入的对象
func (s *serviceImpl) storeAndCreate(ctx context.Context, record *model.DistributionRecord, in *ingested, now time.Time) error {
	provider, err := s.providers.Active()
	if err != nil {
		return err
	}
	opts := storage.PutOptions{
		FolderPath: path.Join(s.folderFor(ctx, in.targets), now.Format("2006/01")),
		MimeType:   in.mimeType,
	}
	res, err := provider.Put(ctx, bytes.NewReader(in.data), in.hash+extensionFor(in.filename, in.mimeType), opts)
	if err != nil {
		return asBackendError(provider, "put", err)
	}
	record.StorageType = provider.Type()
	record.StorageFileID = res.FileID
	record.StoragePath = res.Path
	record.Size = int64(len(in.data))

	err = s.txManager.Do(ctx, func(repos repository.Repositories) error {
		return repos.Distribution.Create(ctx, record)
	})
	if err != nil {
		record.ID = 0
		s.discardOrphan(ctx, provider, record.PhysicalRef())
		return fmt.Errorf("保存分发记录失败: %w", err)
	}
	return nil
}

// validate 读取内容并检查大小、类型、分类与文件名，所有检查都在持久化之前完成
func (s *serviceImpl) validate(req *PublishRequest) (*ingested, error) {
	limit := s.opts.MaxUploadSize
	data, err := io.ReadAll(io.LimitReader(req.Content, limit+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传内容失败: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, constant.NewValidationError(constant.RuleMaxSize, "文件大小超过上限 %d", limit)
	}
	if len(data) == 0 {
		return nil, constant.NewValidationError(constant.RuleEmptyFile, "文件内容为空")
	}
	if req.Size > 0 && int64(len(data)) != req.Size {
		return nil, constant.NewValidationError(constant.RuleSizeMismatch, "声明大小 %d 与实际大小 %d 不一致", req.Size, len(data))
	}

	mimeType := normalizeMimeType(req.MimeType)
	if mimeType == "" || mimeType == octetStream {
		mimeType = normalizeMimeType(mimetype.Detect(data).String())
	}
	if !s.mimeAllowed(mimeType) {
		return nil, constant.NewValidationError(constant.RuleMimeType, "不允许上传 %s 类型的文件", mimeType)
	}

	category := req.Category
	if category == "" {
		category = constant.CategoryDocument
	}
	if !category.IsValid() {
		return nil, constant.NewValidationError(constant.RuleCategory, "不支持的分类 %q", category)
	}

	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		return nil, constant.NewValidationError(constant.RuleFilename, "文件名不能为空")
	}

	sum := sha256.Sum256(data)
	return &ingested{
		data:     data,
		filename: filename,
		mimeType: mimeType,
		hash:     hex.EncodeToString(sum[:]),
		targets:  normalizeTargets(req.WorkplaceIDs),
		category: category,
	}, nil
}

func (s *serviceImpl) mimeAllowed(m string) bool {
	for _, allowed := range s.opts.AllowedMimeTypes {
		if allowed == m {
			return true
		}
	}
	return false
}

// folderFor 单一接收组织使用组织名称作为目录，其余情况使用共享目录
func (s *serviceImpl) folderFor(ctx context.Context, targets []string) string {
	if len(targets) != 1 {
		return constant.DefaultSharedFolder
	}
	return s.workplaces.FolderName(ctx, targets[0])
}

// discardOrphan 记录保存失败后清理刚写入的对象。
// 相同内容的并发发布可能写到同一个键，持有引用锁后仍有有效引用时保留。
func (s *serviceImpl) discardOrphan(ctx context.Context, provider storage.IStorageProvider, ref model.PhysicalRef) {
	err := s.txManager.Do(ctx, func(repos repository.Repositories) error {
		count, err := repos.Distribution.LockRef(ctx, ref)
		if err != nil || count > 0 {
			return err
		}
		return provider.Remove(ctx, ref.FileID)
	})
	if err != nil {
		log.Warn().Err(err).Str("file_id", ref.FileID).Msg("清理未保存记录的物理对象失败")
	}
}

func asBackendError(provider storage.IStorageProvider, op string, err error) error {
	if errors.Is(err, constant.ErrStorageBackend) {
		return err
	}
	return &constant.BackendError{Backend: string(provider.Type()), Op: op, Err: err}
}

// extensionFor 优先使用原文件名的扩展名，否则按 MIME 类型推断
func extensionFor(filename, mimeType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if extPattern.MatchString(ext) {
		return ext
	}
	if m := mimetype.Lookup(mimeType); m != nil && extPattern.MatchString(m.Extension()) {
		return m.Extension()
	}
	return ""
}

// sanitizeFilename 只保留文件名部分，去掉控制字符
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return truncateRunes(name, maxFilenameRunes)
}

// normalizeTargets 去掉空白与重复的组织 ID，保持原有顺序
func normalizeTargets(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
