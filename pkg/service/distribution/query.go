package distribution

import (
	"context"
	"fmt"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

// RecipientListOptions 组织视角的查询条件，组织取自调用方身份
type RecipientListOptions struct {
	repository.PageQuery
	Category   constant.Category
	UnreadOnly bool
}

// PageResult 分页结果
type PageResult struct {
	Records    []*model.DistributionRecord
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// RecipientPageResult 在分页结果之外附带全部可见记录中的未读数
type RecipientPageResult struct {
	PageResult
	UnreadCount int64
}

func newPageResult(records []*model.DistributionRecord, total int64, pq repository.PageQuery) PageResult {
	return PageResult{
		Records:    records,
		Total:      total,
		Page:       pq.Page,
		PageSize:   pq.PageSize,
		TotalPages: pq.TotalPages(total),
	}
}

func checkCategoryFilter(c constant.Category) error {
	if c != "" && !c.IsValid() {
		return constant.NewValidationError(constant.RuleCategory, "不支持的分类 %q", c)
	}
	return nil
}

func (s *serviceImpl) ListForPublisher(ctx context.Context, caller model.Identity, opts repository.PublisherListOptions) (*PageResult, error) {
	if !caller.IsPublisher() {
		return nil, constant.ErrForbidden
	}
	if err := checkCategoryFilter(opts.Category); err != nil {
		return nil, err
	}
	opts.Normalize(constant.DefaultPageSize, constant.MaxPageSize)

	records, total, err := s.repo.ListForPublisher(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("查询分发列表失败: %w", err)
	}
	res := newPageResult(records, total, opts.PageQuery)
	return &res, nil
}

func (s *serviceImpl) ListForRecipient(ctx context.Context, caller model.Identity, opts RecipientListOptions) (*RecipientPageResult, error) {
	if caller.WorkplaceID == "" {
		return nil, constant.ErrForbidden
	}
	if err := checkCategoryFilter(opts.Category); err != nil {
		return nil, err
	}
	opts.Normalize(constant.DefaultPageSize, constant.MaxPageSize)

	records, total, err := s.repo.ListForRecipient(ctx, repository.RecipientListOptions{
		PageQuery:   opts.PageQuery,
		WorkplaceID: caller.WorkplaceID,
		Category:    opts.Category,
		UnreadOnly:  opts.UnreadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("查询组织文件列表失败: %w", err)
	}

	unread, err := s.repo.CountUnread(ctx, caller.WorkplaceID, opts.Category)
	if err != nil {
		return nil, fmt.Errorf("统计未读文件失败: %w", err)
	}

	return &RecipientPageResult{
		PageResult:  newPageResult(records, total, opts.PageQuery),
		UnreadCount: unread,
	}, nil
}

func (s *serviceImpl) Get(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error) {
	return s.visibleRecord(ctx, recordID, caller)
}

// visibleRecord 查找有效记录并检查可见性。
// 失效记录对任何人都是 ErrNotFound；组织不可见时返回 ErrForbidden，由上层决定是否隐藏为 404。
func (s *serviceImpl) visibleRecord(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error) {
	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, constant.ErrNotFound
	}
	if caller.IsPublisher() {
		return record, nil
	}
	if caller.WorkplaceID == "" || !record.VisibleTo(caller.WorkplaceID) {
		return nil, constant.ErrForbidden
	}
	return record, nil
}
