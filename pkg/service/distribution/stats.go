package distribution

import (
	"context"
	"fmt"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

func (s *serviceImpl) Stats(ctx context.Context, caller model.Identity) (*model.DistributionStats, error) {
	if !caller.IsPublisher() {
		return nil, constant.ErrForbidden
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计分发记录失败: %w", err)
	}
	for _, c := range constant.AllCategories() {
		if _, ok := stats.ByCategory[string(c)]; !ok {
			stats.ByCategory[string(c)] = 0
		}
	}
	return stats, nil
}
