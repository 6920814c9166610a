package distribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

func (s *serviceImpl) DeleteOne(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error) {
	if !caller.IsPublisher() {
		return nil, constant.ErrForbidden
	}

	var (
		record    *model.DistributionRecord
		reclaimed int
	)
	err := s.txManager.Do(ctx, func(repos repository.Repositories) error {
		flipped, err := repos.Distribution.Deactivate(ctx, recordID)
		if err != nil {
			return err
		}
		if !flipped {
			return constant.ErrNotFound
		}
		record, err = repos.Distribution.FindByID(ctx, recordID)
		if err != nil {
			return err
		}
		if s.reclaimIfUnreferenced(ctx, repos.Distribution, record.PhysicalRef()) {
			reclaimed = 1
		}
		return nil
	})
	if errors.Is(err, constant.ErrNotFound) {
		return nil, constant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("删除分发记录失败: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsDeleted.Inc()
	}

	log.Info().
		Uint("record_id", recordID).
		Str("actor", caller.UserID).
		Int("reclaimed", reclaimed).
		Msg("分发记录已删除")
	s.publishEvent(event.DistributionDeleted, event.DeletedPayload{
		ActorID:   caller.UserID,
		RecordIDs: []uint{recordID},
		Reclaimed: reclaimed,
	})
	return record, nil
}

func (s *serviceImpl) DeleteAll(ctx context.Context, caller model.Identity) (*model.DeleteAllResult, error) {
	if !caller.IsPublisher() {
		return nil, constant.ErrForbidden
	}

	var (
		ids       []uint
		refs      []model.PhysicalRef
		reclaimed int
	)
	err := s.txManager.Do(ctx, func(repos repository.Repositories) error {
		var err error
		ids, refs, err = repos.Distribution.DeactivateAll(ctx)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if s.reclaimIfUnreferenced(ctx, repos.Distribution, ref) {
				reclaimed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("批量删除分发记录失败: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsDeleted.Add(float64(len(ids)))
	}

	result := &model.DeleteAllResult{
		DeletedCount:             int64(len(ids)),
		PhysicalObjectsReclaimed: reclaimed,
	}
	log.Info().
		Str("actor", caller.UserID).
		Int64("deleted", result.DeletedCount).
		Int("distinct_objects", len(refs)).
		Int("reclaimed", result.PhysicalObjectsReclaimed).
		Msg("已批量删除分发记录")
	if len(ids) > 0 {
		s.publishEvent(event.DistributionDeleted, event.DeletedPayload{
			ActorID:   caller.UserID,
			RecordIDs: ids,
			Reclaimed: result.PhysicalObjectsReclaimed,
			Bulk:      true,
		})
	}
	return result, nil
}

// reclaimIfUnreferenced 在删除事务中锁定物理对象的全部引用，没有有效记录引用时将其删除，返回是否删除成功。
// 删除发生在事务提交前，并发发布要么先于删除完成复用，要么等待回收结束后重新写入。
// 删除失败只记录日志，元数据的失效状态才是可见性的依据。
func (s *serviceImpl) reclaimIfUnreferenced(ctx context.Context, repo repository.DistributionRepository, ref model.PhysicalRef) bool {
	logger := log.With().Str("storage_type", string(ref.StorageType)).Str("file_id", ref.FileID).Logger()

	count, err := repo.LockRef(ctx, ref)
	if err != nil {
		logger.Error().Err(err).Msg("统计物理对象引用失败，跳过回收")
		s.countReclaimFailure()
		return false
	}
	if count > 0 {
		logger.Debug().Int64("references", count).Msg("物理对象仍被引用，保留")
		return false
	}

	provider, err := s.providers.For(ref.StorageType)
	if err != nil {
		logger.Error().Err(err).Msg("找不到物理对象所在的存储后端，跳过回收")
		s.countReclaimFailure()
		return false
	}
	if err := provider.Remove(ctx, ref.FileID); err != nil {
		logger.Warn().Err(err).Msg("删除物理对象失败，留待后续清理")
		s.countReclaimFailure()
		return false
	}

	if s.metrics != nil {
		s.metrics.ObjectsReclaimed.Inc()
	}
	return true
}

func (s *serviceImpl) countReclaimFailure() {
	if s.metrics != nil {
		s.metrics.ReclaimFailures.Inc()
	}
}
