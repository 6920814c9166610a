package distribution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

func (s *serviceImpl) AcknowledgeRead(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error) {
	if caller.IsPublisher() || caller.WorkplaceID == "" {
		return nil, constant.ErrForbidden
	}
	if _, err := s.visibleRecord(ctx, recordID, caller); err != nil {
		return nil, err
	}
	return s.acknowledge(ctx, recordID, caller)
}

// acknowledge 在事务中锁定记录，追加已读确认并重新计算全局已读标记。
// 同一记录的确认串行执行，重新加载时能看到此前提交的全部确认。
// 定向记录需要所有接收组织都确认；全局记录任意一个组织确认即视为已读。
func (s *serviceImpl) acknowledge(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error) {
	var (
		record   *model.DistributionRecord
		inserted bool
	)
	err := s.txManager.Do(ctx, func(repos repository.Repositories) error {
		if err := repos.Distribution.LockRecord(ctx, recordID); err != nil {
			return err
		}
		var err error
		inserted, err = repos.Distribution.AddReadReceipt(ctx, recordID, model.ReadReceipt{
			WorkplaceID: caller.WorkplaceID,
			ReaderID:    caller.UserID,
			ReadAt:      s.now(),
		})
		if err != nil {
			return err
		}

		record, err = repos.Distribution.FindByID(ctx, recordID)
		if err != nil {
			return err
		}
		if allRead := record.AllTargetsRead(); allRead != record.IsRead {
			if err := repos.Distribution.SetRead(ctx, recordID, allRead); err != nil {
				return err
			}
			record.IsRead = allRead
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("记录已读状态失败: %w", err)
	}

	if inserted {
		if s.metrics != nil {
			s.metrics.ReadAcks.Inc()
		}
		log.Debug().
			Uint("record_id", recordID).
			Str("workplace_id", caller.WorkplaceID).
			Str("reader_id", caller.UserID).
			Bool("all_read", record.IsRead).
			Msg("组织已确认阅读")
	}
	s.publishEvent(event.DistributionRead, event.ReadPayload{
		RecordID:    recordID,
		WorkplaceID: caller.WorkplaceID,
		ReaderID:    caller.UserID,
		FirstRead:   inserted,
		AllRead:     record.IsRead,
	})
	return record, nil
}
