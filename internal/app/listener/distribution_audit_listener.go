/*
 * @Description: 监听文件分发事件，写审计日志并在数据变化后刷新存量指标
 * @Author: 安知鱼
 * @Date: 2026-09-17 17:30:00
 * @LastEditTime: 2026-09-26 19:01:58
 * @LastEditors: 安知鱼
 */
package listener

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
)

// DistributionAuditListener 订阅发布、已读、删除三类事件
type DistributionAuditListener struct {
	logger    zerolog.Logger
	onChange  func()
	refreshed atomic.Bool
}

// NewDistributionAuditListener 创建监听器并完成订阅。
// onChange 在发布或删除之后调用，可以为 nil；同一时刻最多只有一次在执行。
func NewDistributionAuditListener(eventBus *event.EventBus, onChange func()) *DistributionAuditListener {
	l := &DistributionAuditListener{
		logger:   log.With().Str("component", "audit").Logger(),
		onChange: onChange,
	}
	eventBus.Subscribe(event.DistributionPublished, l.handlePublished)
	eventBus.Subscribe(event.DistributionRead, l.handleRead)
	eventBus.Subscribe(event.DistributionDeleted, l.handleDeleted)
	return l
}

func (l *DistributionAuditListener) handlePublished(payload any) {
	p, ok := payload.(event.PublishedPayload)
	if !ok {
		l.logger.Error().Msg("[DistributionAuditListener] 收到的发布事件负载类型不正确")
		return
	}
	l.logger.Info().
		Uint("record_id", p.RecordID).
		Str("publisher", p.PublisherID).
		Str("hash", p.Hash).
		Int64("size", p.Size).
		Str("category", p.Category).
		Bool("dedup_hit", p.DedupHit).
		Int("targets", p.TargetCount).
		Msg("文件已发布")
	l.refresh()
}

func (l *DistributionAuditListener) handleRead(payload any) {
	p, ok := payload.(event.ReadPayload)
	if !ok {
		l.logger.Error().Msg("[DistributionAuditListener] 收到的已读事件负载类型不正确")
		return
	}
	// 重复确认不写审计
	if !p.FirstRead {
		return
	}
	l.logger.Info().
		Uint("record_id", p.RecordID).
		Str("workplace", p.WorkplaceID).
		Str("reader", p.ReaderID).
		Bool("all_read", p.AllRead).
		Msg("文件已读确认")
}

func (l *DistributionAuditListener) handleDeleted(payload any) {
	p, ok := payload.(event.DeletedPayload)
	if !ok {
		l.logger.Error().Msg("[DistributionAuditListener] 收到的删除事件负载类型不正确")
		return
	}
	l.logger.Info().
		Str("actor", p.ActorID).
		Int("records", len(p.RecordIDs)).
		Int("reclaimed", p.Reclaimed).
		Bool("bulk", p.Bulk).
		Msg("文件已删除")
	l.refresh()
}

func (l *DistributionAuditListener) refresh() {
	if l.onChange == nil {
		return
	}
	if !l.refreshed.CompareAndSwap(false, true) {
		return
	}
	defer l.refreshed.Store(false)
	l.onChange()
}
