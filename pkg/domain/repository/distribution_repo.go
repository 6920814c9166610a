/*
 * @Description: 文件分发记录仓储接口
 * @Author: 安知鱼
 * @Date: 2026-09-03 20:11:45
 * @LastEditTime: 2026-09-24 22:36:09
 * @LastEditors: 安知鱼
 */
package repository

import (
	"context"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

// PublisherListOptions 发布者视角的列表过滤条件，只返回有效记录
type PublisherListOptions struct {
	PageQuery
	// WorkplaceID 非空时只返回显式指定了该组织的记录
	WorkplaceID string
	Category    constant.Category
}

// RecipientListOptions 接收方视角的列表过滤条件
type RecipientListOptions struct {
	PageQuery
	WorkplaceID string
	Category    constant.Category
	// UnreadOnly 按该组织视角的已读状态过滤
	UnreadOnly bool
}

// DistributionRepository 定义了分发记录的持久化操作。
// 所有返回 *model.DistributionRecord 的方法都会填充 WorkplaceIDs 与 ReadBy。
type DistributionRepository interface {
	// Create 持久化一条新记录并回填 ID 与时间戳
	Create(ctx context.Context, record *model.DistributionRecord) error

	// FindByID 查找记录，包括已失效的记录；不存在时返回 constant.ErrNotFound
	FindByID(ctx context.Context, id uint) (*model.DistributionRecord, error)

	// FindActiveByHash 查找任意一条内容哈希相同的有效记录；没有时返回 nil, nil
	FindActiveByHash(ctx context.Context, hash string) (*model.DistributionRecord, error)

	// ListForPublisher 分页列出有效记录
	ListForPublisher(ctx context.Context, opts PublisherListOptions) ([]*model.DistributionRecord, int64, error)

	// ListForRecipient 分页列出对组织可见的有效记录
	ListForRecipient(ctx context.Context, opts RecipientListOptions) ([]*model.DistributionRecord, int64, error)

	// CountUnread 统计组织视角下所有可见且未读的记录，与分页无关
	CountUnread(ctx context.Context, workplaceID string, category constant.Category) (int64, error)

	// AddReadReceipt 为组织追加已读确认；该组织已确认过时返回 false 且不做修改
	AddReadReceipt(ctx context.Context, recordID uint, receipt model.ReadReceipt) (bool, error)

	// SetRead 更新记录的全局已读标记
	SetRead(ctx context.Context, recordID uint, isRead bool) error

	// Deactivate 仅当记录仍有效时将其置为失效，返回是否发生了翻转
	Deactivate(ctx context.Context, recordID uint) (bool, error)

	// DeactivateAll 将所有有效记录置为失效。
	// 返回被翻转的记录 ID，以及这些记录引用的去重物理对象。
	DeactivateAll(ctx context.Context) ([]uint, []model.PhysicalRef, error)

	// CountActiveByRef 统计引用同一物理对象的有效记录数
	CountActiveByRef(ctx context.Context, ref model.PhysicalRef) (int64, error)

	// LockRef 在事务中锁定引用该物理对象的全部记录（含已失效的），返回其中有效记录数。
	// 复用去重对象与回收物理对象都必须先持有这把锁。
	LockRef(ctx context.Context, ref model.PhysicalRef) (int64, error)

	// LockRecord 在事务中锁定单条记录，记录不存在时返回 constant.ErrNotFound
	LockRecord(ctx context.Context, recordID uint) error

	// Stats 汇总有效记录的统计信息
	Stats(ctx context.Context) (*model.DistributionStats, error)
}
