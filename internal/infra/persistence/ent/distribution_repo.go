/*
 * @Description: 分发记录仓储的 SQL 实现，基于 ent 的 SQL 构建器，兼容 MySQL / PostgreSQL / SQLite
 * @Author: 安知鱼
 * @Date: 2026-09-05 21:17:02
 * @LastEditTime: 2026-09-27 10:41:36
 * @LastEditors: 安知鱼
 */
package ent

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

const (
	tableRecords = "distribution_records"
	tableTargets = "distribution_targets"
	tableReads   = "distribution_reads"
)

var recordColumns = []string{
	"id", "filename", "mime_type", "size", "hash",
	"storage_type", "storage_file_id", "storage_path",
	"uploaded_by", "uploaded_by_name", "target_count",
	"category", "description", "is_active", "is_read",
	"expires_at", "created_at", "updated_at",
}

type distributionRepo struct {
	eq      dialect.ExecQuerier
	dialect string
	now     func() time.Time
}

// NewDistributionRepo 创建分发记录仓储
func NewDistributionRepo(drv dialect.Driver) repository.DistributionRepository {
	return newDistributionRepo(drv, drv.Dialect())
}

func newDistributionRepo(eq dialect.ExecQuerier, d string) *distributionRepo {
	return &distributionRepo{eq: eq, dialect: d, now: time.Now}
}

func (r *distributionRepo) builder() *sql.DialectBuilder {
	return sql.Dialect(r.dialect)
}

func (r *distributionRepo) exec(ctx context.Context, q sql.Querier) (stdsql.Result, error) {
	query, args := q.Query()
	var res stdsql.Result
	if err := r.eq.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *distributionRepo) query(ctx context.Context, q sql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	rows := &sql.Rows{}
	if err := r.eq.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// count 执行一个只返回单个整数的查询
func (r *distributionRepo) count(ctx context.Context, q sql.Querier) (int64, error) {
	rows, err := r.query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n stdsql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n.Int64, rows.Err()
}

func (r *distributionRepo) Create(ctx context.Context, rec *model.DistributionRecord) error {
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	var expiresAt any
	if rec.ExpiresAt != nil {
		expiresAt = rec.ExpiresAt.UnixMilli()
	}

	insert := r.builder().Insert(tableRecords).
		Columns(recordColumns[1:]...).
		Values(
			rec.Filename, rec.MimeType, rec.Size, rec.Hash,
			string(rec.StorageType), rec.StorageFileID, rec.StoragePath,
			rec.UploadedBy, rec.UploadedByName, len(rec.WorkplaceIDs),
			string(rec.Category), rec.Description, rec.IsActive, rec.IsRead,
			expiresAt, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		)

	if r.dialect == dialect.Postgres {
		insert.Returning("id")
		id, err := r.count(ctx, insert)
		if err != nil {
			return fmt.Errorf("插入分发记录失败: %w", err)
		}
		rec.ID = uint(id)
	} else {
		res, err := r.exec(ctx, insert)
		if err != nil {
			return fmt.Errorf("插入分发记录失败: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("获取分发记录ID失败: %w", err)
		}
		rec.ID = uint(id)
	}

	if len(rec.WorkplaceIDs) > 0 {
		targets := r.builder().Insert(tableTargets).Columns("record_id", "workplace_id")
		for _, w := range rec.WorkplaceIDs {
			targets.Values(rec.ID, w)
		}
		if _, err := r.exec(ctx, targets); err != nil {
			return fmt.Errorf("写入接收组织失败: %w", err)
		}
	}
	return nil
}

func (r *distributionRepo) FindByID(ctx context.Context, id uint) (*model.DistributionRecord, error) {
	records, err := r.selectRecords(ctx, sql.EQ("id", id), nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, constant.ErrNotFound
	}
	return records[0], nil
}

func (r *distributionRepo) FindActiveByHash(ctx context.Context, hash string) (*model.DistributionRecord, error) {
	records, err := r.selectRecords(ctx,
		sql.And(sql.EQ("hash", hash), sql.EQ("is_active", true)),
		func(s *sql.Selector) { s.OrderBy(sql.Asc("id")).Limit(1) },
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *distributionRepo) ListForPublisher(ctx context.Context, opts repository.PublisherListOptions) ([]*model.DistributionRecord, int64, error) {
	return r.page(ctx, func() *sql.Predicate {
		preds := []*sql.Predicate{sql.EQ("is_active", true)}
		if opts.Category != "" {
			preds = append(preds, sql.EQ("category", string(opts.Category)))
		}
		if opts.WorkplaceID != "" {
			preds = append(preds, sql.In("id", r.targetsOf(opts.WorkplaceID)))
		}
		return sql.And(preds...)
	}, opts.PageQuery)
}

func (r *distributionRepo) ListForRecipient(ctx context.Context, opts repository.RecipientListOptions) ([]*model.DistributionRecord, int64, error) {
	return r.page(ctx, func() *sql.Predicate {
		return r.recipientPredicate(opts.WorkplaceID, opts.Category, opts.UnreadOnly)
	}, opts.PageQuery)
}

func (r *distributionRepo) CountUnread(ctx context.Context, workplaceID string, category constant.Category) (int64, error) {
	q := r.builder().Select(sql.Count("*")).
		From(r.builder().Table(tableRecords)).
		Where(r.recipientPredicate(workplaceID, category, true))
	n, err := r.count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("统计未读数量失败: %w", err)
	}
	return n, nil
}

// targetsOf 返回显式指定了该组织的记录 ID 子查询
func (r *distributionRepo) targetsOf(workplaceID string) *sql.Selector {
	return r.builder().Select("record_id").
		From(r.builder().Table(tableTargets)).
		Where(sql.EQ("workplace_id", workplaceID))
}

// readsOf 返回该组织已确认的记录 ID 子查询
func (r *distributionRepo) readsOf(workplaceID string) *sql.Selector {
	return r.builder().Select("record_id").
		From(r.builder().Table(tableReads)).
		Where(sql.EQ("workplace_id", workplaceID))
}

// recipientPredicate 可见性：有效，且为全局记录或组织在接收方中。
// 未读过滤基于组织视角：全局记录看 is_read，定向记录看该组织是否有已读确认。
func (r *distributionRepo) recipientPredicate(workplaceID string, category constant.Category, unreadOnly bool) *sql.Predicate {
	preds := []*sql.Predicate{
		sql.EQ("is_active", true),
		sql.Or(
			sql.EQ("target_count", 0),
			sql.In("id", r.targetsOf(workplaceID)),
		),
	}
	if category != "" {
		preds = append(preds, sql.EQ("category", string(category)))
	}
	if unreadOnly {
		preds = append(preds, sql.Or(
			sql.And(sql.EQ("target_count", 0), sql.EQ("is_read", false)),
			sql.And(sql.GT("target_count", 0), sql.NotIn("id", r.readsOf(workplaceID))),
		))
	}
	return sql.And(preds...)
}

// page 先统计总数再查询当前页，pred 每次调用都会构建新的谓词
func (r *distributionRepo) page(ctx context.Context, pred func() *sql.Predicate, pq repository.PageQuery) ([]*model.DistributionRecord, int64, error) {
	total, err := r.count(ctx, r.builder().Select(sql.Count("*")).
		From(r.builder().Table(tableRecords)).
		Where(pred()))
	if err != nil {
		return nil, 0, fmt.Errorf("统计分发记录失败: %w", err)
	}
	if total == 0 {
		return []*model.DistributionRecord{}, 0, nil
	}

	records, err := r.selectRecords(ctx, pred(), func(s *sql.Selector) {
		s.OrderBy(sql.Desc("created_at"), sql.Desc("id"))
		if pq.PageSize > 0 {
			s.Limit(pq.PageSize).Offset(pq.Offset())
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// selectRecords 查询记录并批量加载接收组织与已读确认
func (r *distributionRepo) selectRecords(ctx context.Context, pred *sql.Predicate, modify func(*sql.Selector)) ([]*model.DistributionRecord, error) {
	sel := r.builder().Select(recordColumns...).From(r.builder().Table(tableRecords)).Where(pred)
	if modify != nil {
		modify(sel)
	}

	rows, err := r.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("查询分发记录失败: %w", err)
	}
	defer rows.Close()

	var records []*model.DistributionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadRelations(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (*model.DistributionRecord, error) {
	var (
		rec                          model.DistributionRecord
		storageType, category        string
		targetCount                  int
		expiresAt                    stdsql.NullInt64
		createdAtMilli, updatedMilli int64
	)
	err := rows.Scan(
		&rec.ID, &rec.Filename, &rec.MimeType, &rec.Size, &rec.Hash,
		&storageType, &rec.StorageFileID, &rec.StoragePath,
		&rec.UploadedBy, &rec.UploadedByName, &targetCount,
		&category, &rec.Description, &rec.IsActive, &rec.IsRead,
		&expiresAt, &createdAtMilli, &updatedMilli,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描分发记录失败: %w", err)
	}
	rec.StorageType = constant.StorageBackendType(storageType)
	rec.Category = constant.Category(category)
	rec.CreatedAt = time.UnixMilli(createdAtMilli)
	rec.UpdatedAt = time.UnixMilli(updatedMilli)
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		rec.ExpiresAt = &t
	}
	if targetCount > 0 {
		rec.WorkplaceIDs = make([]string, 0, targetCount)
	}
	return &rec, nil
}

func (r *distributionRepo) loadRelations(ctx context.Context, records []*model.DistributionRecord) error {
	if len(records) == 0 {
		return nil
	}
	byID := make(map[uint]*model.DistributionRecord, len(records))
	ids := make([]any, 0, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}

	rows, err := r.query(ctx, r.builder().Select("record_id", "workplace_id").
		From(r.builder().Table(tableTargets)).
		Where(sql.In("record_id", ids...)).
		OrderBy("record_id", "workplace_id"))
	if err != nil {
		return fmt.Errorf("加载接收组织失败: %w", err)
	}
	for rows.Next() {
		var id uint
		var w string
		if err := rows.Scan(&id, &w); err != nil {
			rows.Close()
			return err
		}
		if rec, ok := byID[id]; ok {
			rec.WorkplaceIDs = append(rec.WorkplaceIDs, w)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = r.query(ctx, r.builder().Select("record_id", "workplace_id", "reader_id", "read_at").
		From(r.builder().Table(tableReads)).
		Where(sql.In("record_id", ids...)).
		OrderBy("record_id", "read_at"))
	if err != nil {
		return fmt.Errorf("加载已读确认失败: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint
		var rc model.ReadReceipt
		var readAt int64
		if err := rows.Scan(&id, &rc.WorkplaceID, &rc.ReaderID, &readAt); err != nil {
			return err
		}
		rc.ReadAt = time.UnixMilli(readAt)
		if rec, ok := byID[id]; ok {
			rec.ReadBy = append(rec.ReadBy, rc)
		}
	}
	return rows.Err()
}

func (r *distributionRepo) hasReceipt(ctx context.Context, recordID uint, workplaceID string) (bool, error) {
	n, err := r.count(ctx, r.builder().Select(sql.Count("*")).
		From(r.builder().Table(tableReads)).
		Where(sql.And(sql.EQ("record_id", recordID), sql.EQ("workplace_id", workplaceID))))
	return n > 0, err
}

func (r *distributionRepo) AddReadReceipt(ctx context.Context, recordID uint, rc model.ReadReceipt) (bool, error) {
	exists, err := r.hasReceipt(ctx, recordID, rc.WorkplaceID)
	if err != nil {
		return false, fmt.Errorf("查询已读确认失败: %w", err)
	}
	if exists {
		return false, nil
	}
	if rc.ReadAt.IsZero() {
		rc.ReadAt = r.now()
	}

	_, err = r.exec(ctx, r.builder().Insert(tableReads).
		Columns("record_id", "workplace_id", "reader_id", "read_at").
		Values(recordID, rc.WorkplaceID, rc.ReaderID, rc.ReadAt.UnixMilli()))
	if err != nil {
		// 并发确认时主键冲突，视为已确认
		if exists, cerr := r.hasReceipt(ctx, recordID, rc.WorkplaceID); cerr == nil && exists {
			return false, nil
		}
		return false, fmt.Errorf("写入已读确认失败: %w", err)
	}
	return true, nil
}

func (r *distributionRepo) SetRead(ctx context.Context, recordID uint, isRead bool) error {
	_, err := r.exec(ctx, r.builder().Update(tableRecords).
		Set("is_read", isRead).
		Set("updated_at", r.now().UnixMilli()).
		Where(sql.EQ("id", recordID)))
	if err != nil {
		return fmt.Errorf("更新已读状态失败: %w", err)
	}
	return nil
}

func (r *distributionRepo) Deactivate(ctx context.Context, recordID uint) (bool, error) {
	res, err := r.exec(ctx, r.builder().Update(tableRecords).
		Set("is_active", false).
		Set("updated_at", r.now().UnixMilli()).
		Where(sql.And(sql.EQ("id", recordID), sql.EQ("is_active", true))))
	if err != nil {
		return false, fmt.Errorf("删除分发记录失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *distributionRepo) DeactivateAll(ctx context.Context) ([]uint, []model.PhysicalRef, error) {
	rows, err := r.query(ctx, r.builder().Select("id", "storage_type", "storage_file_id").
		From(r.builder().Table(tableRecords)).
		Where(sql.EQ("is_active", true)).
		OrderBy("id"))
	if err != nil {
		return nil, nil, fmt.Errorf("查询有效记录失败: %w", err)
	}

	var (
		ids  []uint
		refs []model.PhysicalRef
		seen = make(map[model.PhysicalRef]struct{})
	)
	for rows.Next() {
		var id uint
		var storageType, fileID string
		if err := rows.Scan(&id, &storageType, &fileID); err != nil {
			rows.Close()
			return nil, nil, err
		}
		ids = append(ids, id)
		ref := model.PhysicalRef{StorageType: constant.StorageBackendType(storageType), FileID: fileID}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil, nil
	}

	// 只翻转已收集的记录，之后新发布的记录不受影响
	_, err = r.exec(ctx, r.builder().Update(tableRecords).
		Set("is_active", false).
		Set("updated_at", r.now().UnixMilli()).
		Where(sql.And(sql.EQ("is_active", true), sql.LTE("id", ids[len(ids)-1]))))
	if err != nil {
		return nil, nil, fmt.Errorf("批量删除分发记录失败: %w", err)
	}
	return ids, refs, nil
}

func (r *distributionRepo) CountActiveByRef(ctx context.Context, ref model.PhysicalRef) (int64, error) {
	n, err := r.count(ctx, r.builder().Select(sql.Count("*")).
		From(r.builder().Table(tableRecords)).
		Where(sql.And(
			sql.EQ("is_active", true),
			sql.EQ("storage_type", string(ref.StorageType)),
			sql.EQ("storage_file_id", ref.FileID),
		)))
	if err != nil {
		return 0, fmt.Errorf("统计物理对象引用失败: %w", err)
	}
	return n, nil
}

// forUpdate 为查询加行锁。SQLite 不支持 FOR UPDATE，写事务本身已是串行的
func (r *distributionRepo) forUpdate(s *sql.Selector) *sql.Selector {
	if r.dialect != dialect.SQLite {
		s.ForUpdate()
	}
	return s
}

func (r *distributionRepo) LockRef(ctx context.Context, ref model.PhysicalRef) (int64, error) {
	rows, err := r.query(ctx, r.forUpdate(r.builder().Select("id", "is_active").
		From(r.builder().Table(tableRecords)).
		Where(sql.And(
			sql.EQ("storage_type", string(ref.StorageType)),
			sql.EQ("storage_file_id", ref.FileID),
		)).
		OrderBy("id")))
	if err != nil {
		return 0, fmt.Errorf("锁定物理对象引用失败: %w", err)
	}
	defer rows.Close()

	var active int64
	for rows.Next() {
		var id uint
		var isActive bool
		if err := rows.Scan(&id, &isActive); err != nil {
			return 0, err
		}
		if isActive {
			active++
		}
	}
	return active, rows.Err()
}

func (r *distributionRepo) LockRecord(ctx context.Context, recordID uint) error {
	rows, err := r.query(ctx, r.forUpdate(r.builder().Select("id").
		From(r.builder().Table(tableRecords)).
		Where(sql.EQ("id", recordID))))
	if err != nil {
		return fmt.Errorf("锁定分发记录失败: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return constant.ErrNotFound
	}
	return nil
}

func (r *distributionRepo) Stats(ctx context.Context) (*model.DistributionStats, error) {
	stats := &model.DistributionStats{ByCategory: make(map[string]int64)}

	rows, err := r.query(ctx, r.builder().Select(
		sql.Count("*"),
		"COALESCE(SUM(size), 0)",
		"COALESCE(SUM(CASE WHEN target_count = 0 THEN 1 ELSE 0 END), 0)",
	).From(r.builder().Table(tableRecords)).Where(sql.EQ("is_active", true)))
	if err != nil {
		return nil, fmt.Errorf("统计分发记录失败: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&stats.TotalRecords, &stats.TotalBytes, &stats.GlobalRecords); err != nil {
			rows.Close()
			return nil, err
		}
	}
	rows.Close()

	rows, err = r.query(ctx, r.builder().Select("category", sql.Count("*")).
		From(r.builder().Table(tableRecords)).
		Where(sql.EQ("is_active", true)).
		GroupBy("category"))
	if err != nil {
		return nil, fmt.Errorf("按分类统计失败: %w", err)
	}
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByCategory[category] = n
	}
	rows.Close()

	rows, err = r.query(ctx, r.builder().Select("storage_type", "storage_file_id", "MAX(size)").
		From(r.builder().Table(tableRecords)).
		Where(sql.EQ("is_active", true)).
		GroupBy("storage_type", "storage_file_id"))
	if err != nil {
		return nil, fmt.Errorf("统计物理对象失败: %w", err)
	}
	for rows.Next() {
		var storageType, fileID string
		var size int64
		if err := rows.Scan(&storageType, &fileID, &size); err != nil {
			rows.Close()
			return nil, err
		}
		stats.StoredObjects++
		stats.StoredBytes += size
	}
	rows.Close()

	activeIDs := r.builder().Select("id").From(r.builder().Table(tableRecords)).Where(sql.EQ("is_active", true))
	stats.DistinctRecipientWorkplaces, err = r.count(ctx, r.builder().Select("COUNT(DISTINCT workplace_id)").
		From(r.builder().Table(tableTargets)).
		Where(sql.In("record_id", activeIDs)))
	if err != nil {
		return nil, fmt.Errorf("统计接收组织失败: %w", err)
	}
	return stats, nil
}
