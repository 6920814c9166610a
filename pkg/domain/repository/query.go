/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-03 19:42:38
 * @LastEditTime: 2026-09-12 10:08:16
 * @LastEditors: 安知鱼
 */
package repository

// PageQuery 包含了所有列表查询都通用的分页参数。
// 任何需要分页的查询选项结构体都可以嵌入它。
type PageQuery struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// Offset 返回分页偏移量，调用前应先 Normalize
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Normalize 修正非法的分页参数
func (q *PageQuery) Normalize(defaultSize, maxSize int) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultSize
	}
	if maxSize > 0 && q.PageSize > maxSize {
		q.PageSize = maxSize
	}
}

// TotalPages 根据总数计算页数
func (q PageQuery) TotalPages(total int64) int {
	if q.PageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
}
