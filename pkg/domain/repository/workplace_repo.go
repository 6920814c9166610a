package repository

import "context"

// WorkplaceRepository 只读的组织目录
type WorkplaceRepository interface {
	// FindNameByID 返回组织的显示名称，不存在时返回 constant.ErrNotFound
	FindNameByID(ctx context.Context, id string) (string, error)
}
