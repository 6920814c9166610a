package ent

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

const tableWorkplaces = "workplaces"

type workplaceRepo struct {
	drv dialect.Driver
}

// NewWorkplaceRepo 创建组织目录仓储
func NewWorkplaceRepo(drv dialect.Driver) repository.WorkplaceRepository {
	return &workplaceRepo{drv: drv}
}

func (r *workplaceRepo) FindNameByID(ctx context.Context, id string) (string, error) {
	query, args := sql.Dialect(r.drv.Dialect()).
		Select("name").
		From(sql.Dialect(r.drv.Dialect()).Table(tableWorkplaces)).
		Where(sql.EQ("id", id)).
		Limit(1).
		Query()

	rows := &sql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return "", fmt.Errorf("查询组织 '%s' 失败: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", constant.ErrNotFound
	}
	var name stdsql.NullString
	if err := rows.Scan(&name); err != nil {
		return "", err
	}
	return name.String, nil
}
