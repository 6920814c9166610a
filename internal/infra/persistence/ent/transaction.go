/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-05 23:40:12
 * @LastEditTime: 2026-09-18 18:33:59
 * @LastEditors: 安知鱼
 */
package ent

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

// entTransactionManager 基于 ent 驱动的事务管理器实现。
type entTransactionManager struct {
	drv dialect.Driver
}

// NewEntTransactionManager 是 entTransactionManager 的构造函数。
func NewEntTransactionManager(drv dialect.Driver) repository.TransactionManager {
	return &entTransactionManager{drv: drv}
}

// Do 开启一个事务，并将 Repositories 中的仓储都包裹在这个事务中。
func (tm *entTransactionManager) Do(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := tm.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	defer func() {
		if v := recover(); v != nil {
			tx.Rollback()
			panic(v)
		}
	}()

	repos := repository.Repositories{
		Distribution: newDistributionRepo(tx, tm.drv.Dialect()),
	}

	if err := fn(repos); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("事务执行失败: %w, 回滚事务也失败: %v", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}
