/*
 * @Description: 启动引导：建表并准备 ID 种子与 JWT 密钥
 * @Author: 安知鱼
 * @Date: 2026-09-18 10:12:05
 * @LastEditTime: 2026-09-27 20:03:17
 * @LastEditors: 安知鱼
 */
package bootstrap

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/utils"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/idgen"
)

const (
	tableSettings = "system_settings"

	settingIDSeed    = "id_seed"
	settingJWTSecret = "jwt_secret"
)

type Bootstrapper struct {
	db     *stdsql.DB
	drv    dialect.Driver
	dbType string
	cfg    *config.Config
}

func NewBootstrapper(db *stdsql.DB, drv dialect.Driver, dbType string, cfg *config.Config) *Bootstrapper {
	return &Bootstrapper{db: db, drv: drv, dbType: dbType, cfg: cfg}
}

// InitializeDatabase 执行迁移，可重复调用
func (b *Bootstrapper) InitializeDatabase(ctx context.Context) error {
	log.Info().Msg("--- 开始执行数据库初始化引导程序 ---")
	if err := database.NewMigrationService(b.db, b.dbType).RunMigrations(ctx); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Info().Msg("--- 数据库初始化引导程序执行完成 ---")
	return nil
}

// IDSeed 返回公共ID编码种子。
// 配置优先；其次读取数据库中保存的种子；都没有时，全新安装生成随机种子，
// 已有分发记录的库使用空种子（默认字母表），保证已发出的ID仍能解码。
func (b *Bootstrapper) IDSeed(ctx context.Context) (string, error) {
	if seed := b.cfg.GetString(config.KeyIDSeed); seed != "" {
		return seed, nil
	}

	seed, found, err := b.getSetting(ctx, settingIDSeed)
	if err != nil {
		return "", err
	}
	if found {
		if seed == "" {
			log.Info().Msg("使用兼容模式（默认字母表）")
		} else {
			log.Info().Msg("已从数据库加载 IDSeed")
		}
		return seed, nil
	}

	existing, err := b.countRecords(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("无法查询分发记录数量，按已有数据处理")
		existing = 1
	}
	if existing == 0 {
		seed, err = idgen.GenerateRandomSeed()
		if err != nil {
			return "", err
		}
		log.Info().Msg("全新安装，已生成随机 IDSeed")
	} else {
		log.Warn().Msg("检测到已有分发记录，使用兼容模式（默认字母表）")
	}

	if err := b.putSetting(ctx, settingIDSeed, seed); err != nil {
		return "", fmt.Errorf("保存 IDSeed 失败: %w", err)
	}
	return seed, nil
}

// JWTSecret 返回校验访问令牌的密钥。
// 正式部署必须与 HR 门户配置同一个密钥；未配置时生成并保存一个本地密钥，只有本服务签发的令牌能通过校验。
func (b *Bootstrapper) JWTSecret(ctx context.Context) ([]byte, error) {
	if secret := b.cfg.GetString(config.KeyJWTSecret); secret != "" {
		return []byte(secret), nil
	}

	secret, found, err := b.getSetting(ctx, settingJWTSecret)
	if err != nil {
		return nil, err
	}
	if !found || secret == "" {
		secret, err = utils.GenerateRandomString(32)
		if err != nil {
			return nil, fmt.Errorf("生成 JWT Secret 失败: %w", err)
		}
		if err := b.putSetting(ctx, settingJWTSecret, secret); err != nil {
			return nil, fmt.Errorf("保存 JWT Secret 失败: %w", err)
		}
	}
	log.Warn().Msg("未配置 System.JWTSecret，HR 门户签发的令牌将无法通过校验")
	return []byte(secret), nil
}

func (b *Bootstrapper) getSetting(ctx context.Context, key string) (string, bool, error) {
	d := b.drv.Dialect()
	query, args := sql.Dialect(d).
		Select("value").
		From(sql.Dialect(d).Table(tableSettings)).
		Where(sql.EQ("config_key", key)).
		Limit(1).
		Query()

	rows := &sql.Rows{}
	if err := b.drv.Query(ctx, query, args, rows); err != nil {
		return "", false, fmt.Errorf("查询配置项 '%s' 失败: %w", key, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value stdsql.NullString
	if err := rows.Scan(&value); err != nil {
		return "", false, err
	}
	return value.String, true, nil
}

func (b *Bootstrapper) putSetting(ctx context.Context, key, value string) error {
	query, args := sql.Dialect(b.drv.Dialect()).
		Insert(tableSettings).
		Columns("config_key", "value").
		Values(key, value).
		Query()
	return b.drv.Exec(ctx, query, args, nil)
}

func (b *Bootstrapper) countRecords(ctx context.Context) (int64, error) {
	d := b.drv.Dialect()
	query, args := sql.Dialect(d).
		Select(sql.Count("*")).
		From(sql.Dialect(d).Table("distribution_records")).
		Query()

	rows := &sql.Rows{}
	if err := b.drv.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
