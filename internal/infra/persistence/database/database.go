/*
 * @Description: 数据库连接管理 (支持多种数据库)
 * @Author: 安知鱼
 * @Date: 2026-09-04 16:09:46
 * @LastEditTime: 2026-09-22 09:54:27
 * @LastEditors: 安知鱼
 */
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DialectFor 将配置中的数据库类型映射为 ent 方言名称
func DialectFor(dbType string) (string, error) {
	switch dbType {
	case "mysql", "mariadb":
		return dialect.MySQL, nil
	case "postgres":
		return dialect.Postgres, nil
	case "", "sqlite", "sqlite3":
		return dialect.SQLite, nil
	default:
		return "", fmt.Errorf("不支持的数据库驱动: %s (支持: mysql/mariadb, postgres, sqlite)", dbType)
	}
}

// NewSQLDB 创建并返回一个标准的 *sql.DB 连接池。
func NewSQLDB(cfg *config.Config) (*sql.DB, error) {
	dbType := cfg.GetString(config.KeyDBType)
	dbUser := cfg.GetString(config.KeyDBUser)
	dbPass := cfg.GetString(config.KeyDBPassword)
	dbHost := cfg.GetString(config.KeyDBHost)
	dbPort := cfg.GetString(config.KeyDBPort)
	dbName := cfg.GetString(config.KeyDBName)

	driverName, err := DialectFor(dbType)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch driverName {
	case dialect.MySQL:
		if dbUser == "" || dbHost == "" || dbPort == "" || dbName == "" {
			return nil, fmt.Errorf("MySQL 连接参数不完整 (需要 User, Host, Port, Name)")
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbUser, dbPass, dbHost, dbPort, dbName)
	case dialect.Postgres:
		if dbUser == "" || dbHost == "" || dbPort == "" || dbName == "" {
			return nil, fmt.Errorf("PostgreSQL 连接参数不完整 (需要 User, Host, Port, Name)")
		}
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPass, dbName)
	case dialect.SQLite:
		dataDir := "./data"
		if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("无法创建 data 目录: %w", err)
		}
		if dbName == "" {
			dbName = "filehub.db"
		}
		finalPath := filepath.Join(dataDir, dbName)
		log.Info().Str("path", finalPath).Msg("SQLite 数据库路径")
		dsn = SQLiteDSN(finalPath)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 sql.DB 连接失败 (驱动: %s): %w", driverName, err)
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法 Ping 通数据库 (驱动: %s): %w", driverName, err)
	}

	log.Info().Str("driver", driverName).Msg("数据库连接池创建成功")
	return db, nil
}

// SQLiteDSN 构造启用了外键与忙等待的 SQLite DSN，事务以 IMMEDIATE 模式开启
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

// NewDriver 使用已有连接池创建 ent 驱动，所有仓储都通过它构建和执行 SQL。
func NewDriver(db *sql.DB, dbType string, debug bool) (dialect.Driver, error) {
	name, err := DialectFor(dbType)
	if err != nil {
		return nil, err
	}
	var drv dialect.Driver = entsql.OpenDB(name, db)
	if debug {
		drv = dialect.DebugWithContext(drv, func(_ context.Context, args ...any) {
			log.Debug().Msg(fmt.Sprint(args...))
		})
		log.Info().Msg("【数据库】Debug模式已开启，将打印所有执行的SQL语句")
	}
	return drv, nil
}
