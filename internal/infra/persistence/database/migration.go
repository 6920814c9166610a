/*
 * @Description: 数据库迁移服务（建表与索引）
 * @Author: 安知鱼
 * @Date: 2026-09-04
 */
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MigrationService 数据库迁移服务
type MigrationService struct {
	db     *sql.DB
	dbType string
}

// NewMigrationService 创建迁移服务
func NewMigrationService(db *sql.DB, dbType string) *MigrationService {
	return &MigrationService{
		db:     db,
		dbType: dbType,
	}
}

// RunMigrations 执行所有迁移，可重复执行
func (m *MigrationService) RunMigrations(ctx context.Context) error {
	log.Info().Str("db", m.dbType).Msg("开始执行数据库迁移...")

	var stmts []string
	switch m.dbType {
	case "mysql", "mariadb":
		stmts = mysqlSchema
	case "postgres":
		stmts = postgresSchema
	case "", "sqlite", "sqlite3":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("不支持的数据库类型: %s", m.dbType)
	}

	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移语句失败: %w", err)
		}
	}

	if err := m.migrateExpiresAt(ctx); err != nil {
		return fmt.Errorf("expires_at 字段迁移失败: %w", err)
	}

	log.Info().Msg("数据库迁移完成")
	return nil
}

// migrateExpiresAt 为早期创建的 distribution_records 表补充 expires_at 字段
func (m *MigrationService) migrateExpiresAt(ctx context.Context) error {
	exists, err := m.columnExists(ctx, "distribution_records", "expires_at")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	log.Info().Msg("正在添加 distribution_records.expires_at 字段...")
	_, err = m.db.ExecContext(ctx, "ALTER TABLE distribution_records ADD COLUMN expires_at BIGINT NULL")
	return err
}

// columnExists 检查列是否存在
func (m *MigrationService) columnExists(ctx context.Context, tableName, columnName string) (bool, error) {
	var query string
	switch m.dbType {
	case "mysql", "mariadb":
		query = `SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`
	case "postgres":
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2`
	case "", "sqlite", "sqlite3":
		query = `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	default:
		return false, fmt.Errorf("不支持的数据库类型: %s", m.dbType)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, query, tableName, columnName).Scan(&count); err != nil {
		return false, fmt.Errorf("检查列 %s.%s 是否存在失败: %w", tableName, columnName, err)
	}
	return count > 0, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS distribution_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		hash TEXT NOT NULL,
		storage_type TEXT NOT NULL,
		storage_file_id TEXT NOT NULL,
		storage_path TEXT NOT NULL DEFAULT '',
		uploaded_by TEXT NOT NULL,
		uploaded_by_name TEXT NOT NULL DEFAULT '',
		target_count INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		expires_at INTEGER NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_hash ON distribution_records (hash, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_ref ON distribution_records (storage_type, storage_file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_active ON distribution_records (is_active, created_at)`,
	`CREATE TABLE IF NOT EXISTS distribution_targets (
		record_id INTEGER NOT NULL,
		workplace_id TEXT NOT NULL,
		PRIMARY KEY (record_id, workplace_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_targets_workplace ON distribution_targets (workplace_id)`,
	`CREATE TABLE IF NOT EXISTS distribution_reads (
		record_id INTEGER NOT NULL,
		workplace_id TEXT NOT NULL,
		reader_id TEXT NOT NULL,
		read_at INTEGER NOT NULL,
		PRIMARY KEY (record_id, workplace_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_reads_workplace ON distribution_reads (workplace_id)`,
	`CREATE TABLE IF NOT EXISTS workplaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_settings (
		config_key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS distribution_records (
		id BIGSERIAL PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		mime_type VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		hash VARCHAR(64) NOT NULL,
		storage_type VARCHAR(32) NOT NULL,
		storage_file_id VARCHAR(512) NOT NULL,
		storage_path VARCHAR(512) NOT NULL DEFAULT '',
		uploaded_by VARCHAR(64) NOT NULL,
		uploaded_by_name VARCHAR(255) NOT NULL DEFAULT '',
		target_count INTEGER NOT NULL DEFAULT 0,
		category VARCHAR(32) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at BIGINT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_hash ON distribution_records (hash, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_ref ON distribution_records (storage_type, storage_file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_records_active ON distribution_records (is_active, created_at)`,
	`CREATE TABLE IF NOT EXISTS distribution_targets (
		record_id BIGINT NOT NULL,
		workplace_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (record_id, workplace_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_targets_workplace ON distribution_targets (workplace_id)`,
	`CREATE TABLE IF NOT EXISTS distribution_reads (
		record_id BIGINT NOT NULL,
		workplace_id VARCHAR(64) NOT NULL,
		reader_id VARCHAR(64) NOT NULL,
		read_at BIGINT NOT NULL,
		PRIMARY KEY (record_id, workplace_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distribution_reads_workplace ON distribution_reads (workplace_id)`,
	`CREATE TABLE IF NOT EXISTS workplaces (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_settings (
		config_key VARCHAR(64) PRIMARY KEY,
		value VARCHAR(255) NOT NULL DEFAULT ''
	)`,
}

// MySQL 不支持 CREATE INDEX IF NOT EXISTS，索引直接写在建表语句中
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS distribution_records (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		mime_type VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		hash VARCHAR(64) NOT NULL,
		storage_type VARCHAR(32) NOT NULL,
		storage_file_id VARCHAR(512) NOT NULL,
		storage_path VARCHAR(512) NOT NULL DEFAULT '',
		uploaded_by VARCHAR(64) NOT NULL,
		uploaded_by_name VARCHAR(255) NOT NULL DEFAULT '',
		target_count INT NOT NULL DEFAULT 0,
		category VARCHAR(32) NOT NULL,
		description TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at BIGINT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		INDEX idx_distribution_records_hash (hash, is_active),
		INDEX idx_distribution_records_ref (storage_type, storage_file_id),
		INDEX idx_distribution_records_active (is_active, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS distribution_targets (
		record_id BIGINT UNSIGNED NOT NULL,
		workplace_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (record_id, workplace_id),
		INDEX idx_distribution_targets_workplace (workplace_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS distribution_reads (
		record_id BIGINT UNSIGNED NOT NULL,
		workplace_id VARCHAR(64) NOT NULL,
		reader_id VARCHAR(64) NOT NULL,
		read_at BIGINT NOT NULL,
		PRIMARY KEY (record_id, workplace_id),
		INDEX idx_distribution_reads_workplace (workplace_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS workplaces (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS system_settings (
		config_key VARCHAR(64) PRIMARY KEY,
		value VARCHAR(255) NOT NULL DEFAULT ''
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
