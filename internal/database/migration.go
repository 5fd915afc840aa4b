package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

const DefaultMigrationsPath = "./migrations"

// MigrationManager 数据库迁移管理器（conversations / messages 表）
type MigrationManager struct {
	migrate *migrate.Migrate
	path    string
	logger  *logrus.Logger
}

// NewMigrationManager 创建迁移管理器，migrationPath 为空时使用 ./migrations
func NewMigrationManager(db *sql.DB, migrationPath string, logger *logrus.Logger) (*MigrationManager, error) {
	if migrationPath == "" {
		migrationPath = DefaultMigrationsPath
	}
	if abs, err := filepath.Abs(migrationPath); err == nil {
		migrationPath = abs
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &MigrationManager{migrate: m, path: migrationPath, logger: logger}, nil
}

// Path 迁移文件目录
func (mm *MigrationManager) Path() string {
	return mm.path
}

// Up 执行所有待执行的迁移
func (mm *MigrationManager) Up() error {
	mm.logger.WithField("path", mm.path).Info("Starting database migration up")

	err := mm.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mm.logger.Info("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	mm.logger.Info("Database migrations completed successfully")
	return nil
}

// Down 回滚最后一次迁移
func (mm *MigrationManager) Down() error {
	mm.logger.Info("Rolling back last migration")

	if err := mm.migrate.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	mm.logger.Info("Migration rollback completed")
	return nil
}

// Goto 迁移到指定版本，向上或向下
func (mm *MigrationManager) Goto(version uint) error {
	mm.logger.Infof("Migrating to version %d", version)

	err := mm.migrate.Migrate(version)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate to version %d: %w", version, err)
	}

	mm.logger.Infof("Successfully migrated to version %d", version)
	return nil
}

// Version 当前版本；尚未执行任何迁移时返回 0
func (mm *MigrationManager) Version() (uint, bool, error) {
	version, dirty, err := mm.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// ForceVersion 强制设置数据库版本（用于修复脏状态）
func (mm *MigrationManager) ForceVersion(version int) error {
	mm.logger.Warnf("Force setting migration version to %d", version)

	if err := mm.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close 关闭迁移管理器。会同时关闭传入的 *sql.DB
func (mm *MigrationManager) Close() error {
	sourceErr, dbErr := mm.migrate.Close()
	if sourceErr != nil || dbErr != nil {
		mm.logger.WithFields(logrus.Fields{
			"source_error": sourceErr,
			"db_error":     dbErr,
		}).Error("Error closing migrator")
		return fmt.Errorf("errors occurred while closing migrator: source=%v, db=%v", sourceErr, dbErr)
	}
	return nil
}
