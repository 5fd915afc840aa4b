package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/database"
	"github.com/aihub/lotr-chat/internal/di"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Container *dig.Container
	Config    *config.Config

	resources    *di.Resources
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger, database schema and the dependency
// container used by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}
	app := &App{Container: container, Config: cfg}

	if cfg.Database.AutoMigrate {
		if err := container.Invoke(func(l *logrus.Logger) error {
			return RunMigrations(cfg.Database, l)
		}); err != nil {
			return nil, err
		}
	}

	if err := container.Invoke(func(res *di.Resources) { app.resources = res }); err != nil {
		return nil, err
	}

	// 后台健康检查，/health 会实时再检查一次
	ctx, cancel := context.WithCancel(context.Background())
	if err := container.Invoke(func(checker *database.HealthChecker) {
		go checker.Start(ctx)
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			checker.Stop()
			return nil
		})
	}); err != nil {
		cancel()
		app.Shutdown()
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		cancel()
		return nil
	})

	logger.Info("application bootstrapped",
		zap.String("env", cfg.Server.Env),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("kafka", cfg.Kafka.Enabled))
	return app, nil
}

// RunMigrations 使用独立连接执行迁移；MigrationManager.Close 会关闭该连接
func RunMigrations(cfg config.DatabaseConfig, l *logrus.Logger) error {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	mm, err := database.NewMigrationManager(db, cfg.MigrationsPath, l)
	if err != nil {
		db.Close()
		return err
	}
	defer mm.Close()

	return mm.Up()
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("cleanup error", zap.Error(err))
		}
	}
	a.cleanupTasks = nil

	if a.resources != nil {
		_ = a.resources.Close(logger.GetLogger())
	}

	// Flush logger buffers.
	logger.Sync()
}
