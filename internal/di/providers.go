package di

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/database"
	"github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/kafka"
	"github.com/aihub/lotr-chat/internal/knowledge"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/aihub/lotr-chat/internal/repository"
	"github.com/aihub/lotr-chat/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []struct {
		name        string
		constructor interface{}
		opts        []dig.ProvideOption
	}{
		{"config", provideConfig, nil},
		{"logger", func() *zap.Logger { return logger.GetLogger() }, nil},
		{"logrus", provideLogrus, nil},
		{"resources", NewResources, nil},
		{"registry", providePrometheusRegistry, []dig.ProvideOption{dig.As(new(prometheus.Registerer), new(prometheus.Gatherer))}},

		// 存储
		{"database", provideDatabase, nil},
		{"redis", provideRedis, nil},
		{"repository", repository.NewConversationRepository, nil},

		// 问答流水线
		{"embedder", provideEmbedder, nil},
		{"vector store", provideVectorStore, nil},
		{"template source", provideTemplateSource, nil},
		{"prompt assembler", knowledge.NewPromptAssembler, nil},
		{"completer", provideCompleter, nil},
		{"pipeline metrics", knowledge.NewMetrics, nil},
		{"pipeline", providePipeline, nil},

		// 服务
		{"conversation cache", provideConversationCache, nil},
		{"event publisher", provideEventPublisher, nil},
		{"conversation service", provideConversationService, nil},
		{"metrics service", services.NewMetricsService, nil},
		{"health checker", provideHealthChecker, nil},

		// 错误处理
		{"error handler", errors.NewErrorHandler, nil},
	}

	for _, p := range providers {
		if err := container.Provide(p.constructor, p.opts...); err != nil {
			return fmt.Errorf("register %s provider: %w", p.name, err)
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	cfg := config.GetAppConfig()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

// provideLogrus 数据库运维组件（迁移、健康检查）使用logrus
func provideLogrus(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	if cfg.Server.Env == "development" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func providePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideDatabase(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer, res *Resources) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := database.NewQueryMetrics(reg, sqlDB).Register(db); err != nil {
		return nil, fmt.Errorf("register query metrics: %w", err)
	}
	database.DB = db
	res.Add("database", sqlDB.Close)
	return db, nil
}

// provideRedis Redis未启用或不可用时返回nil，对话缓存退化为直读数据库
func provideRedis(cfg *config.Config, log *zap.Logger, res *Resources) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, conversation cache disabled", zap.Error(err))
		return nil
	}
	res.Add("redis", client.Close)
	return client
}

// 远程服务熔断参数
const (
	breakerFailures  = 5
	breakerSuccesses = 1
	breakerTimeout   = 30 * time.Second
)

func provideEmbedder(cfg *config.Config, log *zap.Logger) (knowledge.Embedder, error) {
	embedder, err := knowledge.NewEmbedder(cfg.Embedding, cfg.AI, log.Named("embedder"))
	if err != nil {
		return nil, err
	}
	breaker := knowledge.NewCircuitBreaker("embedding", breakerFailures, breakerSuccesses, breakerTimeout)
	return knowledge.NewBreakerEmbedder(embedder, breaker), nil
}

func provideVectorStore(cfg *config.Config, log *zap.Logger, res *Resources) (knowledge.VectorStore, error) {
	store, err := knowledge.NewVectorStore(cfg.VectorStore, log.Named("vector_store"))
	if err != nil {
		return nil, err
	}
	res.Add("vector store", store.Close)
	return store, nil
}

func provideTemplateSource(cfg *config.Config, log *zap.Logger, res *Resources) (knowledge.TemplateSource, error) {
	source, err := knowledge.NewTemplateSource(cfg.Prompts, log.Named("prompts"))
	if err != nil {
		return nil, err
	}
	if c, ok := source.(io.Closer); ok {
		res.Add("template source", c.Close)
	}
	return source, nil
}

func provideCompleter(cfg *config.Config) knowledge.Completer {
	breaker := knowledge.NewCircuitBreaker("completion", breakerFailures, breakerSuccesses, breakerTimeout)
	return knowledge.NewBreakerCompleter(knowledge.NewOpenAICompleter(cfg.AI), breaker)
}

func providePipeline(embedder knowledge.Embedder, store knowledge.VectorStore, prompts *knowledge.PromptAssembler,
	completer knowledge.Completer, metrics *knowledge.Metrics, log *zap.Logger) *knowledge.Pipeline {
	return knowledge.NewPipeline(embedder, store, prompts, completer, metrics, log.Named("pipeline"))
}

func provideConversationCache(cfg *config.Config, client *redis.Client, log *zap.Logger) services.ConversationCache {
	if client == nil {
		return nil
	}
	ttl := time.Duration(cfg.Redis.TTL) * time.Second
	return services.NewRedisConversationCache(client, ttl, log.Named("cache"))
}

// provideEventPublisher Kafka未启用时不发布事件
func provideEventPublisher(cfg *config.Config, log *zap.Logger, res *Resources) services.EventPublisher {
	if !cfg.Kafka.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("kafka"))
	if err != nil {
		log.Warn("kafka unavailable, message events disabled", zap.Error(err))
		return nil
	}
	res.Add("kafka producer", producer.Close)
	return producer
}

func provideConversationService(repo repository.ConversationRepository, pipeline *knowledge.Pipeline,
	cache services.ConversationCache, events services.EventPublisher, log *zap.Logger) *services.ConversationService {
	return services.NewConversationService(repo, pipeline, cache, events, log.Named("conversation"))
}

func provideHealthChecker(db *gorm.DB, client *redis.Client, log *logrus.Logger) (*database.HealthChecker, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	checker := database.NewHealthChecker(log)
	checker.Register("database", database.SQLProbe(sqlDB), true)
	if client != nil {
		checker.Register("redis", database.RedisProbe(client), false)
	}
	return checker, nil
}
