package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/aihub/lotr-chat/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConversationCache 对话读缓存。缓存不可用时按未命中处理
type ConversationCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, bool)
	Set(ctx context.Context, conv *models.Conversation)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*models.Conversation, bool) { return nil, false }
func (noopCache) Set(context.Context, *models.Conversation)                   {}
func (noopCache) Invalidate(context.Context, uuid.UUID)                       {}

// RedisConversationCache Redis对话缓存
type RedisConversationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisConversationCache 创建Redis对话缓存
func NewRedisConversationCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisConversationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.Named("cache")
	}
	return &RedisConversationCache{client: client, ttl: ttl, logger: log}
}

func conversationKey(id uuid.UUID) string {
	return "lotr:conversation:" + id.String()
}

func (c *RedisConversationCache) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, bool) {
	data, err := c.client.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("conversation_id", id.String()), zap.Error(err))
		}
		return nil, false
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		c.logger.Warn("corrupt cached conversation", zap.String("conversation_id", id.String()), zap.Error(err))
		return nil, false
	}
	// conversation_id 不参与序列化，读取后补回
	for i := range conv.Messages {
		conv.Messages[i].ConversationID = conv.ID
	}
	return &conv, true
}

func (c *RedisConversationCache) Set(ctx context.Context, conv *models.Conversation) {
	data, err := json.Marshal(conv)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, conversationKey(conv.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
	}
}

func (c *RedisConversationCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, conversationKey(id)).Err(); err != nil {
		c.logger.Warn("redis del failed", zap.String("conversation_id", id.String()), zap.Error(err))
	}
}
