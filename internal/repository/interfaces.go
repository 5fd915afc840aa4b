package repository

import (
	"context"
	"errors"

	"github.com/aihub/lotr-chat/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// ConversationRepository 对话与消息仓库接口
type ConversationRepository interface {
	Repository
	CreateConversation(ctx context.Context) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID uuid.UUID, question, answer string) (*models.Message, error)
	ListMessages(ctx context.Context) ([]models.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	UpdateMessageFeedback(ctx context.Context, id uuid.UUID, feedback string) (*models.Message, error)
}
