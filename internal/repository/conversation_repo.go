package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aihub/lotr-chat/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// conversationRepository 对话仓库实现
type conversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewConversationRepository 创建对话仓库
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db, now: time.Now}
}

// GetDB 获取数据库连接
func (r *conversationRepository) GetDB() *gorm.DB {
	return r.db
}

// CreateConversation 创建空对话
func (r *conversationRepository) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.New(),
		CreatedAt: r.now().UTC(),
		Messages:  []models.Message{},
	}
	if err := r.db.WithContext(ctx).Omit("Messages").Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation 获取对话及其消息（按created_at升序）
func (r *conversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	return &conv, nil
}

// CreateMessage 保存一问一答
func (r *conversationRepository) CreateMessage(ctx context.Context, conversationID uuid.UUID, question, answer string) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Question:       question,
		Answer:         answer,
		CreatedAt:      r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// ListMessages 获取全部消息
func (r *conversationRepository) ListMessages(ctx context.Context) ([]models.Message, error) {
	messages := []models.Message{}
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// GetMessage 根据ID获取消息
func (r *conversationRepository) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// UpdateMessageFeedback 更新消息反馈
func (r *conversationRepository) UpdateMessageFeedback(ctx context.Context, id uuid.UUID, feedback string) (*models.Message, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update("feedback", feedback)
	if result.Error != nil {
		return nil, fmt.Errorf("update feedback: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetMessage(ctx, id)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
