package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/kafka"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/aihub/lotr-chat/internal/models"
	"github.com/aihub/lotr-chat/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MessageConversationCreated = "Ask any question about characters of Lord of the Rings!"
	messageConversationLoaded  = "Successfully loaded conversation with id: %s"
)

// Answerer 问答流水线
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// EventPublisher 消息事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.MessageEvent) error
}

// ConversationService 对话服务
type ConversationService struct {
	repo     repository.ConversationRepository
	answerer Answerer
	cache    ConversationCache
	events   EventPublisher
	logger   *zap.Logger
}

// NewConversationService 创建对话服务；cache 和 events 可以为 nil
func NewConversationService(repo repository.ConversationRepository, answerer Answerer, cache ConversationCache, events EventPublisher, log *zap.Logger) *ConversationService {
	if cache == nil {
		cache = noopCache{}
	}
	if log == nil {
		log = logger.Named("conversation")
	}
	return &ConversationService{
		repo:     repo,
		answerer: answerer,
		cache:    cache,
		events:   events,
		logger:   log,
	}
}

// LoadOrCreateConversation loads the conversation with the given id, or creates a new
// one when id is nil. The returned string is the greeting shown to the user.
func (s *ConversationService) LoadOrCreateConversation(ctx context.Context, id *uuid.UUID) (*models.Conversation, string, error) {
	if id == nil {
		conv, err := s.repo.CreateConversation(ctx)
		if err != nil {
			return nil, "", err
		}
		s.logger.Info("conversation created", zap.String("conversation_id", conv.ID.String()))
		return conv, MessageConversationCreated, nil
	}

	conv, err := s.getConversation(ctx, *id)
	if err != nil {
		return nil, "", err
	}
	return conv, fmt.Sprintf(messageConversationLoaded, id.String()), nil
}

// AskQuestion answers question inside an existing conversation and stores the
// exchange. The conversation is checked before the pipeline runs.
func (s *ConversationService) AskQuestion(ctx context.Context, conversationID uuid.UUID, question string) (*models.Message, error) {
	if _, err := s.getConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, question)
	if err != nil {
		return nil, err
	}

	msg, err := s.repo.CreateMessage(ctx, conversationID, question, answer)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, conversationID)

	s.publish(ctx, kafka.MessageEvent{
		Type:           kafka.EventMessageCreated,
		ConversationID: conversationID.String(),
		MessageID:      msg.ID.String(),
		Question:       msg.Question,
		Answer:         msg.Answer,
		Timestamp:      msg.CreatedAt,
	})
	return msg, nil
}

// ListMessages 获取全部消息记录
func (s *ConversationService) ListMessages(ctx context.Context) ([]models.Message, error) {
	return s.repo.ListMessages(ctx)
}

// UpdateFeedback 设置消息反馈（GOOD|BAD）
func (s *ConversationService) UpdateFeedback(ctx context.Context, messageID uuid.UUID, feedback string) (*models.Message, error) {
	if !models.ValidFeedback(feedback) {
		return nil, apperrors.NewValidationError("Feedback must be either 'GOOD' or 'BAD'")
	}

	msg, err := s.repo.UpdateMessageFeedback(ctx, messageID, feedback)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Message").WithCause(err)
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, msg.ConversationID)

	s.publish(ctx, kafka.MessageEvent{
		Type:           kafka.EventMessageFeedback,
		ConversationID: msg.ConversationID.String(),
		MessageID:      msg.ID.String(),
		Feedback:       feedback,
	})
	return msg, nil
}

func (s *ConversationService) getConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if conv, ok := s.cache.Get(ctx, id); ok {
		return conv, nil
	}

	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Conversation").WithCause(err)
		}
		return nil, err
	}
	s.cache.Set(ctx, conv)
	return conv, nil
}

// publish 事件发送失败不影响主流程
func (s *ConversationService) publish(ctx context.Context, event kafka.MessageEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish message event failed",
			zap.String("type", event.Type),
			zap.String("message_id", event.MessageID),
			zap.Error(err))
	}
}
