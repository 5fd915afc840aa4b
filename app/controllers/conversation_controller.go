package controllers

import (
	"context"

	apperrors "github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/models"
	"github.com/google/uuid"
)

// ConversationAPI 控制器依赖的对话服务
type ConversationAPI interface {
	LoadOrCreateConversation(ctx context.Context, id *uuid.UUID) (*models.Conversation, string, error)
	AskQuestion(ctx context.Context, conversationID uuid.UUID, question string) (*models.Message, error)
	ListMessages(ctx context.Context) ([]models.Message, error)
	UpdateFeedback(ctx context.Context, messageID uuid.UUID, feedback string) (*models.Message, error)
}

// ConversationController 对话控制器
type ConversationController struct {
	BaseController
	Service ConversationAPI
}

// Get 有 conversation_id 时加载对话历史，否则新建对话
func (c *ConversationController) Get() {
	var id *uuid.UUID
	if raw := c.GetString("conversation_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			// 非法UUID不可能对应已有对话
			c.HandleError(apperrors.NewInvalidInputError("conversation_id", "must be a valid UUID"))
			return
		}
		id = &parsed
	}

	conv, message, err := c.Service.LoadOrCreateConversation(c.Ctx.Request.Context(), id)
	if err != nil {
		c.HandleError(err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}

	c.JSONSuccessWithMessage(conv, message)
}
