package controllers

import (
	"net/http"

	apperrors "github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/models"
	"github.com/google/uuid"
)

const messageRequiredFields = "conversation_id and question are required"

// MessageController 问答消息控制器
type MessageController struct {
	BaseController
	Service ConversationAPI
}

// Create 对问题运行问答流水线并保存这一轮问答
func (c *MessageController) Create() {
	var req MessageRequest
	if err := c.decodeBody(&req); err != nil {
		c.HandleError(err)
		return
	}
	if req.ConversationID == "" || req.Question == "" {
		c.HandleError(apperrors.NewValidationError(messageRequiredFields))
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.HandleError(err)
		return
	}

	// validate 已检查过格式
	conversationID := uuid.MustParse(req.ConversationID)

	msg, err := c.Service.AskQuestion(c.Ctx.Request.Context(), conversationID, req.Question)
	if err != nil {
		c.HandleError(err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"success":         true,
		"conversation_id": conversationID.String(),
		"data":            msg,
	})
}

// Log 返回全部消息
func (c *MessageController) Log() {
	msgs, err := c.Service.ListMessages(c.Ctx.Request.Context())
	if err != nil {
		c.HandleError(err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSONSuccess(msgs)
}

// Feedback 更新消息反馈
func (c *MessageController) Feedback() {
	messageID, err := uuid.Parse(c.Ctx.Input.Param(":message_id"))
	if err != nil {
		c.HandleError(apperrors.NewNotFoundError("Message"))
		return
	}

	var req FeedbackRequest
	if err := c.decodeBody(&req); err != nil {
		c.HandleError(err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.HandleError(err)
		return
	}

	msg, err := c.Service.UpdateFeedback(c.Ctx.Request.Context(), messageID, req.Feedback)
	if err != nil {
		c.HandleError(err)
		return
	}
	c.JSONSuccess(msg)
}
