package controllers

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator 校验错误使用json字段名
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MessageRequest POST /api/message 请求体
type MessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Question       string `json:"question" validate:"required,max=4000"`
}

// FeedbackRequest PUT /api/message/:message_id/feedback 请求体
type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,oneof=GOOD BAD"`
}
