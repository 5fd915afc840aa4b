package errors

import (
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/aihub/lotr-chat/internal/knowledge"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"
)

// ErrorTranslator 错误转换器
type ErrorTranslator struct{}

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 将各种类型的错误转换为AppError
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if pipelineErr := TranslatePipelineError(err); pipelineErr != nil {
		return pipelineErr
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return t.translateValidationErrors(validationErrors)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("Resource").WithCause(err)
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return t.translateNetworkError(netErr)
	}

	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return NewSystemError(ErrCodeDatabaseError, "Database migration in dirty state").WithCause(err)
	}

	if t.isDatabaseError(err) {
		return t.translateDatabaseError(err)
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// TranslatePipelineError maps answering pipeline failures to API errors. It returns
// nil for errors that did not come from the pipeline.
func TranslatePipelineError(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, knowledge.ErrEmptyQuery):
		return NewInvalidInputError("question", "must not be empty").WithCause(err)
	case errors.Is(err, knowledge.ErrEmbeddingService):
		return NewExternalServiceError(ErrCodeEmbeddingService, "Embedding service unavailable").WithCause(err)
	case errors.Is(err, knowledge.ErrCompletionService):
		return NewExternalServiceError(ErrCodeCompletionService, "Language model service unavailable").WithCause(err)
	case errors.Is(err, knowledge.ErrPromptTemplate):
		return NewSystemError(ErrCodePromptTemplate, "Prompt templates could not be loaded").WithCause(err)
	case errors.Is(err, knowledge.ErrTemplateRender):
		return NewSystemError(ErrCodeTemplateRender, "Prompt could not be rendered").WithCause(err)
	default:
		return nil
	}
}

// translateValidationErrors 转换验证错误
func (t *ErrorTranslator) translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	details := make([]map[string]interface{}, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))

	for _, fieldError := range validationErrors {
		msg := t.getValidationErrorMessage(fieldError)
		details = append(details, map[string]interface{}{
			"field":   fieldError.Field(),
			"tag":     fieldError.Tag(),
			"message": msg,
		})
		messages = append(messages, msg)
	}

	return NewValidationError(strings.Join(messages, "; ")).
		WithDetails(map[string]interface{}{
			"errors": details,
		})
}

// translateNetworkError 转换网络错误
func (t *ErrorTranslator) translateNetworkError(netErr *net.OpError) *AppError {
	if netErr.Timeout() {
		return NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(netErr)
	}
	return NewSystemError(ErrCodeExternalService, "Network error").WithCause(netErr)
}

// translateDatabaseError 转换数据库错误
func (t *ErrorTranslator) translateDatabaseError(err error) *AppError {
	errMsg := err.Error()

	if strings.Contains(errMsg, "duplicate key value") || strings.Contains(errMsg, "violates unique constraint") {
		return NewBusinessError(ErrCodeConflict, "Resource already exists").WithCause(err)
	}

	if strings.Contains(errMsg, "violates foreign key constraint") {
		return NewBusinessError(ErrCodeBadRequest, "Invalid reference").WithCause(err)
	}

	if strings.Contains(errMsg, "violates check constraint") {
		return NewBusinessError(ErrCodeBadRequest, "Invalid data").WithCause(err)
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewSystemError(ErrCodeConnectionFailed, "Database connection failed").WithCause(err)
	}

	return NewSystemError(ErrCodeDatabaseError, "Database operation failed").WithCause(err)
}

// isDatabaseError 检查是否为数据库错误
func (t *ErrorTranslator) isDatabaseError(err error) bool {
	errMsg := strings.ToLower(err.Error())

	for _, keyword := range []string{"pq:", "sqlstate", "postgres", "relation", "constraint", "duplicate key"} {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// getValidationErrorMessage 获取验证错误消息
func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param() + " characters long"
	default:
		return field + " is invalid"
	}
}
