package errors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrorHandler 将错误转换为AppError，记录日志并计数
type ErrorHandler struct {
	logger     *zap.Logger
	translator *ErrorTranslator
	counter    *prometheus.CounterVec
}

// NewErrorHandler 创建错误处理器
func NewErrorHandler(logger *zap.Logger, reg prometheus.Registerer) *ErrorHandler {
	return &ErrorHandler{
		logger:     logger,
		translator: NewErrorTranslator(),
		counter: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotr_api_errors_total",
				Help: "API errors by code and type",
			},
			[]string{"code", "type"},
		),
	}
}

// Handle translates err for the given request and records it.
func (h *ErrorHandler) Handle(method, path string, err error) *AppError {
	appErr := h.translator.Translate(err)
	if appErr == nil {
		return nil
	}

	h.counter.WithLabelValues(string(appErr.Code), appErr.Type.String()).Inc()

	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_type", appErr.Type.String()),
		zap.Int("http_code", appErr.HTTPCode),
		zap.String("method", method),
		zap.String("path", path),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Cause))
	}

	// 根据错误类型选择日志级别
	switch appErr.Type {
	case ErrorTypeSystem:
		h.logger.Error("System error occurred", fields...)
	case ErrorTypeExternal:
		h.logger.Warn("External service error occurred", fields...)
	case ErrorTypeBusiness:
		h.logger.Info("Business error occurred", fields...)
	default:
		h.logger.Debug("Validation error occurred", fields...)
	}

	return appErr
}
