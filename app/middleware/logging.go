package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestStartKey = "request_start"
	requestIDKey    = "request_id"
)

// RequestID 为每个请求分配ID，已有 X-Request-ID 时沿用
func RequestID(ctx *context.Context) {
	id := ctx.Input.Header(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData(requestIDKey, id)
	ctx.Input.SetData(requestStartKey, time.Now())
	ctx.Output.Header(requestIDHeader, id)
}

// NewAccessLogFilter 请求结束后记录访问日志，需配合 RequestID 使用
func NewAccessLogFilter(log *zap.Logger) web.FilterFunc {
	return func(ctx *context.Context) {
		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", statusOf(ctx)),
			zap.String("ip", ctx.Input.IP()),
		}
		if id, ok := ctx.Input.GetData(requestIDKey).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("latency", time.Since(start)))
		}

		if statusOf(ctx) >= 500 {
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func statusOf(ctx *context.Context) int {
	if ctx.ResponseWriter.Status != 0 {
		return ctx.ResponseWriter.Status
	}
	return 200
}

// Register 挂载全局过滤器
func Register(handlers *web.ControllerRegister, log *zap.Logger, origins []string) error {
	if err := handlers.InsertFilter("/*", web.BeforeRouter, RequestID); err != nil {
		return err
	}
	if err := handlers.InsertFilter("/*", web.BeforeRouter, NewCORSFilter(origins)); err != nil {
		return err
	}
	return handlers.InsertFilter("/*", web.FinishRouter, NewAccessLogFilter(log), web.WithReturnOnOutput(false))
}
