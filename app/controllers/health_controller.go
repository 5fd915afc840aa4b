package controllers

import (
	"net/http"

	"github.com/aihub/lotr-chat/internal/database"
)

// HealthController 健康检查
type HealthController struct {
	BaseController
	Checker *database.HealthChecker
}

// Health 实时检查依赖；必需依赖不可用时返回503
func (c *HealthController) Health() {
	if c.Checker == nil {
		c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
		return
	}

	report := c.Checker.Check(c.Ctx.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// RootController 服务信息
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "lotr-chat",
		"endpoints": []string{
			"GET /api/conversations",
			"POST /api/message",
			"GET /api/message/log",
			"PUT /api/message/:message_id/feedback",
			"GET /health",
			"GET /metrics",
		},
	})
}
