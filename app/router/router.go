package router

import (
	"github.com/aihub/lotr-chat/app/controllers"
	"github.com/aihub/lotr-chat/app/middleware"
	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/database"
	"github.com/aihub/lotr-chat/internal/errors"
	"github.com/aihub/lotr-chat/internal/services"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Dependencies 路由所需的服务
type Dependencies struct {
	dig.In

	Config        *config.Config
	Logger        *zap.Logger
	Conversations *services.ConversationService
	Errors        *errors.ErrorHandler
	Health        *database.HealthChecker
	Metrics       *services.MetricsService
}

// Init registers all routes on the global beego app. Must be called after the
// container providers are registered.
func Init(container *dig.Container) error {
	return container.Invoke(func(deps Dependencies) error {
		api := API{
			Conversations: deps.Conversations,
			Errors:        deps.Errors,
			Health:        deps.Health,
			Metrics:       deps.Metrics,
		}
		if !deps.Config.Prometheus.Enabled {
			api.Metrics = nil
		}
		if err := middleware.Register(web.BeeApp.Handlers, deps.Logger.Named("http"), deps.Config.Server.CORSOrigins); err != nil {
			return err
		}
		Register(web.BeeApp.Handlers, api)
		return nil
	})
}

// API 控制器依赖；Conversations 使用接口以便测试替换
type API struct {
	Conversations controllers.ConversationAPI
	Errors        *errors.ErrorHandler
	Health        *database.HealthChecker
	Metrics       *services.MetricsService
}

// Register 在 handlers 上注册全部路由
func Register(handlers *web.ControllerRegister, api API) {
	base := controllers.BaseController{Errors: api.Errors}

	root := &controllers.RootController{BaseController: base}
	handlers.Add("/", root, web.WithRouterMethods(root, "get:Index"))

	health := &controllers.HealthController{BaseController: base, Checker: api.Health}
	handlers.Add("/health", health, web.WithRouterMethods(health, "get:Health"))

	if api.Metrics != nil {
		metrics := &controllers.MetricsController{Service: api.Metrics}
		handlers.Add("/metrics", metrics, web.WithRouterMethods(metrics, "get:Metrics"))
	}

	conversations := &controllers.ConversationController{BaseController: base, Service: api.Conversations}
	handlers.Add("/api/conversations", conversations, web.WithRouterMethods(conversations, "get:Get"))

	// 具体路由在参数路由之前注册
	messages := &controllers.MessageController{BaseController: base, Service: api.Conversations}
	handlers.Add("/api/message", messages, web.WithRouterMethods(messages, "post:Create"))
	handlers.Add("/api/message/log", messages, web.WithRouterMethods(messages, "get:Log"))
	handlers.Add("/api/message/:message_id/feedback", messages, web.WithRouterMethods(messages, "put:Feedback"))
}
