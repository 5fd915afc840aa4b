package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aihub/lotr-chat/app/bootstrap"
	"github.com/aihub/lotr-chat/app/router"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}

	// 配置Beego全局设置
	web.BConfig.AppName = "LOTR Chat"
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}
	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		app.Shutdown()
		log.Fatalf("invalid server port %q: %v", app.Config.Server.Port, err)
	}
	web.BConfig.Listen.HTTPPort = port

	if err := router.Init(app.Container); err != nil {
		app.Shutdown()
		log.Fatalf("failed to initialize routes: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("shutting down", zap.String("signal", s.String()))
		app.Shutdown()
		os.Exit(0)
	}()

	logger.Info("Starting LOTR Chat", zap.Int("port", port))
	web.Run()
}
