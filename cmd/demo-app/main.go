package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dushixiang/sidecar/internal/config"
	"github.com/dushixiang/sidecar/internal/demo"
	"github.com/dushixiang/sidecar/internal/handler"
	"github.com/dushixiang/sidecar/internal/logging"
	"github.com/dushixiang/sidecar/internal/server"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadApp()
	logger := logging.New(cfg.Log)
	defer logger.Sync()

	s := server.New(cfg.Addr, server.ZapRequestLogger(logger))
	handler.NewAppHandler(logger, cfg.ServiceName, demo.NewLogWriter(nil, cfg.LogFile), demo.NewMetrics()).
		Register(s.Echo())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("演示应用启动",
		zap.String("addr", cfg.Addr),
		zap.String("service_name", cfg.ServiceName),
		zap.String("log_file", cfg.LogFile),
	)
	if err := s.Run(ctx); err != nil {
		logger.Fatal("服务运行失败", zap.Error(err))
	}
	logger.Info("演示应用已停止")
}
