package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dushixiang/sidecar/internal/config"
	"go.uber.org/zap"
)

func main() {
	app, cleanup, err := initApp(config.LoadAggregator())
	if err != nil {
		fmt.Fprintln(os.Stderr, "初始化失败:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("模拟聚合器启动",
		zap.String("addr", app.Server.Addr()),
		zap.Int("capacity", app.Config.Capacity),
		zap.Duration("dedupe_window", app.Config.DedupeWindow),
	)
	if err := app.Server.Run(ctx); err != nil {
		app.Logger.Error("服务运行失败", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
	app.Logger.Info("模拟聚合器已停止")
}
