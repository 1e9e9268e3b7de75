package main

import (
	"github.com/dushixiang/sidecar/internal/aggregator"
	"github.com/dushixiang/sidecar/internal/config"
	"github.com/dushixiang/sidecar/internal/handler"
	"github.com/dushixiang/sidecar/internal/logging"
	"github.com/dushixiang/sidecar/internal/server"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// App 聚合器进程
type App struct {
	Config config.AggregatorConfig
	Logger *zap.Logger
	Server *server.Server
}

func provideLogger(cfg config.AggregatorConfig) (*zap.Logger, func()) {
	logger := logging.New(cfg.Log)
	return logger, func() { _ = logger.Sync() }
}

func provideStore(cfg config.AggregatorConfig) *aggregator.Store {
	return aggregator.NewStore(cfg.Capacity, cfg.DedupeWindow)
}

func provideServer(cfg config.AggregatorConfig, logger *zap.Logger, h *handler.LogHandler) *server.Server {
	s := server.New(cfg.Addr,
		server.ZapRequestLogger(logger),
		middleware.BodyLimit(cfg.BodyLimit),
	)
	h.Register(s.Echo())
	return s
}

func newApp(cfg config.AggregatorConfig, logger *zap.Logger, s *server.Server) *App {
	return &App{Config: cfg, Logger: logger, Server: s}
}
