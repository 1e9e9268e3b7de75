//go:build wireinject
// +build wireinject

package main

import (
	"github.com/dushixiang/sidecar/internal/config"
	"github.com/dushixiang/sidecar/internal/handler"
	"github.com/google/wire"
)

func initApp(cfg config.AggregatorConfig) (*App, func(), error) {
	wire.Build(
		provideLogger,
		provideStore,
		handler.NewLogHandler,
		provideServer,
		newApp,
	)
	return nil, nil, nil
}
