package main

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/metrics"
	"github.com/any-hub/any-cache/internal/server"
	"github.com/any-hub/any-cache/internal/server/routes"
)

// buildApp 组装 Fiber 应用并注册缓存与诊断路由，所有请求共享同一个后端实例。
func buildApp(cfg *config.Config, backend *cache.FileBackend, instrumented *metrics.InstrumentedBackend, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}

	routes.RegisterCacheRoutes(app, routes.CacheRouteOptions{
		Backend:          instrumented,
		Logger:           logger,
		SerializeContent: cfg.Cache.SerializeContent,
	})
	routes.RegisterDiagnosticRoutes(app, routes.DiagnosticOptions{
		Backend:   instrumented,
		Logger:    logger,
		Stats:     instrumented,
		Cache:     cfg.Cache,
		Directory: backend.Directory(),
	})
	return app, nil
}
