package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/metrics"
	"github.com/any-hub/any-cache/internal/server"
)

// DiagnosticOptions 描述 /-/ 诊断接口的依赖，Stats 为空时不注册 /-/stats。
type DiagnosticOptions struct {
	Backend   cache.Backend
	Logger    *logrus.Logger
	Stats     *metrics.InstrumentedBackend
	Cache     config.CacheConfig
	Directory string
}

// RegisterDiagnosticRoutes 暴露 /-/clean、/-/stats 与 /-/config，供运维手动清扫与排查。
func RegisterDiagnosticRoutes(app *fiber.App, opts DiagnosticOptions) {
	if app == nil || opts.Backend == nil || opts.Logger == nil {
		return
	}

	app.Post("/-/clean", func(c fiber.Ctx) error {
		mode, err := cache.ParseCleanMode(c.Query("mode"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_clean_mode")
		}

		result, err := opts.Backend.Clean(requestContext(c), mode)
		if err != nil {
			if errors.Is(err, cache.ErrUnsupportedMode) {
				return server.RenderError(c, fiber.StatusBadRequest, "unsupported_clean_mode")
			}
			opts.Logger.WithFields(logrus.Fields{
				"action":     "cache_clean",
				"request_id": server.RequestID(c),
				"mode":       mode.String(),
			}).WithError(err).Error("cache clean failed")
			return server.RenderError(c, fiber.StatusInternalServerError, "cache_clean_failed")
		}

		return c.JSON(encodeCleanResult(mode, result))
	})

	if opts.Stats != nil {
		app.Get("/-/stats", func(c fiber.Ctx) error {
			return c.JSON(opts.Stats.Snapshot())
		})
	}

	app.Get("/-/config", func(c fiber.Ctx) error {
		return c.JSON(encodeCacheConfig(opts.Cache, opts.Directory))
	})
}

type cleanFailurePayload struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type cleanPayload struct {
	Mode     string                `json:"mode"`
	Scanned  int                   `json:"scanned"`
	Deleted  int                   `json:"deleted"`
	Failures []cleanFailurePayload `json:"failures"`
}

func encodeCleanResult(mode cache.CleanMode, result cache.CleanResult) cleanPayload {
	payload := cleanPayload{
		Mode:     mode.String(),
		Scanned:  result.Scanned,
		Deleted:  result.Deleted,
		Failures: make([]cleanFailurePayload, 0, len(result.Failures)),
	}
	for _, failure := range result.Failures {
		reason := ""
		if failure.Err != nil {
			reason = failure.Err.Error()
		}
		payload.Failures = append(payload.Failures, cleanFailurePayload{
			Name:   failure.Name,
			Path:   failure.Path,
			Reason: reason,
		})
	}
	return payload
}

type cacheConfigPayload struct {
	Directory        string `json:"directory"`
	FileTemplate     string `json:"file_template"`
	LifetimeSeconds  int64  `json:"lifetime_seconds"`
	SerializeContent bool   `json:"serialize_content"`
	SweepOnWrite     bool   `json:"sweep_on_write"`
	CompressActive   bool   `json:"compress_active"`
	CompressLevel    int    `json:"compress_level"`
}

func encodeCacheConfig(cfg config.CacheConfig, directory string) cacheConfigPayload {
	return cacheConfigPayload{
		Directory:        directory,
		FileTemplate:     cfg.File,
		LifetimeSeconds:  int64(cfg.Lifetime.DurationValue() / time.Second),
		SerializeContent: cfg.SerializeContent,
		SweepOnWrite:     cfg.SweepOnWrite,
		CompressActive:   cfg.Compress.Active,
		CompressLevel:    cfg.Compress.Level,
	}
}
