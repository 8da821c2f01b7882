package routes

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/server"
)

// CacheRouteOptions 描述 /cache 路由依赖的后端与编码方式。
type CacheRouteOptions struct {
	Backend cache.Backend
	Logger  *logrus.Logger
	// SerializeContent 为 true 时请求/响应体为 JSON，并交由后端序列化；否则按原始字节存取。
	SerializeContent bool
}

// RegisterCacheRoutes 暴露 /cache/:id 的 PUT/GET/DELETE，分别对应 Store/Load/Remove。
func RegisterCacheRoutes(app *fiber.App, opts CacheRouteOptions) {
	if app == nil || opts.Backend == nil || opts.Logger == nil {
		return
	}
	h := cacheHandler{opts: opts}

	app.Put("/cache/:id", h.store)
	app.Get("/cache/:id", h.load)
	app.Delete("/cache/:id", h.remove)
}

type cacheHandler struct {
	opts CacheRouteOptions
}

func (h cacheHandler) store(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return server.RenderError(c, fiber.StatusBadRequest, "cache_id_required")
	}

	var value any
	if h.opts.SerializeContent {
		if err := json.Unmarshal(c.Body(), &value); err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_json_body")
		}
	} else {
		// fasthttp 会复用请求体缓冲区，必须拷贝
		value = append([]byte(nil), c.Body()...)
	}

	if err := h.opts.Backend.Store(requestContext(c), id, value); err != nil {
		return h.fail(c, "store", id, err)
	}

	h.opts.Logger.WithFields(logging.RequestFields(server.RequestID(c), "store", id, false)).Debug("cache entry stored")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h cacheHandler) load(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return server.RenderError(c, fiber.StatusBadRequest, "cache_id_required")
	}
	ctx := requestContext(c)

	if h.opts.SerializeContent {
		var value any
		found, err := h.opts.Backend.Load(ctx, id, &value)
		if err != nil {
			return h.fail(c, "load", id, err)
		}
		h.logLoad(c, id, found)
		if !found {
			return h.miss(c)
		}
		c.Set("X-Any-Cache-Hit", "true")
		return c.JSON(value)
	}

	var data []byte
	found, err := h.opts.Backend.Load(ctx, id, &data)
	if err != nil {
		return h.fail(c, "load", id, err)
	}
	h.logLoad(c, id, found)
	if !found {
		return h.miss(c)
	}
	c.Set("X-Any-Cache-Hit", "true")
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

func (h cacheHandler) remove(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return server.RenderError(c, fiber.StatusBadRequest, "cache_id_required")
	}

	if err := h.opts.Backend.Remove(requestContext(c), id); err != nil {
		return h.fail(c, "remove", id, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h cacheHandler) miss(c fiber.Ctx) error {
	c.Set("X-Any-Cache-Hit", "false")
	return server.RenderError(c, fiber.StatusNotFound, "cache_miss")
}

func (h cacheHandler) logLoad(c fiber.Ctx, id string, found bool) {
	h.opts.Logger.WithFields(logging.RequestFields(server.RequestID(c), "load", id, found)).Debug("cache lookup")
}

// fail 将后端错误映射为 HTTP 状态码；未识别的错误按 500 处理。
func (h cacheHandler) fail(c fiber.Ctx, operation, id string, err error) error {
	status := fiber.StatusInternalServerError
	code := "cache_backend_error"

	var codecErr *cache.CodecError
	switch {
	case errors.Is(err, cache.ErrNotFound):
		status, code = fiber.StatusNotFound, "cache_entry_not_found"
	case errors.Is(err, cache.ErrRawValue):
		status, code = fiber.StatusBadRequest, "invalid_cache_value"
	case errors.As(err, &codecErr):
		status, code = fiber.StatusUnprocessableEntity, "cache_entry_unreadable"
	}

	entry := h.opts.Logger.WithFields(logging.RequestFields(server.RequestID(c), operation, id, false)).WithError(err)
	if status >= fiber.StatusInternalServerError {
		entry.Error("cache operation failed")
	} else {
		entry.Warn("cache operation rejected")
	}
	return server.RenderError(c, status, code)
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
