package config

import (
	"errors"
	"strings"
	"time"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	return c.Cache.validate()
}

func (c CacheConfig) validate() error {
	if c.Directory == "" {
		return newFieldError(cacheField("Directory"), "不能为空")
	}
	if strings.Contains(c.Directory, "{id}") {
		return newFieldError(cacheField("Directory"), "目录模板不能引用 {id}，所有条目需共享同一目录")
	}
	if c.File == "" {
		return newFieldError(cacheField("File"), "不能为空")
	}

	lifetime := c.Lifetime.DurationValue()
	if lifetime < time.Second {
		return newFieldError(cacheField("Lifetime"), "必须至少 1 秒")
	}
	if lifetime%time.Second != 0 {
		return newFieldError(cacheField("Lifetime"), "必须为整秒")
	}

	if c.Compress.Active && (c.Compress.Level < -1 || c.Compress.Level > 9) {
		return newFieldError(cacheField("Compress", "Level"), "必须在 -1-9")
	}
	return nil
}

// EffectiveLifetime 返回清扫使用的 lifetime（整秒）。
func (c *Config) EffectiveLifetime() time.Duration {
	return c.Cache.Lifetime.DurationValue()
}
