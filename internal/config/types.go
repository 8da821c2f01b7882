package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		parsed, err := secondsToDuration(float64(intVal))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：监听端口与日志输出。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// CompressConfig 对应 file.compress.active / file.compress.level。
type CompressConfig struct {
	Active bool `mapstructure:"Active"`
	Level  int  `mapstructure:"Level"`
}

// CacheConfig 是文件缓存后端的全部参数。
type CacheConfig struct {
	Lifetime         Duration          `mapstructure:"Lifetime"`
	SerializeContent bool              `mapstructure:"SerializeContent"`
	SweepOnWrite     bool              `mapstructure:"SweepOnWrite"`
	Directory        string            `mapstructure:"Directory"`
	File             string            `mapstructure:"File"`
	Tokens           map[string]string `mapstructure:"Tokens"`
	Compress         CompressConfig    `mapstructure:"Compress"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Cache  CacheConfig  `mapstructure:"Cache"`
}

// BackendOptions 将缓存配置转换为 cache.Options。
func (c CacheConfig) BackendOptions() cache.Options {
	tokens := make(map[string]string, len(c.Tokens))
	for k, v := range c.Tokens {
		tokens[k] = v
	}
	return cache.Options{
		Lifetime:          c.Lifetime.DurationValue(),
		DirectoryTemplate: c.Directory,
		FileTemplate:      c.File,
		Tokens:            tokens,
		SerializeContent:  c.SerializeContent,
		CompressActive:    c.Compress.Active,
		CompressLevel:     c.Compress.Level,
		SweepOnWrite:      c.SweepOnWrite,
	}
}
