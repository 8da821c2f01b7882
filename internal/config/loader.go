package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/any-cache/internal/cache"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyCacheDefaults(&cfg.Cache)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 含模板 token 的目录在后端构造时展开，这里只处理字面路径。
	if !strings.Contains(cfg.Cache.Directory, "{") {
		absDir, err := filepath.Abs(cfg.Cache.Directory)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Cache.Directory = absDir
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Cache.Lifetime", 3600)
	v.SetDefault("Cache.SerializeContent", true)
	v.SetDefault("Cache.SweepOnWrite", true)
	v.SetDefault("Cache.Directory", "./storage")
	v.SetDefault("Cache.File", "{id}.cache")
	v.SetDefault("Cache.Compress.Active", false)
	v.SetDefault("Cache.Compress.Level", 6)
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Lifetime.DurationValue() == 0 {
		c.Lifetime = Duration(time.Hour)
	}
	c.Directory = strings.TrimSpace(c.Directory)
	c.File = strings.TrimSpace(c.File)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return secondsToDuration(seconds)
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return secondsToDuration(float64(v))
		case int64:
			return secondsToDuration(float64(v))
		case float64:
			return secondsToDuration(v)
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// secondsToDuration 拒绝超出 time.Duration 范围的秒数，避免乘法溢出后变成极小的值。
func secondsToDuration(seconds float64) (Duration, error) {
	if seconds > float64(cache.MaxLifetimeSeconds) || seconds < -float64(cache.MaxLifetimeSeconds) {
		return 0, fmt.Errorf("%w: %.0f 秒超出范围", cache.ErrInvalidLifetime, seconds)
	}
	return Duration(time.Duration(seconds * float64(time.Second))), nil
}
