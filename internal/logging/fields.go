package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求 ID、缓存操作与命中状态字段，供 HTTP 请求日志复用。
func RequestFields(requestID, operation, id string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"operation":  operation,
		"cache_id":   id,
		"cache_hit":  cacheHit,
	}
}
