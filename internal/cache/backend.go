package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Backend 是通用缓存前端所依赖的能力接口，文件、内存或远端实现均应满足。
type Backend interface {
	// Store 将 value 写入 id 对应的条目，已有内容会被整体覆盖。
	Store(ctx context.Context, id string, value any) error

	// Load 将 id 对应条目解码进 dst。条目不存在时返回 (false, nil)。
	Load(ctx context.Context, id string, dst any) (bool, error)

	// Remove 删除 id 对应条目，条目不存在时返回包装了 ErrNotFound 的错误。
	Remove(ctx context.Context, id string) error

	// Clean 按 mode 清扫缓存目录，返回删除数量与逐条失败信息。
	Clean(ctx context.Context, mode CleanMode) (CleanResult, error)
}

var (
	// ErrNotFound 表示缓存条目不存在（仅 Remove 视为错误）。
	ErrNotFound = errors.New("cache entry not found")
	// ErrUnsupportedMode 表示文件后端不支持该清理模式（CleanUser 保留给其它后端）。
	ErrUnsupportedMode = errors.New("clean mode not supported by file backend")
	// ErrInvalidLifetime 表示显式 lifetime 不是正整数秒。
	ErrInvalidLifetime = errors.New("lifetime must be at least one second")
)

type cleanKind int

const (
	cleanExpired cleanKind = iota
	cleanAll
	cleanUser
	cleanOlderThan
)

// CleanMode 是 Clean 的封闭参数类型，只能通过下方常量或 CleanOlderThan 构造。
type CleanMode struct {
	kind     cleanKind
	lifetime time.Duration
}

var (
	// CleanExpired 使用后端配置的 Lifetime，是默认模式。
	CleanExpired = CleanMode{kind: cleanExpired}
	// CleanAll 无视年龄删除目录下全部条目。
	CleanAll = CleanMode{kind: cleanAll}
	// CleanUser 为用户态缓存后端保留，文件后端调用时直接失败。
	CleanUser = CleanMode{kind: cleanUser}
)

// CleanOlderThan 以显式 lifetime 清理，d 需不小于 1 秒。
func CleanOlderThan(d time.Duration) CleanMode {
	return CleanMode{kind: cleanOlderThan, lifetime: d}
}

// String 返回与 ParseCleanMode 对称的文本表示。
func (m CleanMode) String() string {
	switch m.kind {
	case cleanAll:
		return "all"
	case cleanUser:
		return "user"
	case cleanOlderThan:
		return strconv.FormatInt(int64(m.lifetime/time.Second), 10)
	default:
		return "expired"
	}
}

// MaxLifetimeSeconds 是 time.Duration 能表示的最大整秒数，超出会溢出回绕。
const MaxLifetimeSeconds = math.MaxInt64 / int64(time.Second)

// ParseCleanMode 解析 CLI/HTTP 传入的模式：all、expired、user 或正整数秒。
// 空字符串视为 expired。
func ParseCleanMode(raw string) (CleanMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "", "expired":
		return CleanExpired, nil
	case "all":
		return CleanAll, nil
	case "user":
		return CleanUser, nil
	}

	seconds, err := strconv.ParseInt(normalized, 10, 64)
	if err != nil {
		return CleanMode{}, fmt.Errorf("invalid clean mode %q", raw)
	}
	if seconds <= 0 || seconds > MaxLifetimeSeconds {
		return CleanMode{}, fmt.Errorf("%w: %d", ErrInvalidLifetime, seconds)
	}
	return CleanOlderThan(time.Duration(seconds) * time.Second), nil
}

// CleanResult 汇总一次清扫：扫描条目数、删除数以及逐条失败。
type CleanResult struct {
	Scanned  int          `json:"scanned"`
	Deleted  int          `json:"deleted"`
	Failures []EntryError `json:"failures,omitempty"`
}

// EntryError 记录单个条目删除失败的原因，不会中断整个清扫。
type EntryError struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e EntryError) Error() string {
	return fmt.Sprintf("remove cache entry %s: %v", e.Path, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}
