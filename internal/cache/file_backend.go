package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
)

// ErrIDInDirectory 表示目录模板引用了 {id}；缓存目录必须被所有条目共享，Clean 才能覆盖它。
var ErrIDInDirectory = errors.New("directory template must not reference {id}")

// Options 对应缓存前端下发的后端参数。
type Options struct {
	// Lifetime 为 CleanExpired 使用的默认过期窗口，按整秒计算。
	Lifetime time.Duration
	// DirectoryTemplate 与 FileTemplate 经 FormatTemplate 替换后拼成条目路径。
	DirectoryTemplate string
	FileTemplate      string
	// Tokens 为额外的模板变量；id/cwd/tmp 为内置变量，优先级更高。
	Tokens map[string]string

	SerializeContent bool
	CompressActive   bool
	CompressLevel    int

	// SweepOnWrite 控制 Store 前是否先执行一次过期清扫；DefaultOptions 中为 true。
	SweepOnWrite bool
}

// DefaultOptions 返回与默认配置一致的参数。
func DefaultOptions(directory string) Options {
	return Options{
		Lifetime:          time.Hour,
		DirectoryTemplate: directory,
		FileTemplate:      "{id}.cache",
		SerializeContent:  true,
		CompressLevel:     6,
		SweepOnWrite:      true,
	}
}

// FileBackend 以单个文件保存每个条目，文件 mtime 是唯一的过期依据。
// 实例内部无锁，并发写同一目录时依赖文件系统自身的语义。
type FileBackend struct {
	fs       billy.Filesystem
	logger   *logrus.Logger
	resolver resolver
	codec    Codec
	lifetime time.Duration
	sweep    bool
	now      func() time.Time
}

// NewLocalFilesystem 返回以根目录为根的本地文件系统，模板中的绝对路径原样生效。
func NewLocalFilesystem() billy.Filesystem {
	return osfs.New("/")
}

// NewFileBackend 校验参数并构造文件后端。logger 为空时丢弃日志。
func NewFileBackend(filesystem billy.Filesystem, opts Options, logger *logrus.Logger) (*FileBackend, error) {
	if filesystem == nil {
		return nil, errors.New("filesystem is required")
	}
	if opts.DirectoryTemplate == "" {
		return nil, errors.New("directory template required")
	}
	if opts.FileTemplate == "" {
		return nil, errors.New("file template required")
	}
	if templateUsesToken(opts.DirectoryTemplate, TokenID) {
		return nil, ErrIDInDirectory
	}
	if opts.Lifetime < time.Second {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLifetime, opts.Lifetime)
	}

	codec, err := NewCodec(opts.SerializeContent, opts.CompressActive, opts.CompressLevel)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &FileBackend{
		fs:       filesystem,
		logger:   logger,
		resolver: newResolver(opts.DirectoryTemplate, opts.FileTemplate, builtinTokens(opts.Tokens)),
		codec:    codec,
		lifetime: opts.Lifetime,
		sweep:    opts.SweepOnWrite,
		now:      time.Now,
	}, nil
}

func builtinTokens(extra map[string]string) map[string]string {
	tokens := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		tokens[k] = v
	}
	if cwd, err := os.Getwd(); err == nil {
		tokens[TokenCWD] = cwd
	}
	tokens[TokenTmp] = os.TempDir()
	return tokens
}

// Directory 返回解析后的缓存目录。
func (b *FileBackend) Directory() string {
	return b.resolver.directory()
}

// Path 返回 id 对应的条目路径，Store/Load/Remove 均使用同一结果。
func (b *FileBackend) Path(id string) string {
	return b.resolver.entryPath(id)
}

// Store 先按需清扫过期条目，再编码并通过临时文件 + Rename 覆盖目标文件，
// 并发 Load 只会看到旧内容或完整的新内容。
func (b *FileBackend) Store(ctx context.Context, id string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.sweep {
		if _, err := b.Clean(ctx, CleanExpired); err != nil {
			return err
		}
	}

	data, err := b.codec.Encode(value)
	if err != nil {
		return err
	}

	filePath := b.Path(id)
	if err := b.writeAtomic(filePath, data); err != nil {
		return err
	}

	b.logger.WithFields(logrus.Fields{
		"action": "cache_store",
		"path":   filePath,
		"bytes":  len(data),
	}).Debug("cache entry stored")
	return nil
}

// Load 先清扫再读取；条目缺失返回 (false, nil)，编解码错误原样返回。
func (b *FileBackend) Load(ctx context.Context, id string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := b.Clean(ctx, CleanExpired); err != nil {
		return false, err
	}

	filePath := b.Path(id)
	info, err := b.fs.Stat(filePath)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat cache file %s: %w", filePath, err)
	}
	if info.IsDir() {
		return false, nil
	}

	data, err := b.readAll(filePath)
	if err != nil {
		if isNotExist(err) {
			// 在 Stat 与 Open 之间被并发清理
			return false, nil
		}
		return false, fmt.Errorf("read cache file %s: %w", filePath, err)
	}

	if err := b.codec.Decode(data, dst); err != nil {
		b.logger.WithFields(logrus.Fields{
			"action": "cache_load",
			"path":   filePath,
		}).WithError(err).Warn("cache entry unreadable")
		return false, err
	}

	b.logger.WithFields(logrus.Fields{
		"action": "cache_load",
		"path":   filePath,
		"bytes":  len(data),
	}).Debug("cache entry loaded")
	return true, nil
}

// Remove 删除条目；与 Load 不同，条目缺失被视为错误。
func (b *FileBackend) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath := b.Path(id)
	if err := b.fs.Remove(filePath); err != nil {
		if isNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return fmt.Errorf("remove cache file %s: %w", filePath, err)
	}

	b.logger.WithFields(logrus.Fields{
		"action": "cache_remove",
		"path":   filePath,
	}).Debug("cache entry removed")
	return nil
}

// tempPrefix 是写入中的临时文件前缀；它们与条目位于同一目录，Clean 按 mtime 一并清扫遗留文件。
const tempPrefix = ".cache-"

func (b *FileBackend) writeAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	tempFile, err := b.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tempName := filepath.Join(dir, filepath.Base(tempFile.Name()))

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		if change, ok := b.fs.(billy.Change); ok {
			err = change.Chmod(tempName, 0o644)
		}
	}
	if err != nil {
		_ = b.fs.Remove(tempName)
		return fmt.Errorf("write cache file %s: %w", filePath, err)
	}

	if err := b.fs.Rename(tempName, filePath); err != nil {
		_ = b.fs.Remove(tempName)
		return fmt.Errorf("rename cache file %s: %w", filePath, err)
	}
	return nil
}

func (b *FileBackend) readAll(filePath string) ([]byte, error) {
	f, err := b.fs.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}
