package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Clean 清扫缓存目录中的过期条目。目录不存在时视为空目录；
// 单个条目删除失败会记录到 CleanResult.Failures，不会中断清扫。
func (b *FileBackend) Clean(ctx context.Context, mode CleanMode) (CleanResult, error) {
	if err := ctx.Err(); err != nil {
		return CleanResult{}, err
	}

	var lifetime time.Duration
	switch mode.kind {
	case cleanAll:
	case cleanExpired:
		lifetime = b.lifetime
	case cleanUser:
		return CleanResult{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	case cleanOlderThan:
		if mode.lifetime < time.Second {
			return CleanResult{}, fmt.Errorf("%w: %s", ErrInvalidLifetime, mode.lifetime)
		}
		lifetime = mode.lifetime
	default:
		return CleanResult{}, fmt.Errorf("%w: unknown mode", ErrUnsupportedMode)
	}

	dir := b.Directory()
	entries, err := b.listEntries(dir)
	if err != nil {
		return CleanResult{}, err
	}

	now := b.now().Unix()
	seconds := int64(lifetime / time.Second)
	result := CleanResult{Scanned: len(entries)}

	for _, entry := range entries {
		if mode.kind != cleanAll && entry.ModTime().Unix()+seconds > now {
			continue
		}

		entryPath := filepath.Join(dir, entry.Name())
		if err := b.fs.Remove(entryPath); err != nil {
			if isNotExist(err) {
				continue
			}
			failure := EntryError{Name: entry.Name(), Path: entryPath, Err: err}
			result.Failures = append(result.Failures, failure)
			b.logger.WithFields(logrus.Fields{
				"action": "cache_clean",
				"entry":  entry.Name(),
				"path":   entryPath,
			}).WithError(err).Warn("cache entry removal failed")
			continue
		}
		result.Deleted++
	}

	if result.Deleted > 0 || len(result.Failures) > 0 {
		b.logger.WithFields(logrus.Fields{
			"action":   "cache_clean",
			"mode":     mode.String(),
			"path":     dir,
			"scanned":  result.Scanned,
			"deleted":  result.Deleted,
			"failures": len(result.Failures),
		}).Info("cache directory swept")
	}

	return result, nil
}

// listEntries 返回目录下的普通文件，按名称（忽略大小写）排序。
func (b *FileBackend) listEntries(dir string) ([]os.FileInfo, error) {
	infos, err := b.fs.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache directory %s: %w", dir, err)
	}

	files := make([]os.FileInfo, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, info)
	}

	sort.Slice(files, func(i, j int) bool {
		a, c := strings.ToLower(files[i].Name()), strings.ToLower(files[j].Name())
		if a != c {
			return a < c
		}
		return files[i].Name() < files[j].Name()
	})
	return files, nil
}
