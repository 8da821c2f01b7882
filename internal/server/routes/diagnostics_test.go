package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/metrics"
	"github.com/any-hub/any-cache/internal/server"
)

func TestCleanRouteDeletesEverythingInAllMode(t *testing.T) {
	app, stats, dir := newDiagnosticTestApp(t)
	for _, name := range []string{"a.cache", "b.cache"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("写入条目失败: %v", err)
		}
	}

	resp := doRequest(t, app, http.MethodPost, "/-/clean?mode=all", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("clean 期望 200，实际 %d", resp.StatusCode)
	}
	var payload cleanPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析 clean 响应失败: %v", err)
	}
	if payload.Mode != "all" || payload.Scanned != 2 || payload.Deleted != 2 {
		t.Fatalf("clean 结果不符: %+v", payload)
	}
	if len(payload.Failures) != 0 {
		t.Fatalf("不应有失败条目: %+v", payload.Failures)
	}
	if got := stats.Counters().Deleted; got != 2 {
		t.Fatalf("swept 计数期望 2，实际 %d", got)
	}
}

func TestCleanRouteKeepsFreshEntriesInExpiredMode(t *testing.T) {
	app, _, dir := newDiagnosticTestApp(t)
	fresh := filepath.Join(dir, "fresh.cache")
	stale := filepath.Join(dir, "stale.cache")
	for _, path := range []string{fresh, stale} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("写入条目失败: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("修改 mtime 失败: %v", err)
	}

	resp := doRequest(t, app, http.MethodPost, "/-/clean", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("clean 期望 200，实际 %d", resp.StatusCode)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("过期条目应被删除")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("未过期条目应保留: %v", err)
	}
}

func TestCleanRouteRejectsBadModes(t *testing.T) {
	app, _, _ := newDiagnosticTestApp(t)

	cases := []struct {
		query string
		code  string
	}{
		{query: "user", code: "unsupported_clean_mode"},
		{query: "abc", code: "invalid_clean_mode"},
		{query: "0", code: "invalid_clean_mode"},
		{query: "-5", code: "invalid_clean_mode"},
		{query: "18446744075", code: "invalid_clean_mode"},
	}
	for _, tc := range cases {
		resp := doRequest(t, app, http.MethodPost, "/-/clean?mode="+tc.query, nil)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("mode=%s 期望 400，实际 %d", tc.query, resp.StatusCode)
		}
		assertErrorCode(t, resp, tc.code)
	}
}

func TestStatsRouteReportsCounters(t *testing.T) {
	app, stats, _ := newDiagnosticTestApp(t)

	var dst string
	if _, err := stats.Load(t.Context(), "nothing", &dst); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	resp := doRequest(t, app, http.MethodGet, "/-/stats", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("stats 期望 200，实际 %d", resp.StatusCode)
	}
	var payload metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析 stats 响应失败: %v", err)
	}
	if payload.Counters.Misses != 1 {
		t.Fatalf("misses 期望 1，实际 %d", payload.Counters.Misses)
	}
	if len(payload.Operations) != 4 {
		t.Fatalf("应列出 4 个操作: %+v", payload.Operations)
	}
	for _, stat := range payload.Operations {
		want := int64(0)
		if stat.Operation == metrics.OpLoad {
			want = 1
		}
		if stat.Count != want {
			t.Fatalf("%s 样本数期望 %d，实际 %d", stat.Operation, want, stat.Count)
		}
	}
	if payload.TakenAt.IsZero() {
		t.Fatalf("快照应带时间戳")
	}
}

func TestConfigRouteEchoesCacheSettings(t *testing.T) {
	app, _, dir := newDiagnosticTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/-/config", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("config 期望 200，实际 %d", resp.StatusCode)
	}
	var payload cacheConfigPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析 config 响应失败: %v", err)
	}
	if payload.Directory != dir {
		t.Fatalf("directory 期望 %s，实际 %s", dir, payload.Directory)
	}
	if payload.LifetimeSeconds != 3600 || payload.FileTemplate != "{id}.cache" {
		t.Fatalf("config 内容不符: %+v", payload)
	}
	if !payload.SerializeContent || payload.CompressActive {
		t.Fatalf("编码选项不符: %+v", payload)
	}
}

func newDiagnosticTestApp(t *testing.T) (*fiber.App, *metrics.InstrumentedBackend, string) {
	t.Helper()

	dir := t.TempDir()
	cacheCfg := config.CacheConfig{
		Lifetime:         config.Duration(time.Hour),
		SerializeContent: true,
		SweepOnWrite:     true,
		Directory:        dir,
		File:             "{id}.cache",
		Compress:         config.CompressConfig{Level: 6},
	}
	logger := logging.NewDiscardLogger()

	backend, err := cache.NewFileBackend(cache.NewLocalFilesystem(), cacheCfg.BackendOptions(), logger)
	if err != nil {
		t.Fatalf("创建文件后端失败: %v", err)
	}
	stats, err := metrics.NewInstrumentedBackend(backend, 0.01)
	if err != nil {
		t.Fatalf("创建统计包装失败: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger, ListenPort: 5000})
	if err != nil {
		t.Fatalf("创建应用失败: %v", err)
	}
	RegisterDiagnosticRoutes(app, DiagnosticOptions{
		Backend:   stats,
		Logger:    logger,
		Stats:     stats,
		Cache:     cacheCfg,
		Directory: backend.Directory(),
	})
	return app, stats, dir
}
