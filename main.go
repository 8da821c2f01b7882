package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/metrics"
	"github.com/any-hub/any-cache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	// cleanMode 非空时只执行一次清扫后退出，取值同 ParseCleanMode。
	cleanMode string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["directory"] = cfg.Cache.Directory
		fields["lifetime"] = cfg.EffectiveLifetime().String()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 日志 → 文件后端 → 统计包装 → Fiber server。
	backend, err := cache.NewFileBackend(cache.NewLocalFilesystem(), cfg.Cache.BackendOptions(), logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存后端失败: %v\n", err)
		return 1
	}
	instrumented, err := metrics.NewInstrumentedBackend(backend, 0.01)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化统计失败: %v\n", err)
		return 1
	}

	if opts.cleanMode != "" {
		return runClean(instrumented, opts, logger)
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["directory"] = backend.Directory()
	fields["lifetime"] = cfg.EffectiveLifetime().String()
	fields["serialize"] = cfg.Cache.SerializeContent
	fields["compress"] = cfg.Cache.Compress.Active
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, backend, instrumented, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// runClean 执行一次性清扫，适合由 cron 等外部调度调用。
func runClean(backend cache.Backend, opts cliOptions, logger *logrus.Logger) int {
	mode, err := cache.ParseCleanMode(opts.cleanMode)
	if err != nil {
		fmt.Fprintf(stdErr, "清扫模式无效: %v\n", err)
		return 2
	}

	result, err := backend.Clean(context.Background(), mode)
	if err != nil {
		fmt.Fprintf(stdErr, "清扫失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("clean", opts.configPath)
	fields["mode"] = mode.String()
	fields["scanned"] = result.Scanned
	fields["deleted"] = result.Deleted
	fields["failures"] = len(result.Failures)
	logger.WithFields(fields).Info("清扫完成")

	fmt.Fprintf(stdOut, "scanned=%d deleted=%d failures=%d\n", result.Scanned, result.Deleted, len(result.Failures))
	if len(result.Failures) > 0 {
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("any-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		cleanMode  string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ANY_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&cleanMode, "clean", "", "执行一次清扫后退出：expired、all 或秒数")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ANY_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		cleanMode:   cleanMode,
	}, nil
}

func startHTTPServer(cfg *config.Config, backend *cache.FileBackend, instrumented *metrics.InstrumentedBackend, logger *logrus.Logger) error {
	app, err := buildApp(cfg, backend, instrumented, logger)
	if err != nil {
		return err
	}

	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
