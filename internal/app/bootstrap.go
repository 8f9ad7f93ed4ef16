package app

import (
	"errors"
	"fmt"
	"net"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/provider"
	"github.com/mis-sentinel/internal/router"
	"github.com/mis-sentinel/internal/worker"
)

// BuildRunner 按启动模式组装 HTTP 与 Worker 服务
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !ValidMode(mode) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if mode == ModeWorker && !cfg.Queue.Enabled {
		return nil, errors.New("worker mode requires queue.enabled")
	}

	container := provider.NewContainer(cfg)
	return buildRunnerWithContainer(cfg, mode, container)
}

func buildRunnerWithContainer(cfg *config.Config, mode string, container *provider.Container) (*Runner, error) {
	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(listenAddr(cfg), engine))
	}

	// 队列未启用时 all 模式只运行 HTTP，佣金汇总缓存仍由写路径直接失效
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Warnw("app_worker_skipped", "reason", "queue disabled")
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	runner := NewRunner(services...)
	attachLedgerResources(runner, container)
	return runner, nil
}

// attachLedgerResources 登记顺序为数据库、汇总缓存、事件队列，释放时逆序
func attachLedgerResources(runner *Runner, container *provider.Container) {
	if container != nil && container.DB != nil {
		db := container.DB
		runner.AttachResource(ResourceLedgerDatabase, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	runner.AttachResource(ResourceLedgerSummaryCache, cache.Close)
	if container != nil && container.QueueClient != nil {
		runner.AttachResource(ResourceLedgerEventQueue, container.QueueClient.Close)
	}
}

func listenAddr(cfg *config.Config) string {
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	return net.JoinHostPort(cfg.Server.Host, port)
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	opts.Logger.Infow("app_start", "addr", listenAddr(opts.Config), "mode", opts.Mode, "queue_enabled", opts.Config.Queue.Enabled)
	return RunWithOptions(runner, opts)
}
