package app

import (
	"context"
	"errors"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

// 账本进程持有的共享资源名称
const (
	ResourceLedgerDatabase     = "ledger_database"
	ResourceLedgerSummaryCache = "ledger_summary_cache"
	ResourceLedgerEventQueue   = "ledger_event_queue"
)

// Service 服务接口
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type ledgerResource struct {
	name    string
	release func() error
}

// ShutdownReport 一次停止过程的结果
type ShutdownReport struct {
	StopFailures    map[string]error
	Released        []string
	ReleaseFailures map[string]error
}

// Clean 所有服务正常停止且资源全部释放
func (r ShutdownReport) Clean() bool {
	return len(r.StopFailures) == 0 && len(r.ReleaseFailures) == 0
}

// Runner 运行 HTTP/Worker 服务，停止后按登记逆序释放账本资源
type Runner struct {
	services     []Service
	resources    []ledgerResource
	lastShutdown ShutdownReport
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// AttachResource 登记共享资源；先登记的后释放，数据库应最先登记
func (r *Runner) AttachResource(name string, release func() error) {
	if r == nil || release == nil {
		return
	}
	r.resources = append(r.resources, ledgerResource{name: name, release: release})
}

// LastShutdown 最近一次 Run 结束时的停止结果
func (r *Runner) LastShutdown() ShutdownReport {
	if r == nil {
		return ShutdownReport{}
	}
	return r.lastShutdown
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 启动全部服务，任一服务退出或 ctx 结束时整体停止
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, logger *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(r.services))
	for _, svc := range r.services {
		go func(service Service) {
			if service == nil {
				errCh <- errors.New("service is nil")
				return
			}
			logger.Infow("ledger_service_start", "service", service.Name())
			errCh <- service.Start(ctx)
			logger.Infow("ledger_service_exit", "service", service.Name())
		}(svc)
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}
	cancel()

	r.lastShutdown = r.shutdown(stopTimeout, logger)
	if !r.lastShutdown.Clean() {
		logger.Warnw("ledger_shutdown_incomplete",
			"stop_failures", len(r.lastShutdown.StopFailures),
			"release_failures", len(r.lastShutdown.ReleaseFailures),
		)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// shutdown 先停止服务（不再产生写入与事件），再逆序释放资源
func (r *Runner) shutdown(stopTimeout time.Duration, logger *zap.SugaredLogger) ShutdownReport {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()

	report := ShutdownReport{
		StopFailures:    map[string]error{},
		ReleaseFailures: map[string]error{},
	}
	for _, svc := range r.services {
		if svc == nil {
			continue
		}
		if err := svc.Stop(stopCtx); err != nil {
			report.StopFailures[svc.Name()] = err
			logger.Errorw("ledger_service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
	for i := len(r.resources) - 1; i >= 0; i-- {
		resource := r.resources[i]
		if err := resource.release(); err != nil {
			report.ReleaseFailures[resource.name] = err
			logger.Warnw("ledger_resource_release_failed", "resource", resource.name, "error", err)
			continue
		}
		report.Released = append(report.Released, resource.name)
		logger.Infow("ledger_resource_closed", "resource", resource.name)
	}
	return report
}
