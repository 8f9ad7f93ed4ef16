package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/metrics"
	"github.com/mis-sentinel/internal/provider"
	"github.com/mis-sentinel/internal/queue"
	"github.com/mis-sentinel/internal/service"

	"github.com/hibiken/asynq"
)

// 任务处理结果标签
const (
	taskStatusDone    = "done"
	taskStatusSkipped = "skipped"
	taskStatusFailed  = "failed"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskEarningStatusChanged, c.handleEarningStatusChanged)
	mux.HandleFunc(queue.TaskPaymentRecorded, c.handlePaymentRecorded)
}

// handleEarningStatusChanged 佣金状态变更后重建伙伴汇总缓存
func (c *Consumer) handleEarningStatusChanged(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_earning_status_changed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.EarningStatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_earning_status_changed_unmarshal_failed", "error", err)
		metrics.RecordQueueTask(task.Type(), taskStatusFailed)
		return err
	}
	ctx = logger.WithRequestID(ctx, payload.RequestID)
	if payload.PartnerID == 0 {
		logger.Ctx(ctx).Debugw("worker_earning_status_changed_skip_invalid_payload", "event_id", payload.EventID)
		metrics.RecordQueueTask(task.Type(), taskStatusSkipped)
		return nil
	}
	status, err := c.refreshPartnerLedger(ctx, payload.PartnerID)
	metrics.RecordQueueTask(task.Type(), status)
	if err != nil {
		logger.Ctx(ctx).Warnw("worker_earning_status_changed_failed",
			"event_id", payload.EventID,
			"partner_id", payload.PartnerID,
			"error", err,
		)
		return err
	}
	logger.Ctx(ctx).Infow("worker_earning_status_changed_done",
		"event_id", payload.EventID,
		"partner_id", payload.PartnerID,
		"action", payload.Action,
		"to_status", payload.ToStatus,
		"earning_count", len(payload.EarningIDs),
		"amount", payload.Amount,
	)
	return nil
}

// handlePaymentRecorded 客户付款后重建伙伴汇总与统计缓存
func (c *Consumer) handlePaymentRecorded(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_recorded_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentRecordedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_recorded_unmarshal_failed", "error", err)
		metrics.RecordQueueTask(task.Type(), taskStatusFailed)
		return err
	}
	ctx = logger.WithRequestID(ctx, payload.RequestID)
	if payload.PartnerID == 0 || payload.ClientID == 0 {
		logger.Ctx(ctx).Debugw("worker_payment_recorded_skip_invalid_payload", "event_id", payload.EventID)
		metrics.RecordQueueTask(task.Type(), taskStatusSkipped)
		return nil
	}
	status, err := c.refreshPartnerLedger(ctx, payload.PartnerID)
	metrics.RecordQueueTask(task.Type(), status)
	if err != nil {
		logger.Ctx(ctx).Warnw("worker_payment_recorded_failed",
			"event_id", payload.EventID,
			"partner_id", payload.PartnerID,
			"client_id", payload.ClientID,
			"error", err,
		)
		return err
	}
	logger.Ctx(ctx).Infow("worker_payment_recorded_done",
		"event_id", payload.EventID,
		"partner_id", payload.PartnerID,
		"client_id", payload.ClientID,
		"earning_id", payload.EarningID,
		"commission_amount", payload.CommissionAmount,
		"activated", payload.Activated,
	)
	return nil
}

// refreshPartnerLedger 预热伙伴统计（含佣金汇总），伙伴已删除时跳过且不重试
func (c *Consumer) refreshPartnerLedger(ctx context.Context, partnerID uint) (string, error) {
	if c.Container == nil || c.PartnerService == nil {
		logger.Ctx(ctx).Warnw("worker_refresh_skip_service_nil", "partner_id", partnerID)
		return taskStatusSkipped, nil
	}
	if _, err := c.PartnerService.Stats(ctx, partnerID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Ctx(ctx).Debugw("worker_refresh_skip_partner_not_found", "partner_id", partnerID)
			return taskStatusSkipped, nil
		default:
			return taskStatusFailed, err
		}
	}
	return taskStatusDone, nil
}
