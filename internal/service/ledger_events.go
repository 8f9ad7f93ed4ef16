package service

import (
	"context"
	"time"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ledgerPublisher 账本写操作后的缓存失效与事件推送
type ledgerPublisher struct {
	queueClient *queue.Client
	// invalidateFn 为空时使用 cache.InvalidatePartnerLedger
	invalidateFn func(ctx context.Context, partnerID uint) error
}

func (p ledgerPublisher) invalidate(ctx context.Context, partnerID uint) {
	if partnerID == 0 {
		return
	}
	invalidateFn := p.invalidateFn
	if invalidateFn == nil {
		invalidateFn = cache.InvalidatePartnerLedger
	}
	if err := invalidateFn(ctx, partnerID); err != nil {
		logger.Ctx(ctx).Warnw("ledger_cache_invalidate_failed", "partner_id", partnerID, "error", err)
	}
}

// invalidateParents 失效上级伙伴的统计缓存（sub_partner_count）
func (p ledgerPublisher) invalidateParents(ctx context.Context, parents ...*uint) {
	seen := make(map[uint]struct{}, len(parents))
	for _, parentID := range parents {
		if parentID == nil {
			continue
		}
		if _, ok := seen[*parentID]; ok {
			continue
		}
		seen[*parentID] = struct{}{}
		p.invalidate(ctx, *parentID)
	}
}

func (p ledgerPublisher) earningChanged(ctx context.Context, partnerID uint, earningIDs []uint, action, fromStatus, toStatus string, amount decimal.Decimal, at time.Time) {
	p.invalidate(ctx, partnerID)
	if !p.queueClient.Enabled() {
		return
	}
	payload := queue.EarningStatusChangedPayload{
		EventID:    uuid.NewString(),
		PartnerID:  partnerID,
		EarningIDs: earningIDs,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Amount:     amount.StringFixed(2),
		RequestID:  logger.RequestIDFrom(ctx),
		OccurredAt: at,
	}
	if err := p.queueClient.EnqueueEarningStatusChanged(payload); err != nil {
		logger.Ctx(ctx).Warnw("ledger_enqueue_earning_event_failed",
			"partner_id", partnerID,
			"action", action,
			"error", err,
		)
	}
}

func (p ledgerPublisher) paymentRecorded(ctx context.Context, payload queue.PaymentRecordedPayload) {
	p.invalidate(ctx, payload.PartnerID)
	if !p.queueClient.Enabled() {
		return
	}
	payload.EventID = uuid.NewString()
	payload.RequestID = logger.RequestIDFrom(ctx)
	if err := p.queueClient.EnqueuePaymentRecorded(payload); err != nil {
		logger.Ctx(ctx).Warnw("ledger_enqueue_payment_event_failed",
			"partner_id", payload.PartnerID,
			"client_id", payload.ClientID,
			"error", err,
		)
	}
}
