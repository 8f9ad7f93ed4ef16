package cache

import (
	"context"
	"fmt"
)

// EarningSummaryKey 伙伴佣金汇总缓存键
func EarningSummaryKey(partnerID uint) string {
	return fmt.Sprintf("ledger:summary:%d", partnerID)
}

// PartnerStatsKey 伙伴统计缓存键
func PartnerStatsKey(partnerID uint) string {
	return fmt.Sprintf("ledger:partner_stats:%d", partnerID)
}

// InvalidatePartnerLedger 清除伙伴相关的账本缓存
func InvalidatePartnerLedger(ctx context.Context, partnerID uint) error {
	if partnerID == 0 {
		return nil
	}
	return Del(ctx, EarningSummaryKey(partnerID), PartnerStatsKey(partnerID))
}
