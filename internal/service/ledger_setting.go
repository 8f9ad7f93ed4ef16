package service

import (
	"strings"
	"time"

	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"

	"github.com/shopspring/decimal"
)

const (
	ledgerSummaryCacheTTLDefault = 60 * time.Second
	ledgerSummaryCacheTTLMax     = time.Hour
	ledgerPageSizeDefault        = 20
	ledgerPageSizeMax            = 100
)

// LedgerSetting 佣金账本运行参数
type LedgerSetting struct {
	DefaultCommissionRate decimal.Decimal
	Location              *time.Location
	SummaryCacheTTL       time.Duration
	AllowHoldFromAny      bool
	MaxBulkPay            int
}

// DefaultLedgerSetting 默认账本参数
func DefaultLedgerSetting() LedgerSetting {
	return LedgerSetting{
		DefaultCommissionRate: decimal.NewFromInt(constants.PartnerDefaultCommissionRate),
		Location:              time.UTC,
		SummaryCacheTTL:       ledgerSummaryCacheTTLDefault,
		AllowHoldFromAny:      false,
		MaxBulkPay:            constants.EarningBulkPayMaxSize,
	}
}

// NewLedgerSetting 由配置构建账本参数，非法值回退默认
func NewLedgerSetting(cfg config.LedgerConfig) LedgerSetting {
	setting := DefaultLedgerSetting()

	rate := decimal.NewFromFloat(cfg.DefaultCommissionRate).Round(2)
	if rate.IsPositive() && rate.LessThanOrEqual(decimal.NewFromInt(constants.PartnerCommissionRateMax)) {
		setting.DefaultCommissionRate = rate
	}

	if name := strings.TrimSpace(cfg.Timezone); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			logger.Warnw("ledger_timezone_invalid", "timezone", name, "error", err)
		} else {
			setting.Location = loc
		}
	}

	if cfg.SummaryCacheTTLSeconds > 0 {
		setting.SummaryCacheTTL = time.Duration(cfg.SummaryCacheTTLSeconds) * time.Second
		if setting.SummaryCacheTTL > ledgerSummaryCacheTTLMax {
			setting.SummaryCacheTTL = ledgerSummaryCacheTTLMax
		}
	}

	setting.AllowHoldFromAny = cfg.AllowHoldFromAny
	if cfg.MaxBulkPay > 0 {
		setting.MaxBulkPay = cfg.MaxBulkPay
	}
	return setting
}

func (s LedgerSetting) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func normalizeLedgerPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = ledgerPageSizeDefault
	}
	if pageSize > ledgerPageSizeMax {
		pageSize = ledgerPageSizeMax
	}
	return page, pageSize
}
