package service

import (
	"strings"

	"github.com/mis-sentinel/internal/constants"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateCommission 按伙伴佣金方式计算单笔付款的佣金，结果保留 2 位小数
// percentage: amount * rate / 100；fixed: rate；tiered 无阶梯配置，直接拒绝。
func CalculateCommission(commissionType string, rate, amount decimal.Decimal) (decimal.Decimal, error) {
	switch strings.TrimSpace(commissionType) {
	case constants.CommissionTypePercentage:
		return amount.Mul(rate).Div(hundred).Round(2), nil
	case constants.CommissionTypeFixed:
		return rate.Round(2), nil
	case constants.CommissionTypeTiered:
		return decimal.Zero, validationError("tiered commission has no tier schedule; payments cannot be recorded for this partner")
	default:
		return decimal.Zero, validationError("unsupported commission type %q", commissionType)
	}
}

// validateCommission 校验佣金方式与比例
func validateCommission(commissionType string, rate decimal.Decimal) error {
	switch commissionType {
	case constants.CommissionTypePercentage:
		if rate.LessThan(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(constants.PartnerCommissionRateMax)) {
			return validationError("commission_rate must be between 0 and 100 for percentage commission")
		}
	case constants.CommissionTypeFixed, constants.CommissionTypeTiered:
		if rate.LessThan(decimal.Zero) {
			return validationError("commission_rate must not be negative")
		}
	default:
		return validationError("commission_type must be one of percentage, fixed, tiered")
	}
	return nil
}

var earningStatuses = []string{
	constants.EarningStatusPending,
	constants.EarningStatusApproved,
	constants.EarningStatusPaid,
	constants.EarningStatusCancelled,
	constants.EarningStatusOnHold,
}

var earningTransitionTargets = map[string]string{
	constants.EarningActionApprove:  constants.EarningStatusApproved,
	constants.EarningActionMarkPaid: constants.EarningStatusPaid,
	constants.EarningActionBulkPay:  constants.EarningStatusPaid,
	constants.EarningActionCancel:   constants.EarningStatusCancelled,
	constants.EarningActionHold:     constants.EarningStatusOnHold,
	constants.EarningActionRelease:  constants.EarningStatusPending,
}

// earningTransitionSources 返回某操作允许的源状态
func earningTransitionSources(action string, allowHoldFromAny bool) []string {
	switch action {
	case constants.EarningActionApprove:
		return []string{constants.EarningStatusPending}
	case constants.EarningActionMarkPaid, constants.EarningActionBulkPay:
		return []string{constants.EarningStatusPending, constants.EarningStatusApproved}
	case constants.EarningActionCancel:
		return []string{constants.EarningStatusPending, constants.EarningStatusApproved, constants.EarningStatusOnHold}
	case constants.EarningActionHold:
		if allowHoldFromAny {
			return []string{
				constants.EarningStatusPending,
				constants.EarningStatusApproved,
				constants.EarningStatusPaid,
				constants.EarningStatusCancelled,
			}
		}
		return []string{constants.EarningStatusPending, constants.EarningStatusApproved}
	case constants.EarningActionRelease:
		return []string{constants.EarningStatusOnHold}
	default:
		return nil
	}
}

func isTerminalEarningStatus(status string) bool {
	return status == constants.EarningStatusPaid || status == constants.EarningStatusCancelled
}

func isValidEarningStatus(status string) bool {
	return containsString(earningStatuses, status)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
