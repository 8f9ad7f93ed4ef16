package constants

// 合作伙伴状态常量
const (
	PartnerStatusPending   = "pending"
	PartnerStatusActive    = "active"
	PartnerStatusInactive  = "inactive"
	PartnerStatusSuspended = "suspended"
)

// 合作伙伴类型常量
const (
	PartnerTypeAffiliate  = "affiliate"
	PartnerTypeReseller   = "reseller"
	PartnerTypeAgency     = "agency"
	PartnerTypeWhiteLabel = "white_label"
)

// 佣金计算方式常量
const (
	CommissionTypePercentage = "percentage"
	CommissionTypeFixed      = "fixed"
	CommissionTypeTiered     = "tiered"
)

// 推广客户订阅状态常量
const (
	ClientStatusActive    = "active"
	ClientStatusInactive  = "inactive"
	ClientStatusCancelled = "cancelled"
	ClientStatusTrial     = "trial"
	ClientStatusPending   = "pending"
)

// 佣金收益状态常量
const (
	EarningStatusPending   = "pending"
	EarningStatusApproved  = "approved"
	EarningStatusPaid      = "paid"
	EarningStatusCancelled = "cancelled"
	EarningStatusOnHold    = "on_hold"
)

// 佣金收益操作常量（同时作为 HTTP action 字段取值）
const (
	EarningActionCreate        = "create"
	EarningActionApprove       = "approve"
	EarningActionMarkPaid      = "mark_paid"
	EarningActionBulkPay       = "bulk_pay"
	EarningActionCancel        = "cancel"
	EarningActionHold          = "hold"
	EarningActionRelease       = "release"
	EarningActionMonthlyReport = "monthly_report"
	EarningActionSummary       = "summary"
)

// 默认值常量
const (
	PartnerDefaultCommissionRate = 10
	PartnerCommissionRateMax     = 100
	EarningBulkPayMaxSize        = 500
)

// 队列常量
const (
	QueueDefault             = "default"
	TaskEarningStatusChanged = "earning:status_changed"
	TaskPaymentRecorded      = "client:payment_recorded"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "mis"
)
