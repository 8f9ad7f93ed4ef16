// Package metrics 定义佣金账本的 Prometheus 业务指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "mis_sentinel"

// 状态流转结果标签
const (
	OutcomeApplied      = "applied"
	OutcomeRejected     = "rejected"
	OutcomeNotFound     = "not_found"
	OutcomeStorageError = "storage_error"
)

var (
	// EarningTransitionsTotal 佣金状态流转次数
	EarningTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "earning_transitions_total",
			Help:      "Total number of earning status transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// PaymentsRecordedTotal 客户付款记录次数
	PaymentsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payments_recorded_total",
			Help:      "Total number of client payments recorded by commission type",
		},
		[]string{"commission_type"},
	)

	// CommissionAmountTotal 生成的佣金金额累计
	CommissionAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commission_amount_total",
			Help:      "Sum of commission amounts generated from client payments",
		},
	)

	// EarningsPaidAmountTotal 已发放佣金金额累计
	EarningsPaidAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "earnings_paid_amount_total",
			Help:      "Sum of earning amounts transitioned to paid",
		},
	)

	// SummaryCacheLookups 汇总缓存命中情况
	SummaryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "summary_lookups_total",
			Help:      "Earning summary cache lookups by result",
		},
		[]string{"result"},
	)

	// QueueTasksProcessed 异步任务处理次数
	QueueTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_processed_total",
			Help:      "Total number of queue tasks processed by type and status",
		},
		[]string{"task_type", "status"},
	)
)

// RecordEarningTransition 记录一次状态流转
func RecordEarningTransition(action, outcome string) {
	EarningTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordPayment 记录一次客户付款及其佣金
func RecordPayment(commissionType string, commission decimal.Decimal) {
	PaymentsRecordedTotal.WithLabelValues(commissionType).Inc()
	if commission.IsPositive() {
		CommissionAmountTotal.Add(commission.InexactFloat64())
	}
}

// RecordEarningsPaid 记录发放金额
func RecordEarningsPaid(amount decimal.Decimal) {
	if amount.IsPositive() {
		EarningsPaidAmountTotal.Add(amount.InexactFloat64())
	}
}

// RecordSummaryCache 记录汇总缓存查询结果（hit/miss）
func RecordSummaryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SummaryCacheLookups.WithLabelValues(result).Inc()
}

// RecordQueueTask 记录异步任务处理结果
func RecordQueueTask(taskType, status string) {
	QueueTasksProcessed.WithLabelValues(taskType, status).Inc()
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
