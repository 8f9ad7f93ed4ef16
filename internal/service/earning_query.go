package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/metrics"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/repository"

	"github.com/shopspring/decimal"
)

const ledgerDateLayout = "2006-01-02"

// StatusTotal 单个状态的笔数与金额
type StatusTotal struct {
	Count  int64        `json:"count"`
	Amount models.Money `json:"amount"`
}

// EarningSummary 伙伴佣金汇总
type EarningSummary struct {
	PartnerID   uint                   `json:"partner_id"`
	ByStatus    map[string]StatusTotal `json:"by_status"`
	TotalAmount models.Money           `json:"total_amount"`
	TotalCount  int64                  `json:"total_count"`
	ThisMonth   StatusTotal            `json:"this_month"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// EarningListInput 佣金列表查询，日期区间为闭区间（按账本时区的自然日）
type EarningListInput struct {
	Page      int
	PageSize  int
	Status    string
	ClientID  *uint
	DateFrom  string
	DateTo    string
	SortBy    string
	SortOrder string
}

// EarningListTotals 与列表相同筛选条件下的合计
type EarningListTotals struct {
	TotalAmount models.Money `json:"total_amount"`
	Pending     models.Money `json:"pending"`
	Paid        models.Money `json:"paid"`
}

// EarningListResult 佣金列表结果
type EarningListResult struct {
	Items    []models.PartnerEarning `json:"items"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Totals   EarningListTotals       `json:"totals"`
}

// DailyTotal 按日汇总
type DailyTotal struct {
	Day    int          `json:"day"`
	Date   string       `json:"date"`
	Count  int64        `json:"count"`
	Amount models.Money `json:"amount"`
}

// MonthlyReport 月度报表，month 从 1 开始
type MonthlyReport struct {
	PartnerID    uint                    `json:"partner_id"`
	Year         int                     `json:"year"`
	Month        int                     `json:"month"`
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	Timezone     string                  `json:"timezone"`
	ByStatus     map[string]StatusTotal  `json:"by_status"`
	TotalAmount  models.Money            `json:"total_amount"`
	TotalCount   int64                   `json:"total_count"`
	Daily        []DailyTotal            `json:"daily"`
	Transactions []models.PartnerEarning `json:"transactions"`
}

// Summary 伙伴佣金汇总，结果短暂缓存，写操作后失效
func (s *EarningService) Summary(ctx context.Context, partnerID uint) (*EarningSummary, error) {
	if _, err := s.mustGetPartner(partnerID); err != nil {
		return nil, err
	}
	cacheKey := cache.EarningSummaryKey(partnerID)
	var cached EarningSummary
	hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached)
	if cacheErr != nil {
		logger.Ctx(ctx).Warnw("ledger_summary_cache_read_failed", "partner_id", partnerID, "error", cacheErr)
	}
	if cache.Enabled() {
		metrics.RecordSummaryCache(hit && cacheErr == nil)
	}
	if cacheErr == nil && hit {
		return &cached, nil
	}

	summary, err := s.computeSummary(partnerID)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, cacheKey, summary, s.setting.SummaryCacheTTL); err != nil {
		logger.Ctx(ctx).Warnw("ledger_summary_cache_write_failed", "partner_id", partnerID, "error", err)
	}
	return summary, nil
}

func (s *EarningService) computeSummary(partnerID uint) (*EarningSummary, error) {
	rows, err := s.earningRepo.AggregateByStatus(repository.PartnerEarningListFilter{PartnerID: partnerID})
	if err != nil {
		return nil, wrapStorage("summary.aggregate", err)
	}
	now := s.now()
	local := now.In(s.setting.location())
	monthStart, monthEnd := monthRange(local.Year(), int(local.Month()), local.Location())
	monthRows, err := s.earningRepo.AggregateByStatus(repository.PartnerEarningListFilter{
		PartnerID:   partnerID,
		CreatedFrom: &monthStart,
		CreatedTo:   &monthEnd,
	})
	if err != nil {
		return nil, wrapStorage("summary.aggregate_month", err)
	}

	byStatus, totalCount, totalAmount := foldStatusAggregates(rows)
	_, monthCount, monthAmount := foldStatusAggregates(monthRows)
	return &EarningSummary{
		PartnerID:   partnerID,
		ByStatus:    byStatus,
		TotalAmount: models.NewMoneyFromDecimal(totalAmount),
		TotalCount:  totalCount,
		ThisMonth: StatusTotal{
			Count:  monthCount,
			Amount: models.NewMoneyFromDecimal(monthAmount),
		},
		GeneratedAt: now.UTC(),
	}, nil
}

// ListEarnings 佣金列表，合计与列表使用同一组筛选条件
func (s *EarningService) ListEarnings(_ context.Context, partnerID uint, input EarningListInput) (*EarningListResult, error) {
	if _, err := s.mustGetPartner(partnerID); err != nil {
		return nil, err
	}
	filter := repository.PartnerEarningListFilter{
		PartnerID: partnerID,
		ClientID:  input.ClientID,
		SortBy:    input.SortBy,
		SortOrder: input.SortOrder,
	}
	statuses, err := parseEarningStatuses(input.Status)
	if err != nil {
		return nil, err
	}
	filter.Statuses = statuses
	from, to, err := s.ParseDateRange(input.DateFrom, input.DateTo)
	if err != nil {
		return nil, err
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to
	filter.Page, filter.PageSize = normalizeLedgerPage(input.Page, input.PageSize)

	items, total, err := s.earningRepo.List(filter)
	if err != nil {
		return nil, wrapStorage("earning.list", err)
	}
	aggregates, err := s.earningRepo.AggregateByStatus(filter)
	if err != nil {
		return nil, wrapStorage("earning.list_totals", err)
	}
	byStatus, _, totalAmount := foldStatusAggregates(aggregates)
	return &EarningListResult{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Totals: EarningListTotals{
			TotalAmount: models.NewMoneyFromDecimal(totalAmount),
			Pending:     byStatus[constants.EarningStatusPending].Amount,
			Paid:        byStatus[constants.EarningStatusPaid].Amount,
		},
	}, nil
}

// MonthlyReport 月度报表，区间为账本时区的 [当月 1 日 00:00, 次月 1 日 00:00)
func (s *EarningService) MonthlyReport(_ context.Context, partnerID uint, year, month int) (*MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, validationError("month must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return nil, validationError("year must be between 1970 and 9999")
	}
	if _, err := s.mustGetPartner(partnerID); err != nil {
		return nil, err
	}
	loc := s.setting.location()
	startAt, endAt := monthRange(year, month, loc)
	rows, err := s.earningRepo.ListByCreatedRange(partnerID, startAt, endAt)
	if err != nil {
		return nil, wrapStorage("report.list", err)
	}

	byStatus := emptyStatusTotals()
	daily := make(map[int]*DailyTotal)
	totalAmount := decimal.Zero
	for _, row := range rows {
		bucket := byStatus[row.Status]
		bucket.Count++
		bucket.Amount = models.NewMoneyFromDecimal(bucket.Amount.Decimal.Add(row.Amount.Decimal))
		byStatus[row.Status] = bucket

		local := row.CreatedAt.In(loc)
		day, ok := daily[local.Day()]
		if !ok {
			day = &DailyTotal{Day: local.Day(), Date: local.Format(ledgerDateLayout), Amount: models.ZeroMoney()}
			daily[local.Day()] = day
		}
		day.Count++
		day.Amount = models.NewMoneyFromDecimal(day.Amount.Decimal.Add(row.Amount.Decimal))
		totalAmount = totalAmount.Add(row.Amount.Decimal)
	}

	days := make([]DailyTotal, 0, len(daily))
	for _, day := range daily {
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	return &MonthlyReport{
		PartnerID:    partnerID,
		Year:         year,
		Month:        month,
		From:         startAt,
		To:           endAt,
		Timezone:     loc.String(),
		ByStatus:     byStatus,
		TotalAmount:  models.NewMoneyFromDecimal(totalAmount),
		TotalCount:   int64(len(rows)),
		Daily:        days,
		Transactions: rows,
	}, nil
}

// History 佣金审计历史（按时间升序）
func (s *EarningService) History(_ context.Context, partnerID, earningID uint) ([]models.PartnerEarningAuditLog, error) {
	if _, err := s.mustGetEarning(s.earningRepo, partnerID, earningID); err != nil {
		return nil, err
	}
	logs, err := s.auditRepo.ListByEarning(partnerID, earningID)
	if err != nil {
		return nil, wrapStorage("earning.history", err)
	}
	return logs, nil
}

// ParseDateRange 解析日期区间（YYYY-MM-DD 或 RFC3339），返回 [from, to) 形式的边界
// 日期格式的结束日包含当天全天。
func (s *EarningService) ParseDateRange(rawFrom, rawTo string) (*time.Time, *time.Time, error) {
	loc := s.setting.location()
	var from, to *time.Time
	if raw := strings.TrimSpace(rawFrom); raw != "" {
		parsed, _, err := parseLedgerTime(raw, loc)
		if err != nil {
			return nil, nil, validationError("date_from %q is not a valid date", raw)
		}
		from = &parsed
	}
	if raw := strings.TrimSpace(rawTo); raw != "" {
		parsed, dateOnly, err := parseLedgerTime(raw, loc)
		if err != nil {
			return nil, nil, validationError("date_to %q is not a valid date", raw)
		}
		if dateOnly {
			parsed = parsed.AddDate(0, 0, 1)
		} else {
			parsed = parsed.Add(time.Nanosecond)
		}
		to = &parsed
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, validationError("date_from must not be after date_to")
	}
	return from, to, nil
}

func parseLedgerTime(raw string, loc *time.Location) (time.Time, bool, error) {
	if parsed, err := time.ParseInLocation(ledgerDateLayout, raw, loc); err == nil {
		return parsed, true, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, false, nil
}

func parseEarningStatuses(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]string, 0, len(parts))
	for _, part := range parts {
		status := strings.TrimSpace(part)
		if status == "" {
			continue
		}
		if !isValidEarningStatus(status) {
			return nil, validationError("status must be one of %s", strings.Join(earningStatuses, ", "))
		}
		if !containsString(statuses, status) {
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func monthRange(year, month int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func emptyStatusTotals() map[string]StatusTotal {
	result := make(map[string]StatusTotal, len(earningStatuses))
	for _, status := range earningStatuses {
		result[status] = StatusTotal{Amount: models.ZeroMoney()}
	}
	return result
}

func foldStatusAggregates(rows []repository.EarningStatusAggregate) (map[string]StatusTotal, int64, decimal.Decimal) {
	byStatus := emptyStatusTotals()
	var count int64
	amount := decimal.Zero
	for _, row := range rows {
		bucket := byStatus[row.Status]
		bucket.Count += row.Count
		bucket.Amount = models.NewMoneyFromDecimal(bucket.Amount.Decimal.Add(row.Amount))
		byStatus[row.Status] = bucket
		count += row.Count
		amount = amount.Add(row.Amount)
	}
	return byStatus, count, amount.Round(2)
}
