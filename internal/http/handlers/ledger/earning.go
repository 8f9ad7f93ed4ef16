package ledger

import (
	"strings"

	"github.com/mis-sentinel/internal/constants"
	handlershared "github.com/mis-sentinel/internal/http/handlers/shared"
	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EarningActionRequest 佣金操作请求，由 action 字段区分具体操作
type EarningActionRequest struct {
	Action string `json:"action" binding:"required"`

	EarningID  uint   `json:"earning_id"`
	EarningIDs []uint `json:"earning_ids"`

	// create
	Amount         *decimal.Decimal       `json:"amount"`
	ClientID       *uint                  `json:"client_id"`
	OriginalAmount *decimal.Decimal       `json:"original_amount"`
	CommissionRate *decimal.Decimal       `json:"commission_rate"`
	CommissionType string                 `json:"commission_type"`
	Status         string                 `json:"status"`
	Description    string                 `json:"description"`
	PaymentDate    string                 `json:"payment_date"`
	Metadata       map[string]interface{} `json:"metadata"`

	// approve / cancel / hold / release
	Notes  string `json:"notes"`
	Reason string `json:"reason"`

	// mark_paid / bulk_pay
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	PaidDate         string `json:"paid_date"`

	// monthly_report
	Year  int `json:"year"`
	Month int `json:"month"`
}

// ListEarnings 佣金列表（含同条件合计）
func (h *Handler) ListEarnings(c *gin.Context) {
	if h.EarningService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	clientID, ok := handlershared.QueryUint(c, "client_id")
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	result, err := h.EarningService.ListEarnings(c.Request.Context(), partnerID, service.EarningListInput{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
		ClientID:  clientID,
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		SortBy:    strings.TrimSpace(c.Query("sort_by")),
		SortOrder: strings.TrimSpace(c.Query("sort_order")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, gin.H{
		"items":  result.Items,
		"totals": result.Totals,
	}, response.BuildPagination(result.Page, result.PageSize, result.Total))
}

// GetEarningSummary 佣金汇总
func (h *Handler) GetEarningSummary(c *gin.Context) {
	if h.EarningService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	summary, err := h.EarningService.Summary(c.Request.Context(), partnerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// GetMonthlyReport 月度报表，month 取 1-12
func (h *Handler) GetMonthlyReport(c *gin.Context) {
	if h.EarningService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	year, ok := handlershared.QueryInt(c, "year", 0)
	if !ok {
		return
	}
	month, ok := handlershared.QueryInt(c, "month", 0)
	if !ok {
		return
	}
	report, err := h.EarningService.MonthlyReport(c.Request.Context(), partnerID, year, month)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}

// GetEarningHistory 佣金审计历史
func (h *Handler) GetEarningHistory(c *gin.Context) {
	if h.EarningService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	earningID, ok := handlershared.ParamUint(c, "earning_id")
	if !ok {
		return
	}
	rows, err := h.EarningService.History(c.Request.Context(), partnerID, earningID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, rows)
}

// EarningAction 佣金操作入口
func (h *Handler) EarningAction(c *gin.Context) {
	if h.EarningService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req EarningActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	operator := handlershared.Operator(c)
	action := strings.TrimSpace(req.Action)

	switch action {
	case constants.EarningActionCreate:
		h.createEarning(c, partnerID, req, operator)
	case constants.EarningActionApprove, constants.EarningActionCancel,
		constants.EarningActionHold, constants.EarningActionRelease:
		if req.EarningID == 0 {
			response.BadRequest(c, "earning_id is required")
			return
		}
		input := service.EarningTransitionInput{Reason: firstNonEmpty(req.Reason, req.Notes), Operator: operator}
		var (
			earning *models.PartnerEarning
			err     error
		)
		switch action {
		case constants.EarningActionApprove:
			earning, err = h.EarningService.Approve(ctx, partnerID, req.EarningID, input)
		case constants.EarningActionCancel:
			earning, err = h.EarningService.Cancel(ctx, partnerID, req.EarningID, input)
		case constants.EarningActionHold:
			earning, err = h.EarningService.Hold(ctx, partnerID, req.EarningID, input)
		default:
			earning, err = h.EarningService.Release(ctx, partnerID, req.EarningID, input)
		}
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, earning)
	case constants.EarningActionMarkPaid, constants.EarningActionBulkPay:
		paidDate, ok := parseOptionalTime(req.PaidDate)
		if !ok {
			response.BadRequest(c, "paid_date must be YYYY-MM-DD or RFC3339")
			return
		}
		payInput := service.MarkPaidInput{
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			PaidDate:         paidDate,
			Operator:         operator,
		}
		if action == constants.EarningActionBulkPay {
			result, err := h.EarningService.BulkPay(ctx, partnerID, service.BulkPayInput{EarningIDs: req.EarningIDs, MarkPaidInput: payInput})
			if err != nil {
				respondServiceError(c, err)
				return
			}
			response.Success(c, result)
			return
		}
		if req.EarningID == 0 {
			response.BadRequest(c, "earning_id is required")
			return
		}
		earning, err := h.EarningService.MarkPaid(ctx, partnerID, req.EarningID, payInput)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, earning)
	case constants.EarningActionMonthlyReport:
		report, err := h.EarningService.MonthlyReport(ctx, partnerID, req.Year, req.Month)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, report)
	case constants.EarningActionSummary:
		summary, err := h.EarningService.Summary(ctx, partnerID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, summary)
	default:
		response.BadRequest(c, "unknown action "+action)
	}
}

func (h *Handler) createEarning(c *gin.Context, partnerID uint, req EarningActionRequest, operator string) {
	if req.Amount == nil {
		response.BadRequest(c, "amount is required")
		return
	}
	paymentDate, ok := parseOptionalTime(req.PaymentDate)
	if !ok {
		response.BadRequest(c, "payment_date must be YYYY-MM-DD or RFC3339")
		return
	}
	earning, err := h.EarningService.CreateEarning(c.Request.Context(), partnerID, service.CreateEarningInput{
		Amount:         *req.Amount,
		ClientID:       req.ClientID,
		OriginalAmount: req.OriginalAmount,
		CommissionRate: req.CommissionRate,
		CommissionType: req.CommissionType,
		Status:         req.Status,
		Description:    req.Description,
		PaymentDate:    paymentDate,
		Metadata:       models.JSON(req.Metadata),
		Operator:       operator,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, earning)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
