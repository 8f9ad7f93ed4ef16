package ledger

import (
	"errors"
	"io"
	"strings"

	handlershared "github.com/mis-sentinel/internal/http/handlers/shared"
	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateClientRequest 创建客户请求
type CreateClientRequest struct {
	ClientName        string                 `json:"client_name" binding:"required"`
	ClientEmail       string                 `json:"client_email" binding:"required"`
	ClientPhone       string                 `json:"client_phone"`
	CompanyName       string                 `json:"company_name"`
	SubscriptionPlan  string                 `json:"subscription_plan"`
	SubscriptionValue decimal.Decimal        `json:"subscription_value"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// UpdateClientRequest 更新客户请求
type UpdateClientRequest struct {
	ClientName         *string                `json:"client_name"`
	ClientPhone        *string                `json:"client_phone"`
	CompanyName        *string                `json:"company_name"`
	SubscriptionPlan   *string                `json:"subscription_plan"`
	SubscriptionValue  *decimal.Decimal       `json:"subscription_value"`
	SubscriptionStatus *string                `json:"subscription_status"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// CancelClientRequest 取消客户请求
type CancelClientRequest struct {
	Reason string `json:"reason"`
}

// RecordPaymentRequest 记录付款请求
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	Description string          `json:"description"`
}

func clientPath(c *gin.Context) (uint, uint, bool) {
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return 0, 0, false
	}
	clientID, ok := handlershared.ParamUint(c, "client_id")
	if !ok {
		return 0, 0, false
	}
	return partnerID, clientID, true
}

// CreateClient 创建推荐客户
func (h *Handler) CreateClient(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	client, err := h.PartnerClientService.Create(c.Request.Context(), partnerID, service.CreateClientInput{
		ClientName:        req.ClientName,
		ClientEmail:       req.ClientEmail,
		ClientPhone:       req.ClientPhone,
		CompanyName:       req.CompanyName,
		SubscriptionPlan:  req.SubscriptionPlan,
		SubscriptionValue: req.SubscriptionValue,
		Metadata:          models.JSON(req.Metadata),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, client)
}

// ListClients 推荐客户列表
func (h *Handler) ListClients(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	rows, total, err := h.PartnerClientService.List(c.Request.Context(), partnerID, service.ClientListInput{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetClient 推荐客户详情
func (h *Handler) GetClient(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, clientID, ok := clientPath(c)
	if !ok {
		return
	}
	client, err := h.PartnerClientService.Get(c.Request.Context(), partnerID, clientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, client)
}

// UpdateClient 更新推荐客户
func (h *Handler) UpdateClient(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, clientID, ok := clientPath(c)
	if !ok {
		return
	}
	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	client, err := h.PartnerClientService.Update(c.Request.Context(), partnerID, clientID, service.UpdateClientInput{
		ClientName:         req.ClientName,
		ClientPhone:        req.ClientPhone,
		CompanyName:        req.CompanyName,
		SubscriptionPlan:   req.SubscriptionPlan,
		SubscriptionValue:  req.SubscriptionValue,
		SubscriptionStatus: req.SubscriptionStatus,
		Metadata:           models.JSON(req.Metadata),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, client)
}

// CancelClient 取消客户订阅
func (h *Handler) CancelClient(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, clientID, ok := clientPath(c)
	if !ok {
		return
	}
	var req CancelClientRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}
	client, err := h.PartnerClientService.Cancel(c.Request.Context(), partnerID, clientID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, client)
}

// DeleteClient 删除推荐客户
func (h *Handler) DeleteClient(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, clientID, ok := clientPath(c)
	if !ok {
		return
	}
	if err := h.PartnerClientService.Delete(c.Request.Context(), partnerID, clientID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"id": clientID, "deleted": true})
}

// RecordPayment 记录客户付款并派生佣金
func (h *Handler) RecordPayment(c *gin.Context) {
	if h.PartnerClientService == nil {
		respondServiceUnavailable(c)
		return
	}
	partnerID, clientID, ok := clientPath(c)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	paymentDate, ok := parseOptionalTime(req.PaymentDate)
	if !ok {
		response.BadRequest(c, "payment_date must be YYYY-MM-DD or RFC3339")
		return
	}
	result, err := h.PartnerClientService.RecordPayment(c.Request.Context(), partnerID, clientID, service.RecordPaymentInput{
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		Description: req.Description,
		Operator:    handlershared.Operator(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, result)
}
