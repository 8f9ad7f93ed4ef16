package ledger

import (
	"strconv"
	"strings"

	handlershared "github.com/mis-sentinel/internal/http/handlers/shared"
	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePartnerRequest 创建合作伙伴请求
type CreatePartnerRequest struct {
	Name            string                 `json:"name" binding:"required"`
	Email           string                 `json:"email" binding:"required"`
	Phone           string                 `json:"phone"`
	CompanyName     string                 `json:"company_name"`
	PartnerType     string                 `json:"partner_type"`
	CommissionRate  *decimal.Decimal       `json:"commission_rate"`
	CommissionType  string                 `json:"commission_type"`
	ParentPartnerID *uint                  `json:"parent_partner_id"`
	Address         map[string]interface{} `json:"address"`
	BankInfo        map[string]interface{} `json:"bank_info"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// UpdatePartnerRequest 更新合作伙伴请求
type UpdatePartnerRequest struct {
	Name            *string                `json:"name"`
	Phone           *string                `json:"phone"`
	CompanyName     *string                `json:"company_name"`
	PartnerType     *string                `json:"partner_type"`
	CommissionRate  *decimal.Decimal       `json:"commission_rate"`
	CommissionType  *string                `json:"commission_type"`
	ParentPartnerID *uint                  `json:"parent_partner_id"`
	ClearParent     bool                   `json:"clear_parent"`
	Address         map[string]interface{} `json:"address"`
	BankInfo        map[string]interface{} `json:"bank_info"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// BulkPartnerStatusRequest 批量更新合作伙伴状态请求
type BulkPartnerStatusRequest struct {
	PartnerIDs []uint `json:"partner_ids" binding:"required,min=1"`
	Status     string `json:"status" binding:"required"`
}

// CreatePartner 创建合作伙伴
func (h *Handler) CreatePartner(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	var req CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	partner, err := h.PartnerService.Create(c.Request.Context(), service.CreatePartnerInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		CompanyName:     req.CompanyName,
		PartnerType:     req.PartnerType,
		CommissionRate:  req.CommissionRate,
		CommissionType:  req.CommissionType,
		ParentPartnerID: req.ParentPartnerID,
		Address:         models.JSON(req.Address),
		BankInfo:        models.JSON(req.BankInfo),
		Metadata:        models.JSON(req.Metadata),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, partner)
}

// ListPartners 合作伙伴列表
func (h *Handler) ListPartners(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	parentID, ok := handlershared.QueryUint(c, "parent_partner_id")
	if !ok {
		return
	}
	rows, total, err := h.PartnerService.List(c.Request.Context(), service.PartnerListInput{
		Page:            page,
		PageSize:        pageSize,
		Status:          strings.TrimSpace(c.Query("status")),
		PartnerType:     strings.TrimSpace(c.Query("partner_type")),
		ParentPartnerID: parentID,
		Keyword:         strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetPartner 合作伙伴详情（含统计）
func (h *Handler) GetPartner(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	detail, err := h.PartnerService.GetDetail(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, detail)
}

// UpdatePartner 更新合作伙伴
func (h *Handler) UpdatePartner(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req UpdatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	partner, err := h.PartnerService.Update(c.Request.Context(), id, service.UpdatePartnerInput{
		Name:            req.Name,
		Phone:           req.Phone,
		CompanyName:     req.CompanyName,
		PartnerType:     req.PartnerType,
		CommissionRate:  req.CommissionRate,
		CommissionType:  req.CommissionType,
		ParentPartnerID: req.ParentPartnerID,
		ClearParent:     req.ClearParent,
		Address:         models.JSON(req.Address),
		BankInfo:        models.JSON(req.BankInfo),
		Metadata:        models.JSON(req.Metadata),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, partner)
}

// ActivatePartner 激活合作伙伴
func (h *Handler) ActivatePartner(c *gin.Context) {
	h.changePartnerStatus(c, true)
}

// SuspendPartner 暂停合作伙伴
func (h *Handler) SuspendPartner(c *gin.Context) {
	h.changePartnerStatus(c, false)
}

func (h *Handler) changePartnerStatus(c *gin.Context, activate bool) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var (
		partner *models.Partner
		err     error
	)
	if activate {
		partner, err = h.PartnerService.Activate(c.Request.Context(), id)
	} else {
		partner, err = h.PartnerService.Suspend(c.Request.Context(), id)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, partner)
}

// BulkUpdatePartnerStatus 批量更新合作伙伴状态
func (h *Handler) BulkUpdatePartnerStatus(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	var req BulkPartnerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	affected, err := h.PartnerService.BulkUpdateStatus(c.Request.Context(), req.PartnerIDs, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": affected, "status": req.Status})
}

// DeletePartner 删除合作伙伴，hard=true 时物理删除
func (h *Handler) DeletePartner(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(strings.TrimSpace(c.DefaultQuery("hard", "false")))
	if err := h.PartnerService.Delete(c.Request.Context(), id, hard); err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("partner_delete_requested", "partner_id", id, "hard", hard, "operator", handlershared.Operator(c))
	response.Success(c, gin.H{"id": id, "deleted": true, "hard": hard})
}

// ListSubPartners 直属下级合作伙伴
func (h *Handler) ListSubPartners(c *gin.Context) {
	if h.PartnerService == nil {
		respondServiceUnavailable(c)
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	rows, err := h.PartnerService.ListSubPartners(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, rows)
}
