package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/repository"

	"github.com/shopspring/decimal"
)

const partnerAncestorWalkLimit = 1024

// PartnerService 合作伙伴管理服务
type PartnerService struct {
	repo           repository.PartnerRepository
	clientRepo     repository.PartnerClientRepository
	earningRepo    repository.PartnerEarningRepository
	earningService *EarningService
	publisher      ledgerPublisher
	setting        LedgerSetting
	now            func() time.Time
}

// NewPartnerService 创建合作伙伴服务
func NewPartnerService(
	repo repository.PartnerRepository,
	clientRepo repository.PartnerClientRepository,
	earningRepo repository.PartnerEarningRepository,
	earningService *EarningService,
	setting LedgerSetting,
) *PartnerService {
	return &PartnerService{
		repo:           repo,
		clientRepo:     clientRepo,
		earningRepo:    earningRepo,
		earningService: earningService,
		setting:        setting,
		now:            time.Now,
	}
}

// CreatePartnerInput 创建合作伙伴输入
type CreatePartnerInput struct {
	Name            string
	Email           string
	Phone           string
	CompanyName     string
	PartnerType     string
	CommissionRate  *decimal.Decimal
	CommissionType  string
	ParentPartnerID *uint
	Address         models.JSON
	BankInfo        models.JSON
	Metadata        models.JSON
}

// UpdatePartnerInput 更新合作伙伴输入，nil 字段保持不变
type UpdatePartnerInput struct {
	Name            *string
	Phone           *string
	CompanyName     *string
	PartnerType     *string
	CommissionRate  *decimal.Decimal
	CommissionType  *string
	ParentPartnerID *uint
	ClearParent     bool
	Address         models.JSON
	BankInfo        models.JSON
	Metadata        models.JSON
}

// PartnerListInput 合作伙伴列表查询
type PartnerListInput struct {
	Page            int
	PageSize        int
	Status          string
	PartnerType     string
	ParentPartnerID *uint
	Keyword         string
}

// PartnerStats 合作伙伴统计
type PartnerStats struct {
	ClientCount       int64          `json:"client_count"`
	ActiveClientCount int64          `json:"active_client_count"`
	SubPartnerCount   int64          `json:"sub_partner_count"`
	Earnings          EarningSummary `json:"earnings"`
}

// PartnerDetail 合作伙伴详情
type PartnerDetail struct {
	Partner models.Partner `json:"partner"`
	Stats   PartnerStats   `json:"stats"`
}

var partnerTypes = []string{
	constants.PartnerTypeAffiliate,
	constants.PartnerTypeReseller,
	constants.PartnerTypeAgency,
	constants.PartnerTypeWhiteLabel,
}

var partnerStatuses = []string{
	constants.PartnerStatusPending,
	constants.PartnerStatusActive,
	constants.PartnerStatusInactive,
	constants.PartnerStatusSuspended,
}

// Create 创建合作伙伴，初始状态为 pending
func (s *PartnerService) Create(ctx context.Context, input CreatePartnerInput) (*models.Partner, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	partnerType := strings.TrimSpace(input.PartnerType)
	if partnerType == "" {
		partnerType = constants.PartnerTypeAffiliate
	}
	if !containsString(partnerTypes, partnerType) {
		return nil, validationError("partner_type must be one of %s", strings.Join(partnerTypes, ", "))
	}
	commissionType := strings.TrimSpace(input.CommissionType)
	if commissionType == "" {
		commissionType = constants.CommissionTypePercentage
	}
	rate := s.setting.DefaultCommissionRate
	if input.CommissionRate != nil {
		rate = input.CommissionRate.Round(2)
	}
	if err := validateCommission(commissionType, rate); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(email)
	if err != nil {
		return nil, wrapStorage("partner.get_by_email", err)
	}
	if existing != nil {
		return nil, conflictError("partner email %s is already registered", email)
	}
	if input.ParentPartnerID != nil {
		if err := s.validateParent(0, *input.ParentPartnerID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	partner := &models.Partner{
		Name:            name,
		Email:           email,
		Phone:           strings.TrimSpace(input.Phone),
		CompanyName:     strings.TrimSpace(input.CompanyName),
		Status:          constants.PartnerStatusPending,
		PartnerType:     partnerType,
		CommissionRate:  models.NewMoneyFromDecimal(rate),
		CommissionType:  commissionType,
		ParentPartnerID: input.ParentPartnerID,
		Address:         input.Address,
		BankInfo:        input.BankInfo,
		Metadata:        input.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(partner); err != nil {
		// 并发创建时由唯一索引兜底
		if dup, lookupErr := s.repo.GetByEmail(email); lookupErr == nil && dup != nil {
			return nil, conflictError("partner email %s is already registered", email)
		}
		return nil, wrapStorage("partner.create", err)
	}
	s.publisher.invalidateParents(ctx, partner.ParentPartnerID)
	logger.Ctx(ctx).Infow("partner_created", "partner_id", partner.ID, "partner_type", partner.PartnerType)
	return partner, nil
}

// Get 获取合作伙伴
func (s *PartnerService) Get(_ context.Context, id uint) (*models.Partner, error) {
	return s.mustGet(id)
}

// GetDetail 获取合作伙伴详情与统计
func (s *PartnerService) GetDetail(ctx context.Context, id uint) (*PartnerDetail, error) {
	partner, err := s.mustGet(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PartnerDetail{Partner: *partner, Stats: *stats}, nil
}

// Stats 合作伙伴统计（客户数、下级数、佣金汇总）
func (s *PartnerService) Stats(ctx context.Context, id uint) (*PartnerStats, error) {
	var cached PartnerStats
	hit, cacheErr := cache.GetJSON(ctx, cache.PartnerStatsKey(id), &cached)
	if cacheErr != nil {
		logger.Ctx(ctx).Warnw("partner_stats_cache_read_failed", "partner_id", id, "error", cacheErr)
	}
	if cacheErr == nil && hit {
		return &cached, nil
	}
	if _, err := s.mustGet(id); err != nil {
		return nil, err
	}
	clientCount, err := s.clientRepo.CountByPartner(id, nil)
	if err != nil {
		return nil, wrapStorage("partner.count_clients", err)
	}
	activeCount, err := s.clientRepo.CountByPartner(id, []string{constants.ClientStatusActive})
	if err != nil {
		return nil, wrapStorage("partner.count_active_clients", err)
	}
	subCount, err := s.repo.CountChildren(id)
	if err != nil {
		return nil, wrapStorage("partner.count_children", err)
	}
	stats := &PartnerStats{
		ClientCount:       clientCount,
		ActiveClientCount: activeCount,
		SubPartnerCount:   subCount,
	}
	if s.earningService != nil {
		summary, err := s.earningService.Summary(ctx, id)
		if err != nil {
			return nil, err
		}
		stats.Earnings = *summary
	}
	if err := cache.SetJSON(ctx, cache.PartnerStatsKey(id), stats, s.setting.SummaryCacheTTL); err != nil {
		logger.Ctx(ctx).Warnw("partner_stats_cache_write_failed", "partner_id", id, "error", err)
	}
	return stats, nil
}

// List 合作伙伴列表
func (s *PartnerService) List(_ context.Context, input PartnerListInput) ([]models.Partner, int64, error) {
	status := strings.TrimSpace(input.Status)
	if status != "" && !containsString(partnerStatuses, status) {
		return nil, 0, validationError("status must be one of %s", strings.Join(partnerStatuses, ", "))
	}
	partnerType := strings.TrimSpace(input.PartnerType)
	if partnerType != "" && !containsString(partnerTypes, partnerType) {
		return nil, 0, validationError("partner_type must be one of %s", strings.Join(partnerTypes, ", "))
	}
	page, pageSize := normalizeLedgerPage(input.Page, input.PageSize)
	rows, total, err := s.repo.List(repository.PartnerListFilter{
		Page:            page,
		PageSize:        pageSize,
		Status:          status,
		PartnerType:     partnerType,
		ParentPartnerID: input.ParentPartnerID,
		Keyword:         input.Keyword,
	})
	if err != nil {
		return nil, 0, wrapStorage("partner.list", err)
	}
	return rows, total, nil
}

// Update 更新合作伙伴资料，metadata 按键合并
func (s *PartnerService) Update(ctx context.Context, id uint, input UpdatePartnerInput) (*models.Partner, error) {
	partner, err := s.mustGet(id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, validationError("name must not be empty")
		}
		partner.Name = name
	}
	if input.Phone != nil {
		partner.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.CompanyName != nil {
		partner.CompanyName = strings.TrimSpace(*input.CompanyName)
	}
	if input.PartnerType != nil {
		partnerType := strings.TrimSpace(*input.PartnerType)
		if !containsString(partnerTypes, partnerType) {
			return nil, validationError("partner_type must be one of %s", strings.Join(partnerTypes, ", "))
		}
		partner.PartnerType = partnerType
	}
	commissionType := partner.CommissionType
	if input.CommissionType != nil {
		commissionType = strings.TrimSpace(*input.CommissionType)
	}
	rate := partner.CommissionRate.Decimal
	if input.CommissionRate != nil {
		rate = input.CommissionRate.Round(2)
	}
	if err := validateCommission(commissionType, rate); err != nil {
		return nil, err
	}
	partner.CommissionType = commissionType
	partner.CommissionRate = models.NewMoneyFromDecimal(rate)

	previousParentID := partner.ParentPartnerID
	if input.ClearParent {
		partner.ParentPartnerID = nil
	} else if input.ParentPartnerID != nil {
		if err := s.validateParent(partner.ID, *input.ParentPartnerID); err != nil {
			return nil, err
		}
		parentID := *input.ParentPartnerID
		partner.ParentPartnerID = &parentID
	}
	if input.Address != nil {
		partner.Address = input.Address
	}
	if input.BankInfo != nil {
		partner.BankInfo = input.BankInfo
	}
	if input.Metadata != nil {
		partner.Metadata = partner.Metadata.Merge(input.Metadata)
	}
	partner.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(partner); err != nil {
		return nil, wrapStorage("partner.update", err)
	}
	s.publisher.invalidate(ctx, partner.ID)
	if !sameParent(previousParentID, partner.ParentPartnerID) {
		s.publisher.invalidateParents(ctx, previousParentID, partner.ParentPartnerID)
	}
	logger.Ctx(ctx).Infow("partner_updated", "partner_id", partner.ID)
	return partner, nil
}

// Activate 激活合作伙伴
func (s *PartnerService) Activate(ctx context.Context, id uint) (*models.Partner, error) {
	return s.setStatus(ctx, id, constants.PartnerStatusActive)
}

// Suspend 暂停合作伙伴
func (s *PartnerService) Suspend(ctx context.Context, id uint) (*models.Partner, error) {
	return s.setStatus(ctx, id, constants.PartnerStatusSuspended)
}

// BulkUpdateStatus 批量更新合作伙伴状态，返回实际更新数量
func (s *PartnerService) BulkUpdateStatus(ctx context.Context, ids []uint, status string) (int64, error) {
	status = strings.TrimSpace(status)
	if !containsString(partnerStatuses, status) {
		return 0, validationError("status must be one of %s", strings.Join(partnerStatuses, ", "))
	}
	ids = uniquePositiveIDs(ids)
	if len(ids) == 0 {
		return 0, validationError("partner_ids must not be empty")
	}
	affected, err := s.repo.BatchUpdateStatus(ids, status, s.now().UTC())
	if err != nil {
		return 0, wrapStorage("partner.batch_update_status", err)
	}
	for _, id := range ids {
		s.publisher.invalidate(ctx, id)
	}
	logger.Ctx(ctx).Infow("partner_bulk_status_updated", "status", status, "requested", len(ids), "affected", affected)
	return affected, nil
}

// Delete 删除合作伙伴；默认软删除（状态置为 inactive），hard 仅在无客户、佣金、下级时允许
func (s *PartnerService) Delete(ctx context.Context, id uint, hard bool) error {
	partner, err := s.mustGet(id)
	if err != nil {
		return err
	}
	if !hard {
		if _, err := s.repo.UpdateStatus(id, constants.PartnerStatusInactive, s.now().UTC()); err != nil {
			return wrapStorage("partner.soft_delete", err)
		}
		s.publisher.invalidate(ctx, id)
		logger.Ctx(ctx).Infow("partner_soft_deleted", "partner_id", id)
		return nil
	}

	clients, err := s.clientRepo.CountByPartner(id, nil)
	if err != nil {
		return wrapStorage("partner.count_clients", err)
	}
	earnings, err := s.earningRepo.CountByPartner(id)
	if err != nil {
		return wrapStorage("partner.count_earnings", err)
	}
	children, err := s.repo.CountChildren(id)
	if err != nil {
		return wrapStorage("partner.count_children", err)
	}
	if clients > 0 || earnings > 0 || children > 0 {
		return conflictError("partner %d still owns %d clients, %d earnings and %d sub-partners", id, clients, earnings, children)
	}
	if err := s.repo.Delete(id); err != nil {
		return wrapStorage("partner.delete", err)
	}
	s.publisher.invalidate(ctx, id)
	s.publisher.invalidateParents(ctx, partner.ParentPartnerID)
	logger.Ctx(ctx).Infow("partner_hard_deleted", "partner_id", id)
	return nil
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ListSubPartners 获取直属下级合作伙伴（仅一层）
func (s *PartnerService) ListSubPartners(_ context.Context, id uint) ([]models.Partner, error) {
	if _, err := s.mustGet(id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListChildren(id)
	if err != nil {
		return nil, wrapStorage("partner.list_children", err)
	}
	return rows, nil
}

func (s *PartnerService) setStatus(ctx context.Context, id uint, status string) (*models.Partner, error) {
	if _, err := s.mustGet(id); err != nil {
		return nil, err
	}
	if _, err := s.repo.UpdateStatus(id, status, s.now().UTC()); err != nil {
		return nil, wrapStorage("partner.update_status", err)
	}
	s.publisher.invalidate(ctx, id)
	logger.Ctx(ctx).Infow("partner_status_changed", "partner_id", id, "status", status)
	return s.mustGet(id)
}

func (s *PartnerService) mustGet(id uint) (*models.Partner, error) {
	if id == 0 {
		return nil, ErrPartnerNotFound
	}
	partner, err := s.repo.GetByID(id)
	if err != nil {
		return nil, wrapStorage("partner.get", err)
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	return partner, nil
}

// validateParent 校验上级存在且不会形成环（上级不能是自身或自身的下级）
func (s *PartnerService) validateParent(selfID, parentID uint) error {
	if parentID == 0 {
		return validationError("parent_partner_id must be positive")
	}
	if selfID != 0 && parentID == selfID {
		return validationError("partner cannot be its own parent")
	}
	parent, err := s.repo.GetByID(parentID)
	if err != nil {
		return wrapStorage("partner.get_parent", err)
	}
	if parent == nil {
		return fmt.Errorf("parent %w", ErrPartnerNotFound)
	}
	if selfID == 0 {
		return nil
	}
	visited := map[uint]struct{}{parent.ID: {}}
	current := parent
	for i := 0; i < partnerAncestorWalkLimit && current.ParentPartnerID != nil; i++ {
		ancestorID := *current.ParentPartnerID
		if ancestorID == selfID {
			return validationError("parent_partner_id %d is a descendant of partner %d", parentID, selfID)
		}
		if _, seen := visited[ancestorID]; seen {
			break
		}
		visited[ancestorID] = struct{}{}
		next, err := s.repo.GetByID(ancestorID)
		if err != nil {
			return wrapStorage("partner.get_ancestor", err)
		}
		if next == nil {
			break
		}
		current = next
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationError("email %q is not a valid address", raw)
	}
	return email, nil
}

func uniquePositiveIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
