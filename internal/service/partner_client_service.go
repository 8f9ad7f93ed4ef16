package service

import (
	"context"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/metrics"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/queue"
	"github.com/mis-sentinel/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartnerClientService 推荐客户与付款记录服务
type PartnerClientService struct {
	partnerRepo repository.PartnerRepository
	clientRepo  repository.PartnerClientRepository
	earningRepo repository.PartnerEarningRepository
	auditRepo   repository.EarningAuditRepository
	publisher   ledgerPublisher
	now         func() time.Time
}

// NewPartnerClientService 创建推荐客户服务
func NewPartnerClientService(
	partnerRepo repository.PartnerRepository,
	clientRepo repository.PartnerClientRepository,
	earningRepo repository.PartnerEarningRepository,
	auditRepo repository.EarningAuditRepository,
	queueClient *queue.Client,
) *PartnerClientService {
	return &PartnerClientService{
		partnerRepo: partnerRepo,
		clientRepo:  clientRepo,
		earningRepo: earningRepo,
		auditRepo:   auditRepo,
		publisher:   ledgerPublisher{queueClient: queueClient},
		now:         time.Now,
	}
}

// CreateClientInput 创建客户输入
type CreateClientInput struct {
	ClientName        string
	ClientEmail       string
	ClientPhone       string
	CompanyName       string
	SubscriptionPlan  string
	SubscriptionValue decimal.Decimal
	Metadata          models.JSON
}

// UpdateClientInput 更新客户输入，nil 字段保持不变
type UpdateClientInput struct {
	ClientName         *string
	ClientPhone        *string
	CompanyName        *string
	SubscriptionPlan   *string
	SubscriptionValue  *decimal.Decimal
	SubscriptionStatus *string
	Metadata           models.JSON
}

// ClientListInput 客户列表查询
type ClientListInput struct {
	Page     int
	PageSize int
	Status   string
	Keyword  string
}

// RecordPaymentInput 记录客户付款输入
type RecordPaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate *time.Time
	Description string
	Operator    string
}

// RecordPaymentResult 记录付款结果
type RecordPaymentResult struct {
	Client           models.PartnerClient   `json:"client"`
	Earning          *models.PartnerEarning `json:"earning,omitempty"`
	CommissionAmount models.Money           `json:"commission_amount"`
	Activated        bool                   `json:"activated"`
}

var clientStatuses = []string{
	constants.ClientStatusActive,
	constants.ClientStatusInactive,
	constants.ClientStatusCancelled,
	constants.ClientStatusTrial,
	constants.ClientStatusPending,
}

// Create 创建客户，同一伙伴下邮箱唯一
func (s *PartnerClientService) Create(ctx context.Context, partnerID uint, input CreateClientInput) (*models.PartnerClient, error) {
	name := strings.TrimSpace(input.ClientName)
	if name == "" {
		return nil, validationError("client_name is required")
	}
	email, err := normalizeEmail(input.ClientEmail)
	if err != nil {
		return nil, err
	}
	if input.SubscriptionValue.IsNegative() {
		return nil, validationError("subscription_value must not be negative")
	}
	if err := s.ensurePartner(partnerID); err != nil {
		return nil, err
	}
	existing, err := s.clientRepo.GetByPartnerAndEmail(partnerID, email)
	if err != nil {
		return nil, wrapStorage("client.get_by_email", err)
	}
	if existing != nil {
		return nil, conflictError("client email %s is already registered for partner %d", email, partnerID)
	}

	now := s.now().UTC()
	client := &models.PartnerClient{
		PartnerID:          partnerID,
		ClientName:         name,
		ClientEmail:        email,
		ClientPhone:        strings.TrimSpace(input.ClientPhone),
		CompanyName:        strings.TrimSpace(input.CompanyName),
		SubscriptionPlan:   strings.TrimSpace(input.SubscriptionPlan),
		SubscriptionValue:  models.NewMoneyFromDecimal(input.SubscriptionValue),
		SubscriptionStatus: constants.ClientStatusPending,
		TotalPaid:          models.ZeroMoney(),
		Metadata:           input.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.clientRepo.Create(client); err != nil {
		// 并发创建时由唯一索引兜底
		if dup, lookupErr := s.clientRepo.GetByPartnerAndEmail(partnerID, email); lookupErr == nil && dup != nil {
			return nil, conflictError("client email %s is already registered for partner %d", email, partnerID)
		}
		return nil, wrapStorage("client.create", err)
	}
	s.publisher.invalidate(ctx, partnerID)
	logger.Ctx(ctx).Infow("partner_client_created", "partner_id", partnerID, "client_id", client.ID)
	return client, nil
}

// Get 获取客户
func (s *PartnerClientService) Get(_ context.Context, partnerID, clientID uint) (*models.PartnerClient, error) {
	return s.mustGet(s.clientRepo, partnerID, clientID)
}

// List 客户列表
func (s *PartnerClientService) List(_ context.Context, partnerID uint, input ClientListInput) ([]models.PartnerClient, int64, error) {
	if err := s.ensurePartner(partnerID); err != nil {
		return nil, 0, err
	}
	status := strings.TrimSpace(input.Status)
	if status != "" && !containsString(clientStatuses, status) {
		return nil, 0, validationError("status must be one of %s", strings.Join(clientStatuses, ", "))
	}
	page, pageSize := normalizeLedgerPage(input.Page, input.PageSize)
	rows, total, err := s.clientRepo.List(repository.PartnerClientListFilter{
		Page:      page,
		PageSize:  pageSize,
		PartnerID: partnerID,
		Status:    status,
		Keyword:   input.Keyword,
	})
	if err != nil {
		return nil, 0, wrapStorage("client.list", err)
	}
	return rows, total, nil
}

// Update 更新客户资料；取消需走 Cancel，已取消客户不可再改状态
func (s *PartnerClientService) Update(ctx context.Context, partnerID, clientID uint, input UpdateClientInput) (*models.PartnerClient, error) {
	client, err := s.mustGet(s.clientRepo, partnerID, clientID)
	if err != nil {
		return nil, err
	}
	if input.ClientName != nil {
		name := strings.TrimSpace(*input.ClientName)
		if name == "" {
			return nil, validationError("client_name must not be empty")
		}
		client.ClientName = name
	}
	if input.ClientPhone != nil {
		client.ClientPhone = strings.TrimSpace(*input.ClientPhone)
	}
	if input.CompanyName != nil {
		client.CompanyName = strings.TrimSpace(*input.CompanyName)
	}
	if input.SubscriptionPlan != nil {
		client.SubscriptionPlan = strings.TrimSpace(*input.SubscriptionPlan)
	}
	if input.SubscriptionValue != nil {
		if input.SubscriptionValue.IsNegative() {
			return nil, validationError("subscription_value must not be negative")
		}
		client.SubscriptionValue = models.NewMoneyFromDecimal(*input.SubscriptionValue)
	}
	if input.SubscriptionStatus != nil {
		status := strings.TrimSpace(*input.SubscriptionStatus)
		if status == constants.ClientStatusCancelled {
			return nil, validationError("use the cancel operation to cancel a client")
		}
		if !containsString(clientStatuses, status) {
			return nil, validationError("subscription_status must be one of %s", strings.Join(clientStatuses, ", "))
		}
		if client.SubscriptionStatus == constants.ClientStatusCancelled && status != client.SubscriptionStatus {
			return nil, &InvalidStateError{Entity: "client", Current: client.SubscriptionStatus, Attempted: "set status " + status + " on"}
		}
		client.SubscriptionStatus = status
	}
	if input.Metadata != nil {
		client.Metadata = client.Metadata.Merge(input.Metadata)
	}
	client.UpdatedAt = s.now().UTC()
	if err := s.clientRepo.Update(client); err != nil {
		return nil, wrapStorage("client.update", err)
	}
	s.publisher.invalidate(ctx, partnerID)
	return client, nil
}

// Cancel 取消客户订阅，原因与时间合并写入 metadata
func (s *PartnerClientService) Cancel(ctx context.Context, partnerID, clientID uint, reason string) (*models.PartnerClient, error) {
	client, err := s.mustGet(s.clientRepo, partnerID, clientID)
	if err != nil {
		return nil, err
	}
	if client.SubscriptionStatus == constants.ClientStatusCancelled {
		return nil, &InvalidStateError{Entity: "client", Current: client.SubscriptionStatus, Attempted: "cancel"}
	}
	now := s.now().UTC()
	client.SubscriptionStatus = constants.ClientStatusCancelled
	client.Metadata = client.Metadata.Merge(models.JSON{
		"cancellation_reason": strings.TrimSpace(reason),
		"cancelled_at":        now.Format(time.RFC3339),
	})
	client.UpdatedAt = now
	if err := s.clientRepo.Update(client); err != nil {
		return nil, wrapStorage("client.cancel", err)
	}
	s.publisher.invalidate(ctx, partnerID)
	logger.Ctx(ctx).Infow("partner_client_cancelled", "partner_id", partnerID, "client_id", clientID)
	return client, nil
}

// Delete 删除客户，存在关联佣金时拒绝
func (s *PartnerClientService) Delete(ctx context.Context, partnerID, clientID uint) error {
	if _, err := s.mustGet(s.clientRepo, partnerID, clientID); err != nil {
		return err
	}
	count, err := s.earningRepo.CountByClient(partnerID, clientID)
	if err != nil {
		return wrapStorage("client.count_earnings", err)
	}
	if count > 0 {
		return conflictError("client %d has %d earnings and cannot be deleted", clientID, count)
	}
	if err := s.clientRepo.Delete(partnerID, clientID); err != nil {
		return wrapStorage("client.delete", err)
	}
	s.publisher.invalidate(ctx, partnerID)
	logger.Ctx(ctx).Infow("partner_client_deleted", "partner_id", partnerID, "client_id", clientID)
	return nil
}

// RecordPayment 记录客户付款并派生佣金，整体在一个事务内完成
func (s *PartnerClientService) RecordPayment(ctx context.Context, partnerID, clientID uint, input RecordPaymentInput) (*RecordPaymentResult, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, validationError("amount must be greater than 0")
	}
	now := s.now().UTC()
	paidAt := now
	if input.PaymentDate != nil && !input.PaymentDate.IsZero() {
		paidAt = input.PaymentDate.UTC()
	}

	var (
		result         RecordPaymentResult
		commissionType string
	)
	err := s.clientRepo.Transaction(func(tx *gorm.DB) error {
		clientRepo := s.clientRepo.WithTx(tx)
		client, err := s.mustGet(clientRepo, partnerID, clientID)
		if err != nil {
			return err
		}
		partner, err := s.partnerRepo.WithTx(tx).GetByID(partnerID)
		if err != nil {
			return wrapStorage("payment.get_partner", err)
		}
		if partner == nil {
			return ErrPartnerNotFound
		}
		commissionType = partner.CommissionType
		commission, err := CalculateCommission(partner.CommissionType, partner.CommissionRate.Decimal, amount)
		if err != nil {
			return err
		}

		affected, err := clientRepo.ApplyPayment(partnerID, clientID, amount, paidAt, now)
		if err != nil {
			return wrapStorage("payment.apply", err)
		}
		if affected == 0 {
			return ErrClientNotFound
		}
		result.Activated = client.SubscriptionStatus == constants.ClientStatusPending
		result.CommissionAmount = models.NewMoneyFromDecimal(commission)

		if commission.IsPositive() {
			original := models.NewMoneyFromDecimal(amount)
			clientRef := clientID
			description := strings.TrimSpace(input.Description)
			if description == "" {
				description = "Commission for client payment"
			}
			earning := &models.PartnerEarning{
				PartnerID:      partnerID,
				ClientID:       &clientRef,
				Amount:         models.NewMoneyFromDecimal(commission),
				OriginalAmount: &original,
				CommissionRate: partner.CommissionRate,
				CommissionType: partner.CommissionType,
				Status:         constants.EarningStatusPending,
				Description:    description,
				PaymentDate:    &paidAt,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.earningRepo.WithTx(tx).Create(earning); err != nil {
				return wrapStorage("payment.create_earning", err)
			}
			if err := s.auditRepo.WithTx(tx).Create(&models.PartnerEarningAuditLog{
				EarningID: earning.ID,
				PartnerID: partnerID,
				Action:    constants.EarningActionCreate,
				ToStatus:  earning.Status,
				Reason:    "client_payment",
				Operator:  strings.TrimSpace(input.Operator),
				RequestID: logger.RequestIDFrom(ctx),
				DetailJSON: models.JSON{
					"client_id":       clientID,
					"payment_amount":  amount.StringFixed(2),
					"commission_rate": partner.CommissionRate.String(),
				},
				CreatedAt: now,
			}); err != nil {
				return wrapStorage("payment.create_audit", err)
			}
			result.Earning = earning
		}

		updated, err := s.mustGet(clientRepo, partnerID, clientID)
		if err != nil {
			return err
		}
		result.Client = *updated
		return nil
	})
	if err != nil {
		return nil, wrapStorage("payment.transaction", err)
	}

	metrics.RecordPayment(commissionType, result.CommissionAmount.Decimal)
	payload := queue.PaymentRecordedPayload{
		PartnerID:        partnerID,
		ClientID:         clientID,
		Amount:           amount.StringFixed(2),
		CommissionAmount: result.CommissionAmount.String(),
		Activated:        result.Activated,
		OccurredAt:       now,
	}
	if result.Earning != nil {
		payload.EarningID = result.Earning.ID
	}
	s.publisher.paymentRecorded(ctx, payload)
	logger.Ctx(ctx).Infow("payment_recorded",
		"partner_id", partnerID,
		"client_id", clientID,
		"amount", amount.StringFixed(2),
		"commission_amount", result.CommissionAmount.String(),
		"activated", result.Activated,
	)
	return &result, nil
}

func (s *PartnerClientService) ensurePartner(partnerID uint) error {
	if partnerID == 0 {
		return ErrPartnerNotFound
	}
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return wrapStorage("client.get_partner", err)
	}
	if partner == nil {
		return ErrPartnerNotFound
	}
	return nil
}

func (s *PartnerClientService) mustGet(repo repository.PartnerClientRepository, partnerID, clientID uint) (*models.PartnerClient, error) {
	if partnerID == 0 || clientID == 0 {
		return nil, ErrClientNotFound
	}
	client, err := repo.GetByPartnerAndID(partnerID, clientID)
	if err != nil {
		return nil, wrapStorage("client.get", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}
