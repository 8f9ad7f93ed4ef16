package service

import (
	"context"
	"errors"
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

// earningTransitionAttempts 状态被并发修改后重新读取的最大次数
const earningTransitionAttempts = 3

// EarningService 佣金收益状态机与汇总服务
type EarningService struct {
	partnerRepo repository.PartnerRepository
	clientRepo  repository.PartnerClientRepository
	earningRepo repository.PartnerEarningRepository
	auditRepo   repository.EarningAuditRepository
	publisher   ledgerPublisher
	setting     LedgerSetting
	now         func() time.Time
}

// NewEarningService 创建佣金收益服务
func NewEarningService(
	partnerRepo repository.PartnerRepository,
	clientRepo repository.PartnerClientRepository,
	earningRepo repository.PartnerEarningRepository,
	auditRepo repository.EarningAuditRepository,
	queueClient *queue.Client,
	setting LedgerSetting,
) *EarningService {
	return &EarningService{
		partnerRepo: partnerRepo,
		clientRepo:  clientRepo,
		earningRepo: earningRepo,
		auditRepo:   auditRepo,
		publisher:   ledgerPublisher{queueClient: queueClient},
		setting:     setting,
		now:         time.Now,
	}
}

// CreateEarningInput 手工新增佣金输入
type CreateEarningInput struct {
	Amount         decimal.Decimal
	ClientID       *uint
	OriginalAmount *decimal.Decimal
	CommissionRate *decimal.Decimal
	CommissionType string
	Status         string
	Description    string
	PaymentDate    *time.Time
	Metadata       models.JSON
	Operator       string
}

// EarningTransitionInput 状态流转输入（审批备注、取消/冻结原因）
type EarningTransitionInput struct {
	Reason   string
	Operator string
}

// MarkPaidInput 发放佣金输入
type MarkPaidInput struct {
	PaymentMethod    string
	PaymentReference string
	PaidDate         *time.Time
	Operator         string
}

// BulkPayInput 批量发放输入
type BulkPayInput struct {
	EarningIDs []uint
	MarkPaidInput
}

// BulkPaySkip 批量发放中被跳过的记录
type BulkPaySkip struct {
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

// BulkPayResult 批量发放结果
type BulkPayResult struct {
	PaidIDs     []uint        `json:"paid_ids"`
	Skipped     []BulkPaySkip `json:"skipped"`
	Count       int           `json:"count"`
	TotalAmount models.Money  `json:"total_amount"`
	PaidDate    time.Time     `json:"paid_date"`
}

// CreateEarning 手工新增佣金记录
func (s *EarningService) CreateEarning(ctx context.Context, partnerID uint, input CreateEarningInput) (*models.PartnerEarning, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, validationError("amount must be greater than 0")
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = constants.EarningStatusPending
	}
	if !isValidEarningStatus(status) {
		return nil, validationError("status must be one of %s", strings.Join(earningStatuses, ", "))
	}

	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, wrapStorage("earning.get_partner", err)
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	if input.ClientID != nil {
		client, err := s.clientRepo.GetByPartnerAndID(partnerID, *input.ClientID)
		if err != nil {
			return nil, wrapStorage("earning.get_client", err)
		}
		if client == nil {
			return nil, ErrClientNotFound
		}
	}

	commissionType := strings.TrimSpace(input.CommissionType)
	if commissionType == "" {
		commissionType = partner.CommissionType
	}
	rate := partner.CommissionRate.Decimal
	if input.CommissionRate != nil {
		rate = input.CommissionRate.Round(2)
	}
	if err := validateCommission(commissionType, rate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	earning := &models.PartnerEarning{
		PartnerID:      partnerID,
		ClientID:       input.ClientID,
		Amount:         models.NewMoneyFromDecimal(amount),
		CommissionRate: models.NewMoneyFromDecimal(rate),
		CommissionType: commissionType,
		Status:         status,
		Description:    strings.TrimSpace(input.Description),
		Metadata:       input.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.OriginalAmount != nil {
		original := models.NewMoneyFromDecimal(*input.OriginalAmount)
		earning.OriginalAmount = &original
	}
	if input.PaymentDate != nil && !input.PaymentDate.IsZero() {
		paymentDate := input.PaymentDate.UTC()
		earning.PaymentDate = &paymentDate
	}
	if status == constants.EarningStatusPaid {
		earning.PaidDate = &now
	}

	err = s.earningRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.earningRepo.WithTx(tx).Create(earning); err != nil {
			return wrapStorage("earning.create", err)
		}
		return wrapStorage("earning.create_audit", s.auditRepo.WithTx(tx).Create(&models.PartnerEarningAuditLog{
			EarningID: earning.ID,
			PartnerID: partnerID,
			Action:    constants.EarningActionCreate,
			ToStatus:  status,
			Reason:    "manual",
			Operator:  strings.TrimSpace(input.Operator),
			RequestID: logger.RequestIDFrom(ctx),
			DetailJSON: models.JSON{
				"amount": amount.StringFixed(2),
			},
			CreatedAt: now,
		}))
	})
	if err != nil {
		err = wrapStorage("earning.create_transaction", err)
		metrics.RecordEarningTransition(constants.EarningActionCreate, outcomeForError(err))
		return nil, err
	}

	metrics.RecordEarningTransition(constants.EarningActionCreate, metrics.OutcomeApplied)
	s.publisher.earningChanged(ctx, partnerID, []uint{earning.ID}, constants.EarningActionCreate, "", status, amount, now)
	logger.Ctx(ctx).Infow("earning_created", "partner_id", partnerID, "earning_id", earning.ID, "status", status)
	return earning, nil
}

// Approve 审批佣金：pending -> approved
func (s *EarningService) Approve(ctx context.Context, partnerID, earningID uint, input EarningTransitionInput) (*models.PartnerEarning, error) {
	return s.transition(ctx, partnerID, earningID, constants.EarningActionApprove, input, nil)
}

// MarkPaid 发放佣金：pending/approved -> paid
func (s *EarningService) MarkPaid(ctx context.Context, partnerID, earningID uint, input MarkPaidInput) (*models.PartnerEarning, error) {
	paidDate := s.resolvePaidDate(input.PaidDate)
	return s.transition(ctx, partnerID, earningID, constants.EarningActionMarkPaid,
		EarningTransitionInput{Operator: input.Operator},
		paidUpdates(paidDate, input),
	)
}

// Cancel 取消佣金：除 paid/cancelled 外均可取消
func (s *EarningService) Cancel(ctx context.Context, partnerID, earningID uint, input EarningTransitionInput) (*models.PartnerEarning, error) {
	return s.transition(ctx, partnerID, earningID, constants.EarningActionCancel, input, nil)
}

// Hold 冻结佣金：默认仅 pending/approved 可冻结
func (s *EarningService) Hold(ctx context.Context, partnerID, earningID uint, input EarningTransitionInput) (*models.PartnerEarning, error) {
	return s.transition(ctx, partnerID, earningID, constants.EarningActionHold, input, nil)
}

// Release 解除冻结：on_hold -> pending；从 paid/cancelled 冻结的记录保持冻结
func (s *EarningService) Release(ctx context.Context, partnerID, earningID uint, input EarningTransitionInput) (*models.PartnerEarning, error) {
	return s.transition(ctx, partnerID, earningID, constants.EarningActionRelease, input, nil)
}

// BulkPay 批量发放：仅处理属于该伙伴且状态为 pending/approved 的记录，其余记录跳过
func (s *EarningService) BulkPay(ctx context.Context, partnerID uint, input BulkPayInput) (*BulkPayResult, error) {
	ids := uniquePositiveIDs(input.EarningIDs)
	if len(ids) == 0 {
		return nil, validationError("earning_ids must not be empty")
	}
	if s.setting.MaxBulkPay > 0 && len(ids) > s.setting.MaxBulkPay {
		return nil, validationError("earning_ids must not exceed %d items", s.setting.MaxBulkPay)
	}
	if _, err := s.mustGetPartner(partnerID); err != nil {
		return nil, err
	}

	action := constants.EarningActionBulkPay
	sources := earningTransitionSources(action, false)
	paidDate := s.resolvePaidDate(input.PaidDate)
	updates := paidUpdates(paidDate, input.MarkPaidInput)
	now := s.now().UTC()

	result := &BulkPayResult{PaidIDs: []uint{}, Skipped: []BulkPaySkip{}, PaidDate: paidDate}
	total := decimal.Zero
	err := s.earningRepo.Transaction(func(tx *gorm.DB) error {
		earningRepo := s.earningRepo.WithTx(tx)
		auditRepo := s.auditRepo.WithTx(tx)
		rows, err := earningRepo.ListByPartnerAndIDs(partnerID, ids)
		if err != nil {
			return wrapStorage("bulk_pay.list", err)
		}
		byID := make(map[uint]models.PartnerEarning, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}

		candidates := make([]models.PartnerEarning, 0, len(ids))
		for _, id := range ids {
			row, ok := byID[id]
			if !ok {
				result.Skipped = append(result.Skipped, BulkPaySkip{ID: id, Reason: "not_found"})
				continue
			}
			if !containsString(sources, row.Status) {
				result.Skipped = append(result.Skipped, BulkPaySkip{ID: id, Reason: "invalid_status:" + row.Status})
				continue
			}
			candidates = append(candidates, row)
		}
		if len(candidates) == 0 {
			return validationError("none of the requested earnings can be paid")
		}

		for _, row := range candidates {
			applied, err := earningRepo.TransitionStatus(partnerID, row.ID, []string{row.Status}, constants.EarningStatusPaid, updates)
			if err != nil {
				return wrapStorage("bulk_pay.transition", err)
			}
			if !applied {
				result.Skipped = append(result.Skipped, BulkPaySkip{ID: row.ID, Reason: "status_changed"})
				continue
			}
			if err := auditRepo.Create(s.buildAudit(ctx, row, action, constants.EarningStatusPaid, EarningTransitionInput{Operator: input.Operator}, now, models.JSON{
				"payment_method":    strings.TrimSpace(input.PaymentMethod),
				"payment_reference": strings.TrimSpace(input.PaymentReference),
			})); err != nil {
				return wrapStorage("bulk_pay.audit", err)
			}
			result.PaidIDs = append(result.PaidIDs, row.ID)
			total = total.Add(row.Amount.Decimal)
		}
		if len(result.PaidIDs) == 0 {
			return validationError("none of the requested earnings can be paid")
		}
		return nil
	})
	if err != nil {
		err = wrapStorage("bulk_pay.transaction", err)
		metrics.RecordEarningTransition(action, outcomeForError(err))
		return nil, err
	}

	result.Count = len(result.PaidIDs)
	result.TotalAmount = models.NewMoneyFromDecimal(total)
	metrics.RecordEarningTransition(action, metrics.OutcomeApplied)
	metrics.RecordEarningsPaid(total)
	s.publisher.earningChanged(ctx, partnerID, result.PaidIDs, action, "", constants.EarningStatusPaid, total, now)
	logger.Ctx(ctx).Infow("earning_bulk_paid",
		"partner_id", partnerID,
		"paid_count", result.Count,
		"skipped_count", len(result.Skipped),
		"total_amount", result.TotalAmount.String(),
	)
	return result, nil
}

// transition 执行单条佣金状态流转：先判定归属与状态，再以观察到的状态做条件更新
func (s *EarningService) transition(
	ctx context.Context,
	partnerID, earningID uint,
	action string,
	input EarningTransitionInput,
	extra map[string]interface{},
) (*models.PartnerEarning, error) {
	target := earningTransitionTargets[action]
	sources := earningTransitionSources(action, s.setting.AllowHoldFromAny)
	now := s.now().UTC()

	var (
		fromStatus string
		updated    *models.PartnerEarning
	)
	err := s.earningRepo.Transaction(func(tx *gorm.DB) error {
		earningRepo := s.earningRepo.WithTx(tx)
		for attempt := 0; attempt < earningTransitionAttempts; attempt++ {
			current, err := s.mustGetEarning(earningRepo, partnerID, earningID)
			if err != nil {
				return err
			}
			if !containsString(sources, current.Status) {
				return &InvalidStateError{Entity: "earning", Current: current.Status, Attempted: action}
			}
			if current.Status == constants.EarningStatusOnHold {
				heldFrom, err := s.heldFromStatus(tx, partnerID, earningID)
				if err != nil {
					return err
				}
				if isTerminalEarningStatus(heldFrom) {
					return &InvalidStateError{Entity: "earning", Current: current.Status + " (held from " + heldFrom + ")", Attempted: action}
				}
			}
			updates := map[string]interface{}{"updated_at": now}
			for key, value := range extra {
				updates[key] = value
			}
			applied, err := earningRepo.TransitionStatus(partnerID, earningID, []string{current.Status}, target, updates)
			if err != nil {
				return wrapStorage("earning.transition", err)
			}
			if !applied {
				continue
			}
			fromStatus = current.Status
			detail := models.JSON{}
			for key, value := range extra {
				if key == "paid_date" {
					continue
				}
				detail[key] = value
			}
			if err := s.auditRepo.WithTx(tx).Create(s.buildAudit(ctx, *current, action, target, input, now, detail)); err != nil {
				return wrapStorage("earning.audit", err)
			}
			updated, err = s.mustGetEarning(earningRepo, partnerID, earningID)
			return err
		}
		return conflictError("earning %d was modified concurrently, retry the %s", earningID, action)
	})
	if err != nil {
		err = wrapStorage("earning.transaction", err)
		metrics.RecordEarningTransition(action, outcomeForError(err))
		logger.Ctx(ctx).Infow("earning_transition_rejected",
			"partner_id", partnerID,
			"earning_id", earningID,
			"action", action,
			"error", err,
		)
		return nil, err
	}

	metrics.RecordEarningTransition(action, metrics.OutcomeApplied)
	if target == constants.EarningStatusPaid {
		metrics.RecordEarningsPaid(updated.Amount.Decimal)
	}
	s.publisher.earningChanged(ctx, partnerID, []uint{earningID}, action, fromStatus, target, updated.Amount.Decimal, now)
	logger.Ctx(ctx).Infow("earning_transition_applied",
		"partner_id", partnerID,
		"earning_id", earningID,
		"action", action,
		"from_status", fromStatus,
		"to_status", target,
	)
	return updated, nil
}

// heldFromStatus 读取最近一次冻结前的状态；paid/cancelled 冻结后不可再解冻或取消
func (s *EarningService) heldFromStatus(tx *gorm.DB, partnerID, earningID uint) (string, error) {
	row, err := s.auditRepo.WithTx(tx).LatestByAction(partnerID, earningID, constants.EarningActionHold)
	if err != nil {
		return "", wrapStorage("earning.hold_audit", err)
	}
	if row == nil {
		return constants.EarningStatusPending, nil
	}
	return row.FromStatus, nil
}

func (s *EarningService) buildAudit(
	ctx context.Context,
	earning models.PartnerEarning,
	action, toStatus string,
	input EarningTransitionInput,
	at time.Time,
	detail models.JSON,
) *models.PartnerEarningAuditLog {
	if len(detail) == 0 {
		detail = nil
	}
	return &models.PartnerEarningAuditLog{
		EarningID:  earning.ID,
		PartnerID:  earning.PartnerID,
		Action:     action,
		FromStatus: earning.Status,
		ToStatus:   toStatus,
		Reason:     strings.TrimSpace(input.Reason),
		Operator:   strings.TrimSpace(input.Operator),
		RequestID:  logger.RequestIDFrom(ctx),
		DetailJSON: detail,
		CreatedAt:  at,
	}
}

func (s *EarningService) resolvePaidDate(raw *time.Time) time.Time {
	if raw != nil && !raw.IsZero() {
		return raw.UTC()
	}
	return s.now().UTC()
}

func paidUpdates(paidDate time.Time, input MarkPaidInput) map[string]interface{} {
	return map[string]interface{}{
		"paid_date":         paidDate,
		"payment_method":    strings.TrimSpace(input.PaymentMethod),
		"payment_reference": strings.TrimSpace(input.PaymentReference),
	}
}

func (s *EarningService) mustGetPartner(partnerID uint) (*models.Partner, error) {
	if partnerID == 0 {
		return nil, ErrPartnerNotFound
	}
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, wrapStorage("earning.get_partner", err)
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	return partner, nil
}

func (s *EarningService) mustGetEarning(repo repository.PartnerEarningRepository, partnerID, earningID uint) (*models.PartnerEarning, error) {
	if partnerID == 0 || earningID == 0 {
		return nil, ErrEarningNotFound
	}
	earning, err := repo.GetByPartnerAndID(partnerID, earningID)
	if err != nil {
		return nil, wrapStorage("earning.get", err)
	}
	if earning == nil {
		return nil, ErrEarningNotFound
	}
	return earning, nil
}

func outcomeForError(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrStorage):
		return metrics.OutcomeStorageError
	default:
		return metrics.OutcomeRejected
	}
}
