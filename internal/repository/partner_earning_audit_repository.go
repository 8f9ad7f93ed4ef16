package repository

import (
	"github.com/mis-sentinel/internal/models"

	"gorm.io/gorm"
)

// EarningAuditRepository 佣金审计日志数据访问接口
type EarningAuditRepository interface {
	WithTx(tx *gorm.DB) EarningAuditRepository
	Create(log *models.PartnerEarningAuditLog) error
	ListByEarning(partnerID, earningID uint) ([]models.PartnerEarningAuditLog, error)
	LatestByAction(partnerID, earningID uint, action string) (*models.PartnerEarningAuditLog, error)
}

// GormEarningAuditRepository GORM 佣金审计日志仓储
type GormEarningAuditRepository struct {
	db *gorm.DB
}

// NewEarningAuditRepository 创建佣金审计日志仓储
func NewEarningAuditRepository(db *gorm.DB) *GormEarningAuditRepository {
	return &GormEarningAuditRepository{db: db}
}

// WithTx 绑定事务
func (r *GormEarningAuditRepository) WithTx(tx *gorm.DB) EarningAuditRepository {
	if tx == nil {
		return r
	}
	return &GormEarningAuditRepository{db: tx}
}

// Create 写入审计日志
func (r *GormEarningAuditRepository) Create(log *models.PartnerEarningAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// ListByEarning 按时间升序获取佣金的审计日志
func (r *GormEarningAuditRepository) ListByEarning(partnerID, earningID uint) ([]models.PartnerEarningAuditLog, error) {
	var logs []models.PartnerEarningAuditLog
	if err := r.db.
		Where("partner_id = ? AND earning_id = ?", partnerID, earningID).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// LatestByAction 获取佣金某操作的最近一条审计日志，不存在时返回 nil
func (r *GormEarningAuditRepository) LatestByAction(partnerID, earningID uint, action string) (*models.PartnerEarningAuditLog, error) {
	var logs []models.PartnerEarningAuditLog
	if err := r.db.
		Where("partner_id = ? AND earning_id = ? AND action = ?", partnerID, earningID, action).
		Order("id DESC").
		Limit(1).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return &logs[0], nil
}
