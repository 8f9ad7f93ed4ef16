package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/models"

	"gorm.io/gorm"
)

// PartnerRepository 合作伙伴数据访问接口
type PartnerRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PartnerRepository

	GetByID(id uint) (*models.Partner, error)
	GetByEmail(email string) (*models.Partner, error)
	Create(partner *models.Partner) error
	Update(partner *models.Partner) error
	UpdateStatus(id uint, status string, updatedAt time.Time) (int64, error)
	BatchUpdateStatus(ids []uint, status string, updatedAt time.Time) (int64, error)
	Delete(id uint) error
	List(filter PartnerListFilter) ([]models.Partner, int64, error)
	ListChildren(parentID uint) ([]models.Partner, error)
	CountChildren(parentID uint) (int64, error)
}

// GormPartnerRepository GORM 合作伙伴仓储
type GormPartnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository 创建合作伙伴仓储
func NewPartnerRepository(db *gorm.DB) *GormPartnerRepository {
	return &GormPartnerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPartnerRepository) WithTx(tx *gorm.DB) PartnerRepository {
	if tx == nil {
		return r
	}
	return &GormPartnerRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPartnerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取合作伙伴，不存在返回 nil
func (r *GormPartnerRepository) GetByID(id uint) (*models.Partner, error) {
	if id == 0 {
		return nil, nil
	}
	var partner models.Partner
	if err := r.db.First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// GetByEmail 按邮箱获取合作伙伴
func (r *GormPartnerRepository) GetByEmail(email string) (*models.Partner, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var partner models.Partner
	if err := r.db.Where("email = ?", email).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// Create 创建合作伙伴
func (r *GormPartnerRepository) Create(partner *models.Partner) error {
	return r.db.Create(partner).Error
}

// Update 更新合作伙伴
func (r *GormPartnerRepository) Update(partner *models.Partner) error {
	return r.db.Save(partner).Error
}

// UpdateStatus 更新合作伙伴状态
func (r *GormPartnerRepository) UpdateStatus(id uint, status string, updatedAt time.Time) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Partner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// BatchUpdateStatus 批量更新合作伙伴状态
func (r *GormPartnerRepository) BatchUpdateStatus(ids []uint, status string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Partner{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Delete 物理删除合作伙伴
func (r *GormPartnerRepository) Delete(id uint) error {
	return r.db.Delete(&models.Partner{}, id).Error
}

// List 合作伙伴列表
func (r *GormPartnerRepository) List(filter PartnerListFilter) ([]models.Partner, int64, error) {
	query := r.db.Model(&models.Partner{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if partnerType := strings.TrimSpace(filter.PartnerType); partnerType != "" {
		query = query.Where("partner_type = ?", partnerType)
	}
	if filter.ParentPartnerID != nil {
		query = query.Where("parent_partner_id = ?", *filter.ParentPartnerID)
	}
	if condition, args := buildKeywordCondition(r.db, []string{"name", "email", "company_name"}, filter.Keyword); condition != "" {
		query = query.Where(condition, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var partners []models.Partner
	if err := query.Order("created_at DESC, id DESC").Find(&partners).Error; err != nil {
		return nil, 0, err
	}
	return partners, total, nil
}

// ListChildren 获取直属下级合作伙伴
func (r *GormPartnerRepository) ListChildren(parentID uint) ([]models.Partner, error) {
	if parentID == 0 {
		return []models.Partner{}, nil
	}
	var partners []models.Partner
	if err := r.db.Where("parent_partner_id = ?", parentID).Order("id ASC").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// CountChildren 统计直属下级数量
func (r *GormPartnerRepository) CountChildren(parentID uint) (int64, error) {
	if parentID == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.Partner{}).Where("parent_partner_id = ?", parentID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
