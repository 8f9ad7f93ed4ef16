package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartnerClientRepository 推荐客户数据访问接口
type PartnerClientRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PartnerClientRepository

	GetByPartnerAndID(partnerID, id uint) (*models.PartnerClient, error)
	GetByPartnerAndEmail(partnerID uint, email string) (*models.PartnerClient, error)
	Create(client *models.PartnerClient) error
	Update(client *models.PartnerClient) error
	ApplyPayment(partnerID, id uint, amount decimal.Decimal, paidAt, updatedAt time.Time) (int64, error)
	Delete(partnerID, id uint) error
	List(filter PartnerClientListFilter) ([]models.PartnerClient, int64, error)
	CountByPartner(partnerID uint, statuses []string) (int64, error)
}

// GormPartnerClientRepository GORM 推荐客户仓储
type GormPartnerClientRepository struct {
	db *gorm.DB
}

// NewPartnerClientRepository 创建推荐客户仓储
func NewPartnerClientRepository(db *gorm.DB) *GormPartnerClientRepository {
	return &GormPartnerClientRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPartnerClientRepository) WithTx(tx *gorm.DB) PartnerClientRepository {
	if tx == nil {
		return r
	}
	return &GormPartnerClientRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPartnerClientRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByPartnerAndID 获取属于指定伙伴的客户，不存在或不属于该伙伴返回 nil
func (r *GormPartnerClientRepository) GetByPartnerAndID(partnerID, id uint) (*models.PartnerClient, error) {
	if partnerID == 0 || id == 0 {
		return nil, nil
	}
	var client models.PartnerClient
	if err := r.db.Where("id = ? AND partner_id = ?", id, partnerID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// GetByPartnerAndEmail 按伙伴与邮箱获取客户
func (r *GormPartnerClientRepository) GetByPartnerAndEmail(partnerID uint, email string) (*models.PartnerClient, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if partnerID == 0 || email == "" {
		return nil, nil
	}
	var client models.PartnerClient
	if err := r.db.Where("partner_id = ? AND client_email = ?", partnerID, email).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// Create 创建客户
func (r *GormPartnerClientRepository) Create(client *models.PartnerClient) error {
	return r.db.Create(client).Error
}

// Update 更新客户
func (r *GormPartnerClientRepository) Update(client *models.PartnerClient) error {
	return r.db.Save(client).Error
}

// ApplyPayment 原子累加客户付款并刷新付款时间与订阅状态
// 首次付款时间只在为空时写入，待激活客户转为激活。
// paidAt 为业务付款日期（可回填），updatedAt 为写入时刻。
func (r *GormPartnerClientRepository) ApplyPayment(partnerID, id uint, amount decimal.Decimal, paidAt, updatedAt time.Time) (int64, error) {
	if partnerID == 0 || id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.PartnerClient{}).
		Where("id = ? AND partner_id = ?", id, partnerID).
		Updates(map[string]interface{}{
			"total_paid":         gorm.Expr("total_paid + ?", models.NewMoneyFromDecimal(amount)),
			"last_payment_date":  paidAt,
			"first_payment_date": gorm.Expr("COALESCE(first_payment_date, ?)", paidAt),
			"subscription_status": gorm.Expr(
				"CASE WHEN subscription_status = ? THEN ? ELSE subscription_status END",
				constants.ClientStatusPending, constants.ClientStatusActive,
			),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Delete 删除客户
func (r *GormPartnerClientRepository) Delete(partnerID, id uint) error {
	return r.db.Where("id = ? AND partner_id = ?", id, partnerID).Delete(&models.PartnerClient{}).Error
}

// List 客户列表
func (r *GormPartnerClientRepository) List(filter PartnerClientListFilter) ([]models.PartnerClient, int64, error) {
	query := r.db.Model(&models.PartnerClient{}).Where("partner_id = ?", filter.PartnerID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("subscription_status = ?", status)
	}
	if condition, args := buildKeywordCondition(r.db, []string{"client_name", "client_email", "company_name"}, filter.Keyword); condition != "" {
		query = query.Where(condition, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var clients []models.PartnerClient
	if err := query.Order("created_at DESC, id DESC").Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// CountByPartner 统计伙伴名下客户数，statuses 为空时统计全部
func (r *GormPartnerClientRepository) CountByPartner(partnerID uint, statuses []string) (int64, error) {
	if partnerID == 0 {
		return 0, nil
	}
	query := r.db.Model(&models.PartnerClient{}).Where("partner_id = ?", partnerID)
	if len(statuses) > 0 {
		query = query.Where("subscription_status IN ?", statuses)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
