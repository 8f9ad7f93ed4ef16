package repository

import (
	"errors"
	"time"

	"github.com/mis-sentinel/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var earningSortColumns = map[string]string{
	"created_at":   "created_at",
	"amount":       "amount",
	"status":       "status",
	"payment_date": "payment_date",
	"paid_date":    "paid_date",
}

// PartnerEarningRepository 佣金收益数据访问接口
type PartnerEarningRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PartnerEarningRepository

	Create(earning *models.PartnerEarning) error
	GetByPartnerAndID(partnerID, id uint) (*models.PartnerEarning, error)
	ListByPartnerAndIDs(partnerID uint, ids []uint) ([]models.PartnerEarning, error)
	TransitionStatus(partnerID, id uint, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error)
	List(filter PartnerEarningListFilter) ([]models.PartnerEarning, int64, error)
	AggregateByStatus(filter PartnerEarningListFilter) ([]EarningStatusAggregate, error)
	ListByCreatedRange(partnerID uint, startAt, endAt time.Time) ([]models.PartnerEarning, error)
	CountByPartner(partnerID uint) (int64, error)
	CountByClient(partnerID, clientID uint) (int64, error)
}

// GormPartnerEarningRepository GORM 佣金收益仓储
type GormPartnerEarningRepository struct {
	db *gorm.DB
}

// NewPartnerEarningRepository 创建佣金收益仓储
func NewPartnerEarningRepository(db *gorm.DB) *GormPartnerEarningRepository {
	return &GormPartnerEarningRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPartnerEarningRepository) WithTx(tx *gorm.DB) PartnerEarningRepository {
	if tx == nil {
		return r
	}
	return &GormPartnerEarningRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPartnerEarningRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金记录
func (r *GormPartnerEarningRepository) Create(earning *models.PartnerEarning) error {
	return r.db.Create(earning).Error
}

// GetByPartnerAndID 获取属于指定伙伴的佣金记录
func (r *GormPartnerEarningRepository) GetByPartnerAndID(partnerID, id uint) (*models.PartnerEarning, error) {
	if partnerID == 0 || id == 0 {
		return nil, nil
	}
	var earning models.PartnerEarning
	if err := r.db.Where("id = ? AND partner_id = ?", id, partnerID).First(&earning).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &earning, nil
}

// ListByPartnerAndIDs 批量获取属于指定伙伴的佣金记录
func (r *GormPartnerEarningRepository) ListByPartnerAndIDs(partnerID uint, ids []uint) ([]models.PartnerEarning, error) {
	if partnerID == 0 || len(ids) == 0 {
		return []models.PartnerEarning{}, nil
	}
	var earnings []models.PartnerEarning
	if err := r.db.Where("partner_id = ? AND id IN ?", partnerID, ids).Order("id ASC").Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

// TransitionStatus 以状态为条件更新佣金记录（比较并交换）
// 返回 false 表示记录不存在、不属于该伙伴或当前状态不在 fromStatuses 中。
func (r *GormPartnerEarningRepository) TransitionStatus(partnerID, id uint, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error) {
	if partnerID == 0 || id == 0 || len(fromStatuses) == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+1)
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = toStatus
	result := r.db.Model(&models.PartnerEarning{}).
		Where("id = ? AND partner_id = ? AND status IN ?", id, partnerID, fromStatuses).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormPartnerEarningRepository) filteredQuery(filter PartnerEarningListFilter) *gorm.DB {
	query := r.db.Model(&models.PartnerEarning{}).Where("partner_id = ?", filter.PartnerID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", filter.CreatedTo.UTC())
	}
	return query
}

// List 佣金收益列表
func (r *GormPartnerEarningRepository) List(filter PartnerEarningListFilter) ([]models.PartnerEarning, int64, error) {
	query := r.filteredQuery(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	orderBy := resolveOrderBy(filter.SortBy, filter.SortOrder, earningSortColumns, "created_at desc, id desc")

	var earnings []models.PartnerEarning
	if err := query.Preload("Client").Order(orderBy).Find(&earnings).Error; err != nil {
		return nil, 0, err
	}
	return earnings, total, nil
}

// AggregateByStatus 按状态汇总金额与笔数，忽略分页与排序
func (r *GormPartnerEarningRepository) AggregateByStatus(filter PartnerEarningListFilter) ([]EarningStatusAggregate, error) {
	type aggregateRow struct {
		Status string
		Count  int64
		Amount decimal.Decimal
	}
	var rows []aggregateRow
	if err := r.filteredQuery(filter).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]EarningStatusAggregate, 0, len(rows))
	for _, row := range rows {
		result = append(result, EarningStatusAggregate{
			Status: row.Status,
			Count:  row.Count,
			Amount: row.Amount.Round(2),
		})
	}
	return result, nil
}

// ListByCreatedRange 按创建时间区间 [startAt, endAt) 升序获取佣金记录
func (r *GormPartnerEarningRepository) ListByCreatedRange(partnerID uint, startAt, endAt time.Time) ([]models.PartnerEarning, error) {
	var earnings []models.PartnerEarning
	if err := r.db.
		Where("partner_id = ? AND created_at >= ? AND created_at < ?", partnerID, startAt.UTC(), endAt.UTC()).
		Order("created_at ASC, id ASC").
		Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

// CountByPartner 统计伙伴佣金记录数
func (r *GormPartnerEarningRepository) CountByPartner(partnerID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.PartnerEarning{}).Where("partner_id = ?", partnerID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByClient 统计客户关联的佣金记录数
func (r *GormPartnerEarningRepository) CountByClient(partnerID, clientID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.PartnerEarning{}).
		Where("partner_id = ? AND client_id = ?", partnerID, clientID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
