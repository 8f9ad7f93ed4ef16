package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartnerListFilter 查询合作伙伴列表的过滤条件
type PartnerListFilter struct {
	Page            int
	PageSize        int
	Status          string
	PartnerType     string
	ParentPartnerID *uint
	Keyword         string
}

// PartnerClientListFilter 查询推荐客户列表的过滤条件
type PartnerClientListFilter struct {
	Page      int
	PageSize  int
	PartnerID uint
	Status    string
	Keyword   string
}

// PartnerEarningListFilter 查询佣金收益列表的过滤条件
// CreatedTo 为开区间上界。
type PartnerEarningListFilter struct {
	Page        int
	PageSize    int
	PartnerID   uint
	Statuses    []string
	ClientID    *uint
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortOrder   string
}

// EarningStatusAggregate 按状态聚合的佣金统计
type EarningStatusAggregate struct {
	Status string
	Count  int64
	Amount decimal.Decimal
}
