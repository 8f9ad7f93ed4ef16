package models

import "time"

// PartnerEarning 合作伙伴佣金收益记录
// 说明：Amount 创建后不可修改，更正通过取消或新增记录完成。
type PartnerEarning struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                        // 主键
	PartnerID        uint       `gorm:"not null;index" json:"partner_id"`                            // 所属伙伴
	ClientID         *uint      `gorm:"index" json:"client_id,omitempty"`                            // 来源客户
	Amount           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`         // 佣金金额
	OriginalAmount   *Money     `gorm:"type:decimal(20,2)" json:"original_amount,omitempty"`         // 来源付款金额
	CommissionRate   Money      `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"` // 佣金比例快照
	CommissionType   string     `gorm:"type:varchar(20);not null" json:"commission_type"`            // 佣金方式快照
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`               // 状态
	Description      string     `gorm:"type:varchar(500)" json:"description"`                        // 描述
	PaymentDate      *time.Time `gorm:"index" json:"payment_date,omitempty"`                         // 来源付款时间
	PaidDate         *time.Time `json:"paid_date,omitempty"`                                         // 佣金发放时间
	PaymentMethod    string     `gorm:"type:varchar(50)" json:"payment_method"`                      // 发放方式
	PaymentReference string     `gorm:"type:varchar(255)" json:"payment_reference"`                  // 发放凭证
	Metadata         JSON       `gorm:"type:json" json:"metadata,omitempty"`                         // 扩展信息
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                     // 更新时间

	Client *PartnerClient `gorm:"foreignKey:ClientID" json:"client,omitempty"` // 来源客户
}

// TableName 指定表名
func (PartnerEarning) TableName() string {
	return "partner_earnings"
}
