package models

import "time"

// Partner 合作伙伴（推广/代理/分销/白标）
type Partner struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                               // 主键
	Name            string    `gorm:"type:varchar(200);not null" json:"name"`                             // 名称
	Email           string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`                // 邮箱（小写唯一）
	Phone           string    `gorm:"type:varchar(50)" json:"phone"`                                      // 电话
	CompanyName     string    `gorm:"type:varchar(200)" json:"company_name"`                              // 公司名称
	Status          string    `gorm:"type:varchar(20);not null;index" json:"status"`                      // 状态
	PartnerType     string    `gorm:"type:varchar(20);not null;index" json:"partner_type"`                // 伙伴类型
	CommissionRate  Money     `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`       // 佣金比例或固定金额
	CommissionType  string    `gorm:"type:varchar(20);not null;default:'percentage'" json:"commission_type"` // 佣金计算方式
	ParentPartnerID *uint     `gorm:"index" json:"parent_partner_id,omitempty"`                           // 上级伙伴
	Address         JSON      `gorm:"type:json" json:"address,omitempty"`                                 // 地址
	BankInfo        JSON      `gorm:"type:json" json:"bank_info,omitempty"`                               // 收款信息
	Metadata        JSON      `gorm:"type:json" json:"metadata,omitempty"`                                // 扩展信息
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`                                            // 更新时间
}

// TableName 指定表名
func (Partner) TableName() string {
	return "partners"
}
