package models

import "time"

// PartnerClient 合作伙伴推荐的客户
type PartnerClient struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                                                           // 主键
	PartnerID          uint       `gorm:"not null;index;uniqueIndex:idx_partner_client_email" json:"partner_id"`          // 所属伙伴
	ClientName         string     `gorm:"type:varchar(200);not null" json:"client_name"`                                  // 客户名称
	ClientEmail        string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_partner_client_email" json:"client_email"` // 客户邮箱
	ClientPhone        string     `gorm:"type:varchar(50)" json:"client_phone"`                                           // 客户电话
	CompanyName        string     `gorm:"type:varchar(200)" json:"company_name"`                                          // 公司名称
	SubscriptionPlan   string     `gorm:"type:varchar(100)" json:"subscription_plan"`                                     // 订阅套餐
	SubscriptionValue  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subscription_value"`                // 订阅金额
	SubscriptionStatus string     `gorm:"type:varchar(20);not null;index" json:"subscription_status"`                     // 订阅状态
	TotalPaid          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_paid"`                        // 累计付款
	FirstPaymentDate   *time.Time `json:"first_payment_date,omitempty"`                                                   // 首次付款时间
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`                                                    // 最近付款时间
	Metadata           JSON       `gorm:"type:json" json:"metadata,omitempty"`                                            // 扩展信息
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                                                        // 创建时间
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`                                                        // 更新时间
}

// TableName 指定表名
func (PartnerClient) TableName() string {
	return "partner_clients"
}
