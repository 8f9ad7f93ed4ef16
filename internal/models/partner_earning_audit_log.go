package models

import "time"

// PartnerEarningAuditLog 佣金状态变更审计日志
// 说明：只追加不修改，每次创建或状态流转写入一行。
type PartnerEarningAuditLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	EarningID  uint      `gorm:"index;not null" json:"earning_id"`
	PartnerID  uint      `gorm:"index;not null" json:"partner_id"`
	Action     string    `gorm:"type:varchar(32);index;not null" json:"action"`
	FromStatus string    `gorm:"type:varchar(20);not null;default:''" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Reason     string    `gorm:"type:varchar(500);not null;default:''" json:"reason"`
	Operator   string    `gorm:"type:varchar(100);not null;default:''" json:"operator"`
	RequestID  string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON JSON      `gorm:"type:json" json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (PartnerEarningAuditLog) TableName() string {
	return "partner_earning_audit_logs"
}
