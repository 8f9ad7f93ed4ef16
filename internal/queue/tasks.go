package queue

import (
	"encoding/json"
	"time"

	"github.com/mis-sentinel/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskEarningStatusChanged 佣金状态变更事件
	TaskEarningStatusChanged = constants.TaskEarningStatusChanged
	// TaskPaymentRecorded 客户付款记录事件
	TaskPaymentRecorded = constants.TaskPaymentRecorded
)

// EarningStatusChangedPayload 佣金状态变更任务载荷
type EarningStatusChangedPayload struct {
	EventID    string    `json:"event_id"`
	PartnerID  uint      `json:"partner_id"`
	EarningIDs []uint    `json:"earning_ids"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Amount     string    `json:"amount"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentRecordedPayload 客户付款任务载荷
type PaymentRecordedPayload struct {
	EventID          string    `json:"event_id"`
	PartnerID        uint      `json:"partner_id"`
	ClientID         uint      `json:"client_id"`
	EarningID        uint      `json:"earning_id,omitempty"`
	Amount           string    `json:"amount"`
	CommissionAmount string    `json:"commission_amount"`
	Activated        bool      `json:"activated"`
	RequestID        string    `json:"request_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewEarningStatusChangedTask 创建佣金状态变更任务
func NewEarningStatusChangedTask(payload EarningStatusChangedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEarningStatusChanged, body), nil
}

// NewPaymentRecordedTask 创建客户付款任务
func NewPaymentRecordedTask(payload PaymentRecordedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentRecorded, body), nil
}
