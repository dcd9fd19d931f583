package queue

import (
	"encoding/json"

	"github.com/ledgerpay-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentCompletedEvent 结算完成分析事件任务
	TaskPaymentCompletedEvent = constants.TaskPaymentCompletedEvent
	// TaskPaylinkUsageIncrement 收款链接使用计数任务
	TaskPaylinkUsageIncrement = constants.TaskPaylinkUsageIncrement
	// TaskLedgerAcknowledge 链上确认回执任务
	TaskLedgerAcknowledge = constants.TaskLedgerAcknowledge
)

// PaymentCompletedEventPayload 分析事件任务载荷
type PaymentCompletedEventPayload struct {
	IntentID      string `json:"intent_id"`
	EventType     string `json:"event_type"`
	PaymentMethod string `json:"payment_method"`
}

// PaylinkUsageIncrementPayload 使用计数任务载荷
type PaylinkUsageIncrementPayload struct {
	PaylinkID      uint   `json:"paylink_id"`
	SettlementHash string `json:"settlement_hash"`
}

// LedgerAcknowledgePayload 链上回执任务载荷
type LedgerAcknowledgePayload struct {
	IntentID     string `json:"intent_id"`
	PayerAddress string `json:"payer_address"`
	ProductID    uint   `json:"product_id"`
	Network      string `json:"network"`
}

// NewPaymentCompletedEventTask 创建分析事件任务
func NewPaymentCompletedEventTask(payload PaymentCompletedEventPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentCompletedEvent, body), nil
}

// NewPaylinkUsageIncrementTask 创建使用计数任务
func NewPaylinkUsageIncrementTask(payload PaylinkUsageIncrementPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaylinkUsageIncrement, body), nil
}

// NewLedgerAcknowledgeTask 创建链上回执任务
func NewLedgerAcknowledgeTask(payload LedgerAcknowledgePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerAcknowledge, body), nil
}
