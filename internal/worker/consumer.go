package worker

import (
	"context"
	"encoding/json"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/ledger"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/provider"
	"github.com/ledgerpay-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentCompletedEvent, c.handlePaymentCompletedEvent)
	mux.HandleFunc(queue.TaskPaylinkUsageIncrement, c.handlePaylinkUsageIncrement)
	mux.HandleFunc(queue.TaskLedgerAcknowledge, c.handleLedgerAcknowledge)
}

func (c *Consumer) handlePaymentCompletedEvent(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PaymentCompletedEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_completed_event_unmarshal_failed", "error", err)
		return err
	}
	if payload.IntentID == "" {
		logger.Debugw("worker_completed_event_skip_invalid_payload")
		return nil
	}
	eventType := payload.EventType
	if eventType == "" {
		eventType = constants.EventTypePaymentCompleted
	}
	event := &models.AnalyticsEvent{
		IntentID:      payload.IntentID,
		EventType:     eventType,
		PaymentMethod: payload.PaymentMethod,
	}
	if err := c.AnalyticsEventRepo.Create(event); err != nil {
		logger.Warnw("worker_completed_event_insert_failed", "intent_id", payload.IntentID, "error", err)
		return err
	}
	logger.Debugw("worker_completed_event_recorded", "intent_id", payload.IntentID, "event_type", eventType)
	return nil
}

func (c *Consumer) handlePaylinkUsageIncrement(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PaylinkUsageIncrementPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_usage_increment_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaylinkID == 0 || payload.SettlementHash == "" {
		logger.Debugw("worker_usage_increment_skip_invalid_payload", "paylink_id", payload.PaylinkID)
		return nil
	}
	counted, err := c.PaylinkRepo.IncrementUsage(payload.PaylinkID, payload.SettlementHash)
	if err != nil {
		logger.Warnw("worker_usage_increment_failed",
			"paylink_id", payload.PaylinkID,
			"settlement_hash", payload.SettlementHash,
			"error", err,
		)
		return err
	}
	if !counted {
		// 同一笔结算重复投递时直接跳过
		logger.Debugw("worker_usage_increment_already_counted",
			"paylink_id", payload.PaylinkID,
			"settlement_hash", payload.SettlementHash,
		)
	}
	return nil
}

func (c *Consumer) handleLedgerAcknowledge(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.LedgerAcknowledgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_ledger_ack_unmarshal_failed", "error", err)
		return err
	}
	if payload.IntentID == "" {
		return nil
	}
	if c.LedgerWriter == nil {
		logger.Debugw("worker_ledger_ack_skip_writer_nil", "intent_id", payload.IntentID)
		return nil
	}
	// 链上回执是尽力而为的副作用：失败只记日志，不重试整个结算
	if err := c.LedgerWriter.AcknowledgePayment(ctx, ledger.AcknowledgeInput{
		IntentID:     payload.IntentID,
		PayerAddress: payload.PayerAddress,
		ProductID:    payload.ProductID,
		Network:      payload.Network,
	}); err != nil {
		logger.Warnw("worker_ledger_ack_failed", "intent_id", payload.IntentID, "error", err)
	}
	return nil
}
