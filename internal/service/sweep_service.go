package service

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerpay-next/internal/cache"
	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/ledger"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/queue"
	"github.com/ledgerpay-next/internal/repository"

	"github.com/shopspring/decimal"
)

// LedgerClient 账本查询客户端抽象
type LedgerClient interface {
	FindTransfersTo(ctx context.Context, address, network string, since time.Time) ([]ledger.Transfer, error)
}

// SweepResult 单个意图的清算结果
type SweepResult struct {
	IntentID string
	Outcome  string
	Err      error
}

// SweepService 对账清算服务。
// 任意数量的调用方（定时器、前端轮询、手动触发）可以并发、重复地对
// 同一意图发起清算；正确性只依赖意图仓库的状态条件写。
type SweepService struct {
	intentRepo   repository.IntentRepository
	ledgerClient LedgerClient
	queueClient  *queue.Client
	lookback     time.Duration
	concurrency  int
	now          func() time.Time
}

// NewSweepService 创建清算服务
func NewSweepService(intentRepo repository.IntentRepository, ledgerClient LedgerClient, queueClient *queue.Client, lookback time.Duration, concurrency int) *SweepService {
	if lookback <= 0 {
		lookback = constants.DefaultLookbackMinutes * time.Minute
	}
	if concurrency <= 0 {
		concurrency = constants.DefaultSweepConcurrency
	}
	return &SweepService{
		intentRepo:   intentRepo,
		ledgerClient: ledgerClient,
		queueClient:  queueClient,
		lookback:     lookback,
		concurrency:  concurrency,
		now:          time.Now,
	}
}

// SweepOne 对单个意图执行一次清算：过期检查 → 账本查询 → 匹配 → 累计 →
// 确认/部分到账/继续等待。账本不可用与条件写落空都是软条件，不返回错误。
func (s *SweepService) SweepOne(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	if intent == nil {
		return constants.SweepOutcomeNoNewTransfers, nil
	}
	now := s.now()

	// 过期优先：即使本轮查询里有匹配转账，过了截止时间也一律失败
	if intent.Expired(now) {
		applied, err := s.intentRepo.UpdateIfStatus(intent.ID, constants.IntentStatusPending, map[string]interface{}{
			"status":         constants.IntentStatusFailed,
			"failure_reason": constants.FailureReasonTimeout,
		})
		if err != nil {
			return "", err
		}
		if applied {
			s.invalidateStatusCache(ctx, intent.ID)
			logger.Infow("sweep_intent_expired",
				"intent_id", intent.ID,
				"expires_at", intent.ExpiresAt,
			)
		}
		return constants.SweepOutcomeExpired, nil
	}

	since := intent.CreatedAt.Add(-s.lookback)
	raw, err := s.ledgerClient.FindTransfersTo(ctx, intent.RecipientAddress, intent.Network, since)
	if err != nil {
		// 索引服务不可用等同于"本轮没查到"，留待下次清算重试
		logger.Warnw("sweep_ledger_query_failed",
			"intent_id", intent.ID,
			"network", intent.Network,
			"error", err,
		)
		return constants.SweepOutcomeNoNewTransfers, nil
	}

	matched := MatchTransfers(raw, intent.CorrelationCode, since, intent.PartialTransfers.Hashes())
	if len(matched) == 0 {
		return constants.SweepOutcomeNoNewTransfers, nil
	}

	combined := append(models.TransferList{}, intent.PartialTransfers...)
	combined = append(combined, matched...)
	total := combined.Total()

	if total.GreaterThanOrEqual(intent.ExpectedAmount.Decimal) {
		return s.confirm(ctx, intent, combined, matched, total)
	}

	if err := s.intentRepo.UpdateProgress(intent.ID, combined, models.NewMoneyFromDecimal(total)); err != nil {
		return "", err
	}
	logger.Infow("sweep_partial_payment",
		"intent_id", intent.ID,
		"total_received", total.String(),
		"expected", intent.ExpectedAmount.String(),
		"new_transfers", len(matched),
	)
	return constants.SweepOutcomePartial, nil
}

// confirm 应用确认转换并触发结算后副作用
func (s *SweepService) confirm(ctx context.Context, intent *models.PaymentIntent, combined, matched models.TransferList, total decimal.Decimal) (string, error) {
	settling := latestTransfer(matched)
	overpayment := total.Sub(intent.ExpectedAmount.Decimal)
	if overpayment.IsNegative() {
		overpayment = decimal.Zero
	}

	applied, err := s.intentRepo.UpdateIfStatus(intent.ID, constants.IntentStatusPending, map[string]interface{}{
		"status":            constants.IntentStatusConfirmed,
		"total_received":    models.NewMoneyFromDecimal(total),
		"overpayment":       models.NewMoneyFromDecimal(overpayment),
		"partial_transfers": combined,
		"settlement_hash":   settling.Hash,
		"settlement_sender": settling.Sender,
		"settlement_height": settling.BlockHeight,
		"settlement_time":   settling.Timestamp,
	})
	if err != nil {
		return "", err
	}
	if !applied {
		// 另一次清算抢先完成了转换，对调用方而言等同成功
		logger.Debugw("sweep_confirm_conflict", "intent_id", intent.ID)
		return constants.SweepOutcomeConfirmed, nil
	}

	s.invalidateStatusCache(ctx, intent.ID)
	s.enqueueSettlementEffects(intent, settling)
	logger.Infow("sweep_intent_confirmed",
		"intent_id", intent.ID,
		"settlement_hash", settling.Hash,
		"total_received", total.String(),
		"overpayment", overpayment.String(),
	)
	return constants.SweepOutcomeConfirmed, nil
}

// enqueueSettlementEffects 投递结算后副作用（尽力而为，失败只记日志，不回滚确认）
func (s *SweepService) enqueueSettlementEffects(intent *models.PaymentIntent, settling models.Transfer) {
	if err := s.queueClient.EnqueuePaylinkUsageIncrement(queue.PaylinkUsageIncrementPayload{
		PaylinkID:      intent.PaylinkID,
		SettlementHash: settling.Hash,
	}); err != nil {
		logger.Warnw("sweep_enqueue_usage_increment_failed", "intent_id", intent.ID, "error", err)
	}
	if err := s.queueClient.EnqueuePaymentCompletedEvent(queue.PaymentCompletedEventPayload{
		IntentID:      intent.ID,
		EventType:     constants.EventTypePaymentCompleted,
		PaymentMethod: constants.PaymentMethodLedgerTransfer,
	}); err != nil {
		logger.Warnw("sweep_enqueue_completed_event_failed", "intent_id", intent.ID, "error", err)
	}
	if err := s.queueClient.EnqueueLedgerAcknowledge(queue.LedgerAcknowledgePayload{
		IntentID:     intent.ID,
		PayerAddress: settling.Sender,
		ProductID:    intent.ProductID,
		Network:      intent.Network,
	}); err != nil {
		logger.Warnw("sweep_enqueue_ledger_ack_failed", "intent_id", intent.ID, "error", err)
	}
}

// SweepAll 对一组意图独立执行清算，带并发上限；
// 单个意图的失败只记录在对应结果里，不中断其他意图。
func (s *SweepService) SweepAll(ctx context.Context, intents []models.PaymentIntent) []SweepResult {
	results := make([]SweepResult, len(intents))
	if len(intents) == 0 {
		return results
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i := range intents {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			intent := intents[idx]
			outcome, err := s.SweepOne(ctx, &intent)
			if err != nil {
				logger.Warnw("sweep_intent_failed", "intent_id", intent.ID, "error", err)
			}
			results[idx] = SweepResult{IntentID: intent.ID, Outcome: outcome, Err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// SweepPending 清算所有待结算意图
func (s *SweepService) SweepPending(ctx context.Context) ([]SweepResult, error) {
	intents, err := s.intentRepo.ListPendingWithExpiry()
	if err != nil {
		return nil, err
	}
	return s.SweepAll(ctx, intents), nil
}

func (s *SweepService) invalidateStatusCache(ctx context.Context, intentID string) {
	if err := cache.Del(ctx, intentStatusCacheKey(intentID)); err != nil {
		logger.Debugw("sweep_status_cache_invalidate_failed", "intent_id", intentID, "error", err)
	}
}

// latestTransfer 返回时间上最晚的新转账（完成结算的那一笔）
func latestTransfer(transfers models.TransferList) models.Transfer {
	latest := transfers[0]
	for _, t := range transfers[1:] {
		if t.Timestamp.After(latest.Timestamp) {
			latest = t
		}
	}
	return latest
}
