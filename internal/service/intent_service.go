package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ledgerpay-next/internal/cache"
	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrMerchantNotFound     = errors.New("merchant not found")
	ErrPaylinkNotFound      = errors.New("paylink not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrIntentNotFound       = errors.New("payment intent not found")
	ErrIntentInvalid        = errors.New("payment intent invalid")
	ErrIntentCreateFailed   = errors.New("payment intent create failed")
	ErrIntentAlreadySettled = errors.New("payment intent already settled")
)

// IntentService 支付意图服务
type IntentService struct {
	merchantRepo repository.MerchantRepository
	paylinkRepo  repository.PaylinkRepository
	productRepo  repository.ProductRepository
	intentRepo   repository.IntentRepository
	codeGen      *CodeGenerator
	codePolicy   RetryPolicy
	expireIn     time.Duration
	statusTTL    time.Duration
}

// NewIntentService 创建支付意图服务
func NewIntentService(merchantRepo repository.MerchantRepository, paylinkRepo repository.PaylinkRepository, productRepo repository.ProductRepository, intentRepo repository.IntentRepository, codeGen *CodeGenerator, codePolicy RetryPolicy, expireIn, statusTTL time.Duration) *IntentService {
	if expireIn <= 0 {
		expireIn = constants.DefaultIntentExpireMinutes * time.Minute
	}
	return &IntentService{
		merchantRepo: merchantRepo,
		paylinkRepo:  paylinkRepo,
		productRepo:  productRepo,
		intentRepo:   intentRepo,
		codeGen:      codeGen,
		codePolicy:   codePolicy,
		expireIn:     expireIn,
		statusTTL:    statusTTL,
	}
}

// CreateIntentInput 创建支付意图请求
type CreateIntentInput struct {
	PaylinkID uint
	Amount    models.Money // 可选：为空时使用商品标价
}

// CreateIntent 创建支付意图。
// 引用校验失败（商户/链接/商品不存在）与关联码分配失败都是创建期硬错误，
// 同步返回给调用方；意图不会被创建。
func (s *IntentService) CreateIntent(input CreateIntentInput) (*models.PaymentIntent, error) {
	if input.PaylinkID == 0 {
		return nil, ErrIntentInvalid
	}
	paylink, err := s.paylinkRepo.GetByID(input.PaylinkID)
	if err != nil {
		return nil, ErrIntentCreateFailed
	}
	if paylink == nil {
		return nil, ErrPaylinkNotFound
	}
	merchant, err := s.merchantRepo.GetByID(paylink.MerchantID)
	if err != nil {
		return nil, ErrIntentCreateFailed
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	product, err := s.productRepo.GetByID(paylink.ProductID)
	if err != nil {
		return nil, ErrIntentCreateFailed
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	expected := input.Amount
	if expected.Decimal.IsZero() {
		expected = product.Price
	}
	if !expected.Decimal.IsPositive() {
		return nil, ErrIntentInvalid
	}

	code, err := s.codeGen.AssignUnique(s.intentRepo, s.codePolicy)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	intent := &models.PaymentIntent{
		ID:               uuid.NewString(),
		MerchantID:       paylink.MerchantID,
		PaylinkID:        paylink.ID,
		ProductID:        paylink.ProductID,
		RecipientAddress: paylink.RecipientAddress,
		Network:          paylink.Network,
		ExpectedAmount:   expected,
		CorrelationCode:  code,
		Status:           constants.IntentStatusPending,
		PartialTransfers: models.TransferList{},
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(s.expireIn),
	}
	if err := s.intentRepo.Create(intent); err != nil {
		logger.Errorw("intent_create_failed", "paylink_id", input.PaylinkID, "error", err)
		return nil, ErrIntentCreateFailed
	}
	logger.Infow("intent_created",
		"intent_id", intent.ID,
		"paylink_id", intent.PaylinkID,
		"correlation_code", intent.CorrelationCode,
		"expected_amount", intent.ExpectedAmount.String(),
		"expires_at", intent.ExpiresAt,
	)
	return intent, nil
}

// GetIntent 获取支付意图
func (s *IntentService) GetIntent(id string) (*models.PaymentIntent, error) {
	intent, err := s.intentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

// CancelIntent 买家主动取消：仅当意图仍为待结算时删除。
// 若并发清算已抢先确认，删除会落空，此时必须报告"已结算"而不是静默成功。
func (s *IntentService) CancelIntent(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrIntentInvalid
	}
	deleted, err := s.intentRepo.DeleteIfPending(id)
	if err != nil {
		return err
	}
	if deleted {
		logger.Infow("intent_canceled", "intent_id", id)
		return nil
	}
	intent, err := s.intentRepo.GetByID(id)
	if err != nil {
		return err
	}
	if intent == nil {
		return ErrIntentNotFound
	}
	return ErrIntentAlreadySettled
}

// StatusProjection 意图状态只读投影
type StatusProjection struct {
	Status           string              `json:"status"`
	SettlementHash   string              `json:"settlement_hash,omitempty"`
	TotalReceived    models.Money        `json:"total_received"`
	Overpayment      models.Money        `json:"overpayment"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	PartialTransfers models.TransferList `json:"partial_transfers"`
	ExpiresAt        time.Time           `json:"expires_at"`
}

// GetStatus 查询意图当前状态。纯读操作，永远反映意图仓库的最新行。
// 终态（confirmed/failed）不会再变化，可安全地短时缓存以吸收前端轮询。
func (s *IntentService) GetStatus(ctx context.Context, id string) (*StatusProjection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrIntentInvalid
	}

	var cached StatusProjection
	if hit, err := cache.GetJSON(ctx, intentStatusCacheKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	intent, err := s.intentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}

	projection := &StatusProjection{
		Status:           intent.Status,
		SettlementHash:   intent.SettlementHash,
		TotalReceived:    intent.TotalReceived,
		Overpayment:      intent.Overpayment,
		FailureReason:    intent.FailureReason,
		PartialTransfers: intent.PartialTransfers,
		ExpiresAt:        intent.ExpiresAt,
	}
	if intent.Status != constants.IntentStatusPending && s.statusTTL > 0 {
		if err := cache.SetJSON(ctx, intentStatusCacheKey(id), projection, s.statusTTL); err != nil {
			logger.Debugw("intent_status_cache_set_failed", "intent_id", id, "error", err)
		}
	}
	return projection, nil
}

func intentStatusCacheKey(intentID string) string {
	return "intent:status:" + intentID
}
