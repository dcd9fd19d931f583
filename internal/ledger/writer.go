package ledger

import (
	"context"

	"github.com/ledgerpay-next/internal/logger"
)

// AcknowledgeInput 链上回执输入
type AcknowledgeInput struct {
	IntentID     string
	PayerAddress string
	ProductID    uint
	Network      string
}

// Writer 账本写入能力（交易构造与签名由外部服务承担，对本核心不透明）。
// 结算确认后以 fire-and-forget 方式调用；失败只记日志，不影响确认结果。
type Writer interface {
	AcknowledgePayment(ctx context.Context, input AcknowledgeInput) error
}

// LogWriter 默认写入实现：仅记录回执请求。
// 部署方接入真实签名服务时替换本实现。
type LogWriter struct{}

// NewLogWriter 创建日志写入实现
func NewLogWriter() *LogWriter {
	return &LogWriter{}
}

// AcknowledgePayment 记录回执请求
func (w *LogWriter) AcknowledgePayment(ctx context.Context, input AcknowledgeInput) error {
	logger.Infow("ledger_acknowledge_recorded",
		"intent_id", input.IntentID,
		"payer_address", input.PayerAddress,
		"product_id", input.ProductID,
		"network", input.Network,
	)
	return nil
}
