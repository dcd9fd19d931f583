package constants

// 支付意图状态
const (
	IntentStatusPending   = "pending"
	IntentStatusConfirmed = "confirmed"
	IntentStatusFailed    = "failed"
)

// 意图失败原因
const (
	FailureReasonTimeout = "timeout"
)

// 账本网络
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

// 清算结果
const (
	SweepOutcomeExpired        = "expired"
	SweepOutcomeNoNewTransfers = "no_new_transfers"
	SweepOutcomePartial        = "partial"
	SweepOutcomeConfirmed      = "confirmed"
)

// 队列名称
const (
	QueueDefault = "default"
)

// 队列任务类型
const (
	TaskPaymentCompletedEvent = "payment:completed_event"
	TaskPaylinkUsageIncrement = "paylink:usage_increment"
	TaskLedgerAcknowledge     = "payment:ledger_acknowledge"
)

// 分析事件类型
const (
	EventTypePaymentCompleted = "payment_completed"
)

// 支付方式
const (
	PaymentMethodLedgerTransfer = "ledger_transfer"
)

// MotesPerUnit 链上最小单位与十进制货币的换算系数（1 币 = 10^9 motes）
const MotesPerUnit = 1_000_000_000

// 默认参数
const (
	DefaultCodeLength          = 4
	DefaultCodeMaxAttempts     = 10
	DefaultIntentExpireMinutes = 30
	DefaultLookbackMinutes     = 5
	DefaultSweepConcurrency    = 4
	DefaultLedgerPageSize      = 20
	DefaultLedgerTimeoutSecs   = 10
)
