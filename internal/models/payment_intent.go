package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer 账本转账记录（只读，来自索引服务）
type Transfer struct {
	Hash        string    `json:"hash"`         // 转账哈希
	Sender      string    `json:"sender"`       // 发送方地址
	Amount      Money     `json:"amount"`       // 金额（已换算为十进制货币）
	BlockHeight uint64    `json:"block_height"` // 区块高度
	Timestamp   time.Time `json:"timestamp"`    // 账本时间戳
}

// TransferList 已接受转账序列（按接受顺序追加，按哈希去重）
type TransferList []Transfer

// Value 实现 driver.Valuer 接口
func (l TransferList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(TransferList{})
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *TransferList) Scan(value interface{}) error {
	if value == nil {
		*l = TransferList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*l = TransferList{}
		return nil
	}
	if len(bytes) == 0 {
		*l = TransferList{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Hashes 返回已记录的转账哈希集合
func (l TransferList) Hashes() map[string]struct{} {
	seen := make(map[string]struct{}, len(l))
	for _, t := range l {
		seen[t.Hash] = struct{}{}
	}
	return seen
}

// Total 返回去重集合的金额合计
func (l TransferList) Total() decimal.Decimal {
	total := decimal.Zero
	counted := make(map[string]struct{}, len(l))
	for _, t := range l {
		if _, ok := counted[t.Hash]; ok {
			continue
		}
		counted[t.Hash] = struct{}{}
		total = total.Add(t.Amount.Decimal)
	}
	return total
}

// PaymentIntent 支付意图
type PaymentIntent struct {
	ID               string       `gorm:"primarykey;size:36" json:"id"`                       // 主键（UUID）
	MerchantID       uint         `gorm:"index;not null" json:"merchant_id"`                  // 商户ID
	PaylinkID        uint         `gorm:"index;not null" json:"paylink_id"`                   // 收款链接ID
	ProductID        uint         `gorm:"index;not null" json:"product_id"`                   // 商品ID
	RecipientAddress string       `gorm:"not null" json:"recipient_address"`                  // 收款地址
	Network          string       `gorm:"not null" json:"network"`                            // 账本网络（testnet/mainnet）
	ExpectedAmount   Money        `gorm:"type:decimal(30,9);not null" json:"expected_amount"` // 应付金额
	CorrelationCode  string       `gorm:"index;not null" json:"correlation_code"`             // 关联码
	Status           string       `gorm:"index;not null" json:"status"`                       // 意图状态
	PartialTransfers TransferList `gorm:"type:json" json:"partial_transfers"`                 // 已接受转账
	TotalReceived    Money        `gorm:"type:decimal(30,9);not null;default:0" json:"total_received"`
	Overpayment      Money        `gorm:"type:decimal(30,9);not null;default:0" json:"overpayment"`
	SettlementHash   string       `gorm:"index" json:"settlement_hash"` // 完成结算的转账哈希
	SettlementSender string       `json:"settlement_sender"`
	SettlementHeight uint64       `json:"settlement_block_height"`
	SettlementTime   *time.Time   `json:"settlement_timestamp"`
	FailureReason    string       `json:"failure_reason"`       // 失败原因（如 timeout）
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"index" json:"updated_at"`
	ExpiresAt        time.Time    `gorm:"index;not null" json:"expires_at"` // 创建时固定，不可变
}

// TableName 指定表名
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// Expired 判断意图在给定时间是否已过期
func (i *PaymentIntent) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
