package models

import "time"

// Paylink 收款链接
type Paylink struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	MerchantID       uint      `gorm:"index;not null" json:"merchant_id"`
	ProductID        uint      `gorm:"index;not null" json:"product_id"`
	RecipientAddress string    `gorm:"not null" json:"recipient_address"` // 买家付款的账本地址
	Network          string    `gorm:"not null" json:"network"`           // testnet/mainnet
	UsageCount       int64     `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Paylink) TableName() string {
	return "paylinks"
}

// PaylinkUsage 收款链接使用记录。
// settlement_hash 唯一索引保证同一笔结算只计数一次。
type PaylinkUsage struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	PaylinkID      uint      `gorm:"index;not null" json:"paylink_id"`
	SettlementHash string    `gorm:"uniqueIndex;not null" json:"settlement_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (PaylinkUsage) TableName() string {
	return "paylink_usages"
}
