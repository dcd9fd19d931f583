package models

import "time"

// Product 商品
type Product struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	MerchantID uint      `gorm:"index;not null" json:"merchant_id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      Money     `gorm:"type:decimal(30,9);not null" json:"price"` // 标价
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
