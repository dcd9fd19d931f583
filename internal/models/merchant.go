package models

import "time"

// Merchant 商户
type Merchant struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Status    string    `gorm:"index;not null;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Merchant) TableName() string {
	return "merchants"
}
