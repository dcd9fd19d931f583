package models

import "time"

// AnalyticsEvent 分析事件（结算完成后异步写入）
type AnalyticsEvent struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	IntentID      string    `gorm:"index;size:36;not null" json:"intent_id"`
	EventType     string    `gorm:"index;not null" json:"event_type"`
	PaymentMethod string    `gorm:"not null" json:"payment_method"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}
