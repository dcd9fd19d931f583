package repository

import (
	"github.com/ledgerpay-next/internal/models"

	"gorm.io/gorm"
)

// AnalyticsEventRepository 分析事件数据访问接口
type AnalyticsEventRepository interface {
	Create(event *models.AnalyticsEvent) error
	ListByIntentID(intentID string) ([]models.AnalyticsEvent, error)
}

// GormAnalyticsEventRepository GORM 实现
type GormAnalyticsEventRepository struct {
	db *gorm.DB
}

// NewAnalyticsEventRepository 创建分析事件仓库
func NewAnalyticsEventRepository(db *gorm.DB) *GormAnalyticsEventRepository {
	return &GormAnalyticsEventRepository{db: db}
}

// Create 写入分析事件
func (r *GormAnalyticsEventRepository) Create(event *models.AnalyticsEvent) error {
	return r.db.Create(event).Error
}

// ListByIntentID 获取意图相关事件
func (r *GormAnalyticsEventRepository) ListByIntentID(intentID string) ([]models.AnalyticsEvent, error) {
	var events []models.AnalyticsEvent
	if err := r.db.Where("intent_id = ?", intentID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
