package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/models"

	"gorm.io/gorm"
)

// IntentRepository 支付意图数据访问接口
type IntentRepository interface {
	Create(intent *models.PaymentIntent) error
	GetByID(id string) (*models.PaymentIntent, error)
	ListPendingWithExpiry() ([]models.PaymentIntent, error)
	CountPendingByCode(code string) (int64, error)
	// UpdateIfStatus 仅当当前状态等于 expectedStatus 时应用 updates，
	// 返回写入是否生效。这是全系统唯一的并发安全原语。
	UpdateIfStatus(id string, expectedStatus string, updates map[string]interface{}) (bool, error)
	// UpdateProgress 累计部分到账（状态不变，无需条件写）
	UpdateProgress(id string, transfers models.TransferList, total models.Money) error
	DeleteIfPending(id string) (bool, error)
	WithTx(tx *gorm.DB) *GormIntentRepository
}

// GormIntentRepository GORM 实现
type GormIntentRepository struct {
	db *gorm.DB
}

// NewIntentRepository 创建支付意图仓库
func NewIntentRepository(db *gorm.DB) *GormIntentRepository {
	return &GormIntentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormIntentRepository) WithTx(tx *gorm.DB) *GormIntentRepository {
	if tx == nil {
		return r
	}
	return &GormIntentRepository{db: tx}
}

// Create 创建支付意图
func (r *GormIntentRepository) Create(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

// GetByID 根据 ID 获取支付意图
func (r *GormIntentRepository) GetByID(id string) (*models.PaymentIntent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.First(&intent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// ListPendingWithExpiry 获取所有待结算且设置了有效期的意图
func (r *GormIntentRepository) ListPendingWithExpiry() ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.
		Where("status = ? AND expires_at IS NOT NULL", constants.IntentStatusPending).
		Order("created_at asc").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// CountPendingByCode 统计持有某关联码的待结算意图数量
func (r *GormIntentRepository) CountPendingByCode(code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.PaymentIntent{}).
		Where("correlation_code = ? AND status = ?", code, constants.IntentStatusPending).
		Count(&count).Error
	return count, err
}

// UpdateIfStatus 按状态条件更新（compare-and-swap）
func (r *GormIntentRepository) UpdateIfStatus(id string, expectedStatus string, updates map[string]interface{}) (bool, error) {
	if strings.TrimSpace(id) == "" || len(updates) == 0 {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	result := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateProgress 持久化部分到账进度
func (r *GormIntentRepository) UpdateProgress(id string, transfers models.TransferList, total models.Money) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return r.db.Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"partial_transfers": transfers,
			"total_received":    total,
			"updated_at":        time.Now(),
		}).Error
}

// DeleteIfPending 仅当意图仍为待结算时删除
func (r *GormIntentRepository) DeleteIfPending(id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	result := r.db.
		Where("id = ? AND status = ?", id, constants.IntentStatusPending).
		Delete(&models.PaymentIntent{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
