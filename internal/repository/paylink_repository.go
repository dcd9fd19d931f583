package repository

import (
	"errors"
	"strings"

	"github.com/ledgerpay-next/internal/models"

	"gorm.io/gorm"
)

// PaylinkRepository 收款链接数据访问接口
type PaylinkRepository interface {
	GetByID(id uint) (*models.Paylink, error)
	// IncrementUsage 按结算哈希幂等地递增使用计数，返回本次是否实际计数
	IncrementUsage(paylinkID uint, settlementHash string) (bool, error)
}

// GormPaylinkRepository GORM 实现
type GormPaylinkRepository struct {
	db *gorm.DB
}

// NewPaylinkRepository 创建收款链接仓库
func NewPaylinkRepository(db *gorm.DB) *GormPaylinkRepository {
	return &GormPaylinkRepository{db: db}
}

// GetByID 根据 ID 获取收款链接
func (r *GormPaylinkRepository) GetByID(id uint) (*models.Paylink, error) {
	var paylink models.Paylink
	if err := r.db.First(&paylink, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &paylink, nil
}

// IncrementUsage 幂等递增使用计数。
// 先写入 settlement_hash 唯一索引的使用记录，唯一冲突视为已计数。
func (r *GormPaylinkRepository) IncrementUsage(paylinkID uint, settlementHash string) (bool, error) {
	settlementHash = strings.TrimSpace(settlementHash)
	if paylinkID == 0 || settlementHash == "" {
		return false, nil
	}
	counted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PaylinkUsage{}).
			Where("settlement_hash = ?", settlementHash).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		usage := models.PaylinkUsage{
			PaylinkID:      paylinkID,
			SettlementHash: settlementHash,
		}
		if err := tx.Create(&usage).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		if err := tx.Model(&models.Paylink{}).
			Where("id = ?", paylinkID).
			Update("usage_count", gorm.Expr("usage_count + ?", 1)).Error; err != nil {
			return err
		}
		counted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return counted, nil
}
