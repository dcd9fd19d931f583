package service

import (
	"time"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/ledger"
	"github.com/ledgerpay-next/internal/models"

	"github.com/shopspring/decimal"
)

// motesFactor 链上最小单位换算系数
var motesFactor = decimal.NewFromInt(constants.MotesPerUnit)

// MatchTransfers 从原始转账中筛出与关联码匹配、尚未记录的转账，
// 并将金额从 motes 换算为十进制货币。返回结果保持账本顺序。
func MatchTransfers(raw []ledger.Transfer, correlationCode string, cutoff time.Time, seenHashes map[string]struct{}) models.TransferList {
	matched := make(models.TransferList, 0, len(raw))
	for _, t := range raw {
		if t.Timestamp.Before(cutoff) {
			continue
		}
		// 备注必须与关联码完全相等，不做前缀或模糊匹配
		if t.ID != correlationCode {
			continue
		}
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			continue
		}
		converted := amount.Div(motesFactor)
		// 零额转账（粉尘）不计入
		if !converted.IsPositive() {
			continue
		}
		if t.Hash == "" {
			continue
		}
		if _, ok := seenHashes[t.Hash]; ok {
			continue
		}
		matched = append(matched, models.Transfer{
			Hash:        t.Hash,
			Sender:      t.Sender,
			Amount:      models.NewMoneyFromDecimal(converted),
			BlockHeight: t.BlockHeight,
			Timestamp:   t.Timestamp,
		})
	}
	return matched
}
