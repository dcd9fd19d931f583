package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ledgerpay-next/internal/constants"
)

// ErrCodeExhausted 关联码在尝试预算内无法分配
var ErrCodeExhausted = errors.New("correlation code attempts exhausted")

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// normalize 补齐默认参数
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = constants.DefaultCodeMaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// pendingCodeChecker 查询关联码是否仍被待结算意图占用
type pendingCodeChecker interface {
	CountPendingByCode(code string) (int64, error)
}

// CodeGenerator 关联码生成器（固定位数的数字空间）
type CodeGenerator struct {
	length int
}

// NewCodeGenerator 创建关联码生成器
func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = constants.DefaultCodeLength
	}
	return &CodeGenerator{length: length}
}

// Generate 生成一个关联码
func (g *CodeGenerator) Generate() string {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand 失败时退化为时间派生值，保持数字定宽
		n = big.NewInt(time.Now().UnixNano())
		n.Mod(n, max)
	}
	return fmt.Sprintf("%0*d", g.length, n)
}

// AssignUnique 在尝试预算内分配一个未被待结算意图占用的关联码。
// 查重与使用并非原子操作：唯一性只是尽力而为的便利，账本匹配本身还依赖
// 时间窗口、金额与收款地址组合，码碰撞不影响安全，只影响体验。
func (g *CodeGenerator) AssignUnique(checker pendingCodeChecker, policy RetryPolicy) (string, error) {
	policy = policy.normalize()
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 && policy.Backoff > 0 {
			time.Sleep(policy.Backoff)
		}
		code := g.Generate()
		count, err := checker.CountPendingByCode(code)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
