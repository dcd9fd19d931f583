package service

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/logger"
)

// Scheduler 定时清算调度器：固定间隔对所有待结算意图执行 SweepAll。
// 清算本身对并发与重复执行安全，因此调度器无需与其他触发方互斥。
type Scheduler struct {
	sweepSvc *SweepService
	interval time.Duration
	name     string
}

// NewScheduler 创建清算调度器
func NewScheduler(sweepSvc *SweepService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		sweepSvc: sweepSvc,
		interval: interval,
		name:     "sweeper",
	}
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "sweeper"
	}
	return s.name
}

// Start 启动调度循环，直到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.sweepSvc == nil {
		return errors.New("scheduler not initialized")
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Stop 停止调度（循环由 ctx 取消驱动）
func (s *Scheduler) Stop(ctx context.Context) error {
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.sweepSvc.SweepPending(ctx)
	if err != nil {
		logger.Warnw("scheduler_sweep_failed", "error", err)
		return
	}
	var confirmed, expired, partial int
	for _, r := range results {
		switch r.Outcome {
		case constants.SweepOutcomeConfirmed:
			confirmed++
		case constants.SweepOutcomeExpired:
			expired++
		case constants.SweepOutcomePartial:
			partial++
		}
	}
	if confirmed+expired+partial > 0 {
		logger.Infow("scheduler_sweep_done",
			"total", len(results),
			"confirmed", confirmed,
			"expired", expired,
			"partial", partial,
		)
	}
}
