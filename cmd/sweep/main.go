package main

import (
	"context"
	"time"

	"github.com/ledgerpay-next/internal/config"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/provider"
)

// 一次性清算工具：对所有待结算的支付意图执行一轮对账后退出。
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	container := provider.NewContainer(cfg)
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results, err := container.SweepService.SweepPending(ctx)
	if err != nil {
		stdLog.Fatalf("清算失败: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			stdLog.Printf("intent %s: %s (%v)", r.IntentID, r.Outcome, r.Err)
			continue
		}
		stdLog.Printf("intent %s: %s", r.IntentID, r.Outcome)
	}
	stdLog.Printf("清算完成，共处理 %d 个意图", len(results))
}
