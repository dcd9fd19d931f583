package provider

import (
	"time"

	"github.com/ledgerpay-next/internal/cache"
	"github.com/ledgerpay-next/internal/config"
	"github.com/ledgerpay-next/internal/ledger"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/queue"
	"github.com/ledgerpay-next/internal/repository"
	"github.com/ledgerpay-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	MerchantRepo       repository.MerchantRepository
	PaylinkRepo        repository.PaylinkRepository
	ProductRepo        repository.ProductRepository
	IntentRepo         repository.IntentRepository
	AnalyticsEventRepo repository.AnalyticsEventRepository

	// Ledger
	LedgerClient *ledger.Client
	LedgerWriter ledger.Writer

	// Services
	IntentService *service.IntentService
	SweepService  *service.SweepService
}

// Close 释放容器持有的连接
func (c *Container) Close() {
	if c == nil || c.QueueClient == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}
	if queueClient == nil {
		queueClient, _ = queue.NewClient(nil)
	}

	ledgerClient, err := ledger.NewClient(ledger.Config{
		TestnetEndpoint: cfg.Ledger.TestnetEndpoint,
		MainnetEndpoint: cfg.Ledger.MainnetEndpoint,
		APIKey:          cfg.Ledger.APIKey,
		TimeoutSeconds:  cfg.Ledger.TimeoutSeconds,
		PageSize:        cfg.Ledger.PageSize,
	})
	if err != nil {
		logger.Errorw("provider_init_ledger_client_failed", "error", err)
	}

	merchantRepo := repository.NewMerchantRepository(models.DB)
	paylinkRepo := repository.NewPaylinkRepository(models.DB)
	productRepo := repository.NewProductRepository(models.DB)
	intentRepo := repository.NewIntentRepository(models.DB)
	analyticsEventRepo := repository.NewAnalyticsEventRepository(models.DB)

	codeGen := service.NewCodeGenerator(cfg.Intent.CodeLength)
	codePolicy := service.RetryPolicy{MaxAttempts: cfg.Intent.CodeMaxAttempts}
	intentService := service.NewIntentService(
		merchantRepo,
		paylinkRepo,
		productRepo,
		intentRepo,
		codeGen,
		codePolicy,
		time.Duration(cfg.Intent.ExpireMinutes)*time.Minute,
		time.Duration(cfg.Intent.StatusCacheSeconds)*time.Second,
	)
	sweepService := service.NewSweepService(
		intentRepo,
		ledgerClient,
		queueClient,
		time.Duration(cfg.Ledger.LookbackMinutes)*time.Minute,
		cfg.Intent.SweepConcurrency,
	)

	return &Container{
		Config:             cfg,
		QueueClient:        queueClient,
		MerchantRepo:       merchantRepo,
		PaylinkRepo:        paylinkRepo,
		ProductRepo:        productRepo,
		IntentRepo:         intentRepo,
		AnalyticsEventRepo: analyticsEventRepo,
		LedgerClient:       ledgerClient,
		LedgerWriter:       ledger.NewLogWriter(),
		IntentService:      intentService,
		SweepService:       sweepService,
	}
}
