package router

import (
	"github.com/ledgerpay-next/internal/config"
	publichandlers "github.com/ledgerpay-next/internal/http/handlers/public"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		intents := apiV1.Group("/intents")
		{
			intents.POST("", publicHandler.CreateIntent)
			intents.GET("/:id/status", publicHandler.GetIntentStatus)
			intents.POST("/:id/sweep", publicHandler.SweepIntent)
			intents.DELETE("/:id", publicHandler.CancelIntent)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
