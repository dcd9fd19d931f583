package config

import (
	"fmt"
	"strings"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Intent   IntentConfig   `mapstructure:"intent"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LedgerConfig 账本索引服务配置
type LedgerConfig struct {
	TestnetEndpoint string `mapstructure:"testnet_endpoint"` // 测试网索引服务地址
	MainnetEndpoint string `mapstructure:"mainnet_endpoint"` // 主网索引服务地址
	APIKey          string `mapstructure:"api_key"`          // 索引服务 API Key
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`  // 单次查询超时
	PageSize        int    `mapstructure:"page_size"`        // 查询分页大小
	// LookbackMinutes 匹配转账时向意图创建时间之前回看的分钟数，
	// 用于吸收买家钱包与账本之间的时钟偏差；超过该窗口的偏差会漏配。
	LookbackMinutes int `mapstructure:"lookback_minutes"`
}

// IntentConfig 支付意图配置
type IntentConfig struct {
	ExpireMinutes        int  `mapstructure:"expire_minutes"`         // 意图有效期
	CodeLength           int  `mapstructure:"code_length"`            // 关联码位数
	CodeMaxAttempts      int  `mapstructure:"code_max_attempts"`      // 关联码分配尝试上限
	SweepConcurrency     int  `mapstructure:"sweep_concurrency"`      // 批量清算并发上限
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds"` // 定时清算间隔
	SchedulerEnabled     bool `mapstructure:"scheduler_enabled"`      // 是否启用定时清算
	StatusCacheSeconds   int  `mapstructure:"status_cache_seconds"`   // 终态状态缓存时长
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "ledgerpay.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/ledgerpay.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "lp")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default": 10,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("ledger.testnet_endpoint", "https://api.testnet.cspr.cloud")
	viper.SetDefault("ledger.mainnet_endpoint", "https://api.mainnet.cspr.cloud")
	viper.SetDefault("ledger.api_key", "")
	viper.SetDefault("ledger.timeout_seconds", constants.DefaultLedgerTimeoutSecs)
	viper.SetDefault("ledger.page_size", constants.DefaultLedgerPageSize)
	viper.SetDefault("ledger.lookback_minutes", constants.DefaultLookbackMinutes)
	viper.SetDefault("intent.expire_minutes", constants.DefaultIntentExpireMinutes)
	viper.SetDefault("intent.code_length", constants.DefaultCodeLength)
	viper.SetDefault("intent.code_max_attempts", constants.DefaultCodeMaxAttempts)
	viper.SetDefault("intent.sweep_concurrency", constants.DefaultSweepConcurrency)
	viper.SetDefault("intent.sweep_interval_seconds", 30)
	viper.SetDefault("intent.scheduler_enabled", true)
	viper.SetDefault("intent.status_cache_seconds", 60)

	// 环境变量支持（server.port -> SERVER_PORT）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
