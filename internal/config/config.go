package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SyncConfig 定义同步调度器的核心业务配置
type SyncConfig struct {
	Query          string        // 拉取邮件时使用的固定查询，默认 "in:inbox"
	PageSize       int           // 单次 list 调用的页大小上限，默认 100
	Interval       time.Duration // 定时批量同步的间隔，默认 5 分钟
	MaxConcurrency int           // 批次内并发处理的连接数上限，默认 4
}

// ProviderConfig 定义远程邮箱 API 的访问配置
type ProviderConfig struct {
	BaseURL   string        // 远程 API 根地址，如 "https://mail.example.com/v1"
	Timeout   time.Duration // 单次 HTTP 请求超时，默认 30 秒
	RateLimit float64       // 每秒允许的请求数，默认 10
	RateBurst int           // 令牌桶突发容量，默认 5
}

// OutboundConfig 定义出站邮件构建与发送配置
type OutboundConfig struct {
	MaxAttachmentBytes int64         // 附件总大小上限，默认 25 MiB
	SendDeadline       time.Duration // 发送操作的硬性截止时间，默认 8 秒
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空仅输出到控制台
	MaxSize     int    // 单个日志文件上限 (MB)，默认 100
	MaxBackups  int    // 保留的轮转文件数，默认 3
	MaxAge      int    // 轮转文件保留天数，默认 28
	Compress    bool   // 是否压缩轮转文件，默认 true
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool          // 是否启用聚合结果缓存
	Address  string        // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string        // Redis 认证密码，留空表示无密码
	DB       int           // Redis 数据库编号，默认 0
	TTL      time.Duration // 聚合快照缓存的生存时间，默认 30 秒
}

// JWTConfig 定义访问令牌校验配置（令牌由外部认证服务签发）
type JWTConfig struct {
	Secret string // HMAC 签名密钥，必须至少 32 字符
	Issuer string // 预期的签发者标识，默认 "mailsync"
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Sync     SyncConfig     // 同步调度配置
	Provider ProviderConfig // 远程邮箱 API 配置
	Outbound OutboundConfig // 出站邮件配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // 访问令牌校验配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILSYNC_
// 例如: MAILSYNC_SERVER_HOST, MAILSYNC_PROVIDER_BASE_URL
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailsync")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("sync.query", "in:inbox")
	viper.SetDefault("sync.page_size", 100)
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("sync.max_concurrency", 4)
	viper.SetDefault("provider.base_url", "")
	viper.SetDefault("provider.timeout", "30s")
	viper.SetDefault("provider.rate_limit", 10.0)
	viper.SetDefault("provider.rate_burst", 5)
	viper.SetDefault("outbound.max_attachment_bytes", 25*1024*1024)
	viper.SetDefault("outbound.send_deadline", "8s")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "30s")
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailsync")

	syncInterval, err := time.ParseDuration(viper.GetString("sync.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.interval: %w", err)
	}

	pageSize := viper.GetInt("sync.page_size")
	if pageSize <= 0 || pageSize > 500 {
		return nil, fmt.Errorf("sync.page_size must be in (0, 500], got %d", pageSize)
	}

	maxConcurrency := viper.GetInt("sync.max_concurrency")
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	providerTimeout, err := time.ParseDuration(viper.GetString("provider.timeout"))
	if err != nil {
		providerTimeout = 30 * time.Second
	}

	sendDeadline, err := time.ParseDuration(viper.GetString("outbound.send_deadline"))
	if err != nil {
		sendDeadline = 8 * time.Second
	}

	maxAttachmentBytes := viper.GetInt64("outbound.max_attachment_bytes")
	if maxAttachmentBytes <= 0 {
		return nil, fmt.Errorf("outbound.max_attachment_bytes must be positive")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	redisTTL, err := time.ParseDuration(viper.GetString("redis.ttl"))
	if err != nil {
		redisTTL = 30 * time.Second
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILSYNC_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Sync: SyncConfig{
			Query:          viper.GetString("sync.query"),
			PageSize:       pageSize,
			Interval:       syncInterval,
			MaxConcurrency: maxConcurrency,
		},
		Provider: ProviderConfig{
			BaseURL:   strings.TrimRight(viper.GetString("provider.base_url"), "/"),
			Timeout:   providerTimeout,
			RateLimit: viper.GetFloat64("provider.rate_limit"),
			RateBurst: viper.GetInt("provider.rate_burst"),
		},
		Outbound: OutboundConfig{
			MaxAttachmentBytes: maxAttachmentBytes,
			SendDeadline:       sendDeadline,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
			MaxSize:     viper.GetInt("log.max_size"),
			MaxBackups:  viper.GetInt("log.max_backups"),
			MaxAge:      viper.GetInt("log.max_age"),
			Compress:    viper.GetBool("log.compress"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			TTL:      redisTTL,
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: viper.GetString("jwt.issuer"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
