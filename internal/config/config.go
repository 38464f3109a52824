package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	AI           AIConfig           `yaml:"ai"`
	Limits       LimitsConfig       `yaml:"limits"`
	Cache        CacheConfig        `yaml:"cache"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Queue        QueueConfig        `yaml:"queue"`
	Cleanup      CleanupConfig      `yaml:"cleanup"`
	Logging      LoggingConfig      `yaml:"logging"`
	PersonalInfo PersonalInfoConfig `yaml:"personal_info"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

// TelegramConfig 机器人配置
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	WebhookURL    string `yaml:"webhook_url"`    // 公网地址，为空时从请求 Host 推断
	WebhookPath   string `yaml:"webhook_path"`   // 默认 /api/webhook
	WebhookSecret string `yaml:"webhook_secret"` // X-Telegram-Bot-Api-Secret-Token
	SendsPerSec   int    `yaml:"sends_per_sec"`  // 全局发送速率
}

// AIConfig 补全服务配置
type AIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
	BotName     string  `yaml:"bot_name"`
}

// LimitsConfig 频率限制配置
type LimitsConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	TTLMs      int `yaml:"ttl_ms"`
	MaxEntries int `yaml:"max_entries"`
}

// DeliveryConfig 消息投递配置
type DeliveryConfig struct {
	MaxResponseLength int  `yaml:"max_response_length"`
	ChunkSize         int  `yaml:"chunk_size"`
	ChunkDelayMs      int  `yaml:"chunk_delay_ms"`
	MaxThinkingMs     int  `yaml:"max_thinking_ms"`
	Animated          bool `yaml:"animated"`
	SplitOnNewline    bool `yaml:"split_on_newline"` // 分块时优先在换行处切分
}

// QueueConfig 准入队列配置
type QueueConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxConcurrent int  `yaml:"max_concurrent"`
	StaleAfterMs  int  `yaml:"stale_after_ms"`
}

// CleanupConfig 定期清理配置
type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`      // text | json
	ActivityDB string `yaml:"activity_db"` // 活动日志 sqlite 路径，默认 ":memory:"
}

// PersonalInfoConfig 个人资料文档路径
type PersonalInfoConfig struct {
	Path string `yaml:"path"`
}

// Load 从文件加载配置，文件不存在时仅使用环境变量和默认值
func Load(path string) (*Config, error) {
	cfg := &Config{
		Delivery: DeliveryConfig{Animated: true},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)
	return cfg, nil
}

// applyEnv 环境变量覆盖文件配置
func applyEnv(cfg *Config) {
	envString("BOT_TOKEN", &cfg.Telegram.BotToken)
	envString("AI_API_KEY", &cfg.AI.APIKey)
	envString("GEMINI_API_KEY", &cfg.AI.APIKey)
	envString("AI_BASE_URL", &cfg.AI.BaseURL)
	envString("MODEL", &cfg.AI.Model)
	envString("WEBHOOK_URL", &cfg.Telegram.WebhookURL)
	envString("WEBHOOK_SECRET", &cfg.Telegram.WebhookSecret)
	envString("NODE_ENV", &cfg.Server.Environment)
	envString("APP_ENV", &cfg.Server.Environment)
	envString("ADMIN_API_KEY", &cfg.Server.AdminAPIKey)
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("ACTIVITY_DB", &cfg.Logging.ActivityDB)
	envString("PERSONAL_INFO_PATH", &cfg.PersonalInfo.Path)

	envInt("PORT", &cfg.Server.Port)
	envInt("MAX_REQUESTS_PER_MINUTE", &cfg.Limits.RequestsPerMinute)
	envInt("MAX_REQUESTS_PER_HOUR", &cfg.Limits.RequestsPerHour)
	envInt("CACHE_TTL", &cfg.Cache.TTLMs)
	envInt("TIMEOUT", &cfg.AI.TimeoutMs)
	envInt("MAX_RESPONSE_LENGTH", &cfg.Delivery.MaxResponseLength)
	envInt("CHUNK_SIZE", &cfg.Delivery.ChunkSize)
	envInt("MAX_TOKENS", &cfg.AI.MaxTokens)

	if v := strings.TrimSpace(os.Getenv("TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.AI.Temperature = float32(f)
		}
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Telegram.WebhookPath == "" {
		cfg.Telegram.WebhookPath = "/api/webhook"
	}
	if cfg.Telegram.SendsPerSec == 0 {
		cfg.Telegram.SendsPerSec = 30
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-1.5-flash-8b"
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 800
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.TimeoutMs == 0 {
		cfg.AI.TimeoutMs = 12000
	}
	if cfg.AI.BotName == "" {
		cfg.AI.BotName = "Kheang Bot"
	}
	if cfg.Limits.RequestsPerMinute == 0 {
		cfg.Limits.RequestsPerMinute = 10
	}
	if cfg.Limits.RequestsPerHour == 0 {
		cfg.Limits.RequestsPerHour = 100
	}
	if cfg.Cache.TTLMs == 0 {
		cfg.Cache.TTLMs = 300000
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Delivery.MaxResponseLength == 0 {
		cfg.Delivery.MaxResponseLength = 4096
	}
	if cfg.Delivery.ChunkSize == 0 {
		cfg.Delivery.ChunkSize = 4000
	}
	if cfg.Delivery.ChunkDelayMs == 0 {
		cfg.Delivery.ChunkDelayMs = 100
	}
	if cfg.Delivery.MaxThinkingMs == 0 {
		cfg.Delivery.MaxThinkingMs = 2000
	}
	if cfg.Queue.MaxConcurrent == 0 {
		cfg.Queue.MaxConcurrent = 3
	}
	if cfg.Queue.StaleAfterMs == 0 {
		cfg.Queue.StaleAfterMs = 30000
	}
	if cfg.Cleanup.IntervalMinutes == 0 {
		cfg.Cleanup.IntervalMinutes = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
		if cfg.Server.Environment == "production" {
			cfg.Logging.Format = "json"
		}
	}
	if cfg.Logging.ActivityDB == "" {
		cfg.Logging.ActivityDB = ":memory:"
	}
	if cfg.PersonalInfo.Path == "" {
		cfg.PersonalInfo.Path = "./info.json"
	}
}

// MissingCredentials 返回缺失的必需凭据（仅用于启动日志，不会导致退出）
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.AI.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	return missing
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

func (c DeliveryConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

func (c DeliveryConfig) MaxThinking() time.Duration {
	return time.Duration(c.MaxThinkingMs) * time.Millisecond
}

func (c QueueConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}

func (c CleanupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
