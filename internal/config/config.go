package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 状态存储后端
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// Config 应用程序配置
type Config struct {
	TelegramToken string  `envconfig:"TELEGRAM_TOKEN" validate:"required"` // Telegram Bot API Token
	BotOwnerIDs   []int64 `ignored:"true"`                                 // Bot所有者ID列表，由 BOT_OWNER_IDS 解析
	OwnerIDsRaw   string  `envconfig:"BOT_OWNER_IDS"`
	Debug         bool    `envconfig:"DEBUG" default:"false"`

	// BASE_URL 为空时使用长轮询
	BaseURL       string `envconfig:"BASE_URL" validate:"omitempty,url"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" validate:"omitempty,webhook_secret"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`

	WorkerCount     int `envconfig:"WORKER_COUNT" default:"8" validate:"min=1,max=256"`
	WorkerQueueSize int `envconfig:"WORKER_QUEUE_SIZE" default:"256" validate:"min=1"`

	AdminCacheTTL     time.Duration `envconfig:"ADMIN_CACHE_TTL" default:"5m"`
	AlbumWait         time.Duration `envconfig:"ALBUM_WAIT" default:"1200ms"`
	ReactionPlacement string        `envconfig:"REACTION_PLACEMENT" default:"prompt" validate:"oneof=prompt inline"`

	MaxConcurrency    int           `envconfig:"MAX_CONCURRENCY" default:"5" validate:"min=1,max=64"`
	PerChatTimeout    time.Duration `envconfig:"PER_CHAT_TIMEOUT" default:"25s"`
	SendRatePerSecond float64       `envconfig:"SEND_RATE_PER_SECOND" default:"25" validate:"gte=0"`

	StateBackend     string        `envconfig:"STATE_BACKEND" default:"file" validate:"oneof=file mongo"`
	StatePath        string        `envconfig:"STATE_PATH" default:"/tmp/publisher_state.json"`
	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"30s"`
	MongoURI         string        `envconfig:"MONGO_URI" validate:"required_if=StateBackend mongo"` // MongoDB连接URI
	MongoDBName      string        `envconfig:"MONGO_DB_NAME" default:"publisher_bot"`              // MongoDB数据库名称

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"` // 为空时只输出到 stdout
}

// Load 从环境变量加载配置，存在 .env 时先载入
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv 只读取当前进程环境变量
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	// 解析BOT_OWNER_IDS
	if cfg.OwnerIDsRaw != "" {
		ids, err := parseOwnerIDs(cfg.OwnerIDsRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse BOT_OWNER_IDS: %w", err)
		}
		cfg.BotOwnerIDs = ids
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newValidator 注册自定义规则
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("webhook_secret", validateWebhookSecret)
	return v
}

// validateWebhookSecret Telegram 只接受 1-256 位的 A-Z a-z 0-9 _ -
func validateWebhookSecret(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) == 0 || len(value) > 256 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// Validate 校验字段取值
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.BaseURL != "" && c.WebhookSecret == "" {
		return fmt.Errorf("invalid config: WEBHOOK_SECRET is required when BASE_URL is set")
	}
	if c.AutosaveInterval < time.Second {
		return fmt.Errorf("invalid config: AUTOSAVE_INTERVAL must be >= 1s, got %s", c.AutosaveInterval)
	}
	return nil
}

// WebhookURL 拼出 Telegram 推送地址，未配置 BASE_URL 时为空
func (c *Config) WebhookURL() string {
	if c.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.BaseURL, "/") + "/webhook/" + c.WebhookSecret
}

// parseOwnerIDs 解析逗号分隔的用户ID字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseOwnerIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
