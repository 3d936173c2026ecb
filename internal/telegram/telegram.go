package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"publisher_bot/internal/config"
	"publisher_bot/internal/logger"
	"publisher_bot/internal/scheduler"
	"publisher_bot/internal/telegram/publish"
	"publisher_bot/internal/telegram/rebroadcast"
	"publisher_bot/internal/telegram/repository"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// allowedUpdates 需要 Telegram 推送的更新类型（chat_member 默认不推送）
var allowedUpdates = bot.AllowedUpdates{
	"message",
	"channel_post",
	"callback_query",
	"chat_member",
	"my_chat_member",
}

// Config Telegram Bot 配置
type Config struct {
	Token    string  // Bot Token
	OwnerIDs []int64 // Owner 用户 IDs
	Debug    bool    // 是否开启调试模式

	WebhookURL    string // 为空时使用长轮询
	WebhookSecret string

	Workers   int
	QueueSize int

	AdminCacheTTL     time.Duration
	AlbumWait         time.Duration
	ReactionPlacement service.ReactionPlacement
	Publish           publish.Config

	// StorageCheck /ping 时检查存储后端连通性，可为空
	StorageCheck func(ctx context.Context) error
}

// Bot Telegram Bot 服务
type Bot struct {
	bot      *bot.Bot
	username string
	cfg      Config

	store     *repository.StateStore
	jobs      *scheduler.Scheduler
	messenger *telegramMessenger
	effects   *service.SideEffects

	admin      *service.AdminService
	sessions   *service.SessionService
	grants     *service.GrantService
	membership *service.Membership
	reactions  *service.ReactionService
	campaigns  *service.CampaignRegistry

	publisher    *publish.Publisher
	launcher     *publish.Launcher
	rebroadcasts *rebroadcast.Scheduler

	albums     *albumCollector
	workerPool *WorkerPool
	startTime  time.Time
}

// New 创建 Telegram Bot 实例
func New(cfg Config, store *repository.StateStore, jobs *scheduler.Scheduler) (*Bot, error) {
	// 验证配置
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if store == nil || jobs == nil {
		return nil, fmt.Errorf("state store and scheduler are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.ReactionPlacement == "" {
		cfg.ReactionPlacement = service.PlacementPrompt
	}

	telegramBot := &Bot{
		cfg:        cfg,
		store:      store,
		jobs:       jobs,
		workerPool: NewWorkerPool(cfg.Workers, cfg.QueueSize),
		startTime:  time.Now(),
	}
	telegramBot.workerPool.onPanic = telegramBot.notifyPanic

	// 创建 bot 实例
	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.asyncHandler(telegramBot.handleDefault)),
		bot.WithAllowedUpdates(allowedUpdates),
		bot.WithErrorsHandler(func(err error) {
			logger.L().Errorf("Telegram bot error: %v", err)
		}),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	me, err := b.GetMe(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	telegramBot.username = me.Username

	telegramBot.initServices()
	telegramBot.albums = newAlbumCollector(cfg.AlbumWait, telegramBot.handleAlbum)

	// 注册 handlers
	telegramBot.registerHandlers()

	logger.L().Infof("Telegram bot initialized successfully: @%s owners=%v", telegramBot.username, cfg.OwnerIDs)
	return telegramBot, nil
}

// initServices 组装业务服务
func (b *Bot) initServices() {
	b.messenger = newTelegramMessenger(b.bot)
	b.effects = service.NewSideEffects(b.messenger, b.jobs)

	b.admin = service.NewAdminService(b.store, b.cfg.OwnerIDs)
	b.sessions = service.NewSessionService(b.store)
	b.membership = service.NewMembership(b.messenger, b.store, b.cfg.AdminCacheTTL)
	b.grants = service.NewGrantService(b.store, b.membership, b.effects)
	b.campaigns = service.NewCampaignRegistry(b.store)
	b.reactions = service.NewReactionService(b.store, b.messenger, b.effects, b.cfg.ReactionPlacement)

	auth := service.NewAuthorizer(b.membership, b.grants)
	b.publisher = publish.NewPublisher(b.store, b.messenger, b.campaigns, b.reactions, b.effects, auth, b.cfg.Publish)
	b.rebroadcasts = rebroadcast.NewScheduler(b.store, b.jobs, b.publisher, b.reactions, b.admin, b.effects)
	b.launcher = publish.NewLauncher(b.sessions, b.admin, b.grants, b.publisher, b.rebroadcasts)
}

// InitFromConfig 从应用配置初始化 Telegram Bot
func InitFromConfig(cfg *config.Config, store *repository.StateStore, jobs *scheduler.Scheduler, storageCheck func(ctx context.Context) error) (*Bot, error) {
	telegramCfg := Config{
		Token:             cfg.TelegramToken,
		OwnerIDs:          cfg.BotOwnerIDs,
		Debug:             cfg.Debug,
		WebhookURL:        cfg.WebhookURL(),
		WebhookSecret:     cfg.WebhookSecret,
		Workers:           cfg.WorkerCount,
		QueueSize:         cfg.WorkerQueueSize,
		AdminCacheTTL:     cfg.AdminCacheTTL,
		AlbumWait:         cfg.AlbumWait,
		ReactionPlacement: service.ReactionPlacement(cfg.ReactionPlacement),
		Publish: publish.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			PerChatTimeout: cfg.PerChatTimeout,
			RatePerSecond:  cfg.SendRatePerSecond,
		},
		StorageCheck: storageCheck,
	}
	return New(telegramCfg, store, jobs)
}

// Username 返回 bot 用户名
func (b *Bot) Username() string {
	return b.username
}

// WebhookMode 是否以 webhook 方式接收更新
func (b *Bot) WebhookMode() bool {
	return b.cfg.WebhookURL != ""
}

// WebhookHandler 供 HTTP 服务器挂载的更新入口
func (b *Bot) WebhookHandler() http.HandlerFunc {
	return b.bot.WebhookHandler()
}

// RestoreRebroadcasts 重新挂载持久化的重播任务
func (b *Bot) RestoreRebroadcasts(ctx context.Context) int {
	return b.rebroadcasts.Restore(ctx)
}

// PurgeExpiredGrants 清理过期授权，供定时任务调用
func (b *Bot) PurgeExpiredGrants(ctx context.Context) int {
	return b.grants.PurgeExpired(ctx)
}

// Start 启动 Bot（阻塞式，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) error {
	if b.WebhookMode() {
		ok, err := b.bot.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:            b.cfg.WebhookURL,
			SecretToken:    b.cfg.WebhookSecret,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		if !ok {
			return fmt.Errorf("failed to set webhook: telegram returned false")
		}
		logger.L().Infof("Starting Telegram bot in webhook mode: %s", redactWebhook(b.cfg.WebhookURL, b.cfg.WebhookSecret))
		b.bot.StartWebhook(ctx)
	} else {
		if _, err := b.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			logger.L().Warnf("Failed to delete webhook before polling: %v", err)
		}
		logger.L().Info("Starting Telegram bot in polling mode...")
		b.bot.Start(ctx)
	}
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop 停止 Bot：处理完缓冲的相册并等待在途 handler
func (b *Bot) Stop(ctx context.Context) error {
	logger.L().Info("Stopping Telegram bot...")
	if b.albums != nil {
		b.albums.Flush()
	}
	b.workerPool.Shutdown()
	return nil
}

// notifyPanic handler 崩溃后给用户一个通用错误
func (b *Bot) notifyPanic(task HandlerTask) {
	chatID := updateChatID(task.Update)
	if chatID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.sendErrorMessage(ctx, chatID, "服务器内部错误，请稍后重试")
}

// updateChatID 返回适合回复的聊天 ID
func updateChatID(update *botModels.Update) int64 {
	switch {
	case update == nil:
		return 0
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

func redactWebhook(url, secret string) string {
	if secret == "" {
		return url
	}
	return strings.ReplaceAll(url, secret, "***")
}
