package app

import (
	"context"
	"fmt"
	"time"

	"publisher_bot/internal/config"
	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/mongo"
	"publisher_bot/internal/scheduler"
	"publisher_bot/internal/server"
	"publisher_bot/internal/telegram"
	"publisher_bot/internal/telegram/repository"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	autosaveJob   = "state:autosave"
	grantPurgeJob = "grants:purge"

	grantPurgeInterval = 10 * time.Minute
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	cfg *config.Config

	MongoDB     *mongo.Client // 仅 STATE_BACKEND=mongo 时非空
	Store       *repository.StateStore
	Jobs        *scheduler.Scheduler
	TelegramBot *telegram.Bot
	HTTP        *server.Server

	running bool // Run 之后才在关闭时落盘
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{cfg: cfg}
	metrics.MustRegister(prometheus.DefaultRegisterer)

	backend, err := app.initBackend()
	if err != nil {
		return nil, err
	}

	app.Store = repository.NewStateStore(backend)
	if err := app.Store.Load(ctx); err != nil {
		// 以空状态继续运行，但不会覆盖无法读取的快照，直到所有者发送 /forcesave
		logger.L().Errorf("Failed to load state, starting empty with saves blocked: %v", err)
	}
	st := app.Store.Stats()
	logger.L().Infof("State loaded: backend=%s sessions=%d campaigns=%d rebroadcasts=%d chats=%d",
		st.Backend, st.Sessions, st.Campaigns, st.Rebroadcasts, st.KnownChats)

	app.Jobs, err = scheduler.New()
	if err != nil {
		app.Close(context.Background()) // 清理已初始化的服务
		return nil, fmt.Errorf("init scheduler failed: %w", err)
	}

	app.TelegramBot, err = telegram.InitFromConfig(cfg, app.Store, app.Jobs, app.storageCheck)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}

	opts := server.Options{
		Addr:        cfg.HTTPAddr,
		HealthCheck: app.storageCheck,
	}
	if app.TelegramBot.WebhookMode() {
		opts.Webhook = app.TelegramBot.WebhookHandler()
		opts.WebhookSecret = cfg.WebhookSecret
	}
	app.HTTP = server.New(opts)

	return app, nil
}

// initBackend 按 STATE_BACKEND 选择快照后端
func (a *App) initBackend() (repository.SnapshotBackend, error) {
	switch a.cfg.StateBackend {
	case config.BackendMongo:
		client, err := mongo.NewClient(mongo.Config{
			URI:      a.cfg.MongoURI,
			Database: a.cfg.MongoDBName,
		})
		if err != nil {
			return nil, fmt.Errorf("init MongoDB failed: %w", err)
		}
		a.MongoDB = client
		logger.L().Info("MongoDB initialized successfully")
		return repository.NewMongoSnapshotBackend(client.Database()), nil
	default:
		return repository.NewFileSnapshotBackend(a.cfg.StatePath), nil
	}
}

// storageCheck 存储连通性，/ping 与 /health 使用
func (a *App) storageCheck(ctx context.Context) error {
	if a.MongoDB == nil {
		return nil
	}
	return a.MongoDB.Ping(ctx)
}

// Run 启动调度、HTTP 与 Bot，阻塞直到 ctx 取消或任一组件失败
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduleMaintenance(); err != nil {
		return err
	}
	a.Jobs.Start()
	a.running = true

	restored := a.TelegramBot.RestoreRebroadcasts(ctx)
	logger.L().Infof("Rebroadcasts restored: %d", restored)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.HTTP.Start()
	})
	g.Go(func() error {
		return a.TelegramBot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.HTTP.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// scheduleMaintenance 注册周期性后台任务
func (a *App) scheduleMaintenance() error {
	if err := a.Jobs.Every(autosaveJob, a.cfg.AutosaveInterval, 0, func(ctx context.Context) {
		a.Store.SaveQuietly(ctx)
	}); err != nil {
		return fmt.Errorf("schedule autosave failed: %w", err)
	}
	if err := a.Jobs.Every(grantPurgeJob, grantPurgeInterval, time.Minute, func(ctx context.Context) {
		if n := a.TelegramBot.PurgeExpiredGrants(ctx); n > 0 {
			logger.L().Infof("Expired grants purged: %d", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule grant purge failed: %w", err)
	}
	return nil
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.TelegramBot != nil {
		if err := a.TelegramBot.Stop(ctx); err != nil {
			logger.L().Warnf("Stop Telegram bot failed: %v", err)
		}
	}
	if a.Jobs != nil {
		if err := a.Jobs.Shutdown(); err != nil {
			logger.L().Warnf("Shutdown scheduler failed: %v", err)
		}
	}
	// 最后一次落盘
	if a.Store != nil && a.running {
		if err := a.Store.Save(ctx); err != nil {
			logger.L().Errorf("Final state save failed: %v", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
