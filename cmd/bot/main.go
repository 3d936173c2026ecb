package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"publisher_bot/internal/app"
	"publisher_bot/internal/config"
	"publisher_bot/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}
	logger.Configure(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		logger.L().Errorf("Application stopped with error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx); err != nil {
		logger.L().Errorf("Shutdown failed: %v", err)
	}
	logger.L().Info("Bye")

	if runErr != nil {
		os.Exit(1)
	}
}
