package service

import (
	"context"
	"fmt"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
)

// 副作用名称，同时用作指标标签
const (
	EffectPin          = "pin"
	EffectDelete       = "delete"
	EffectEditKeyboard = "edit_keyboard"
	EffectNotify       = "notify"
)

// SideEffects 非关键副作用执行器：失败只记录日志和指标，从不向上返回
type SideEffects struct {
	messenger Messenger
	deferrer  Deferrer
}

// NewSideEffects 创建副作用执行器
func NewSideEffects(messenger Messenger, deferrer Deferrer) *SideEffects {
	return &SideEffects{messenger: messenger, deferrer: deferrer}
}

// Run 执行副作用，返回是否成功
func (e *SideEffects) Run(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	if err := fn(ctx); err != nil {
		metrics.SideEffectFailures.WithLabelValues(name).Inc()
		logger.L().Warnf("Side effect %s failed: %v", name, err)
		return false
	}
	return true
}

// Pin 静默置顶
func (e *SideEffects) Pin(ctx context.Context, chatID int64, messageID int) bool {
	return e.Run(ctx, EffectPin, func(ctx context.Context) error {
		return e.messenger.Pin(ctx, chatID, messageID)
	})
}

// Delete 删除消息
func (e *SideEffects) Delete(ctx context.Context, chatID int64, messageID int) bool {
	if messageID == 0 {
		return true
	}
	return e.Run(ctx, EffectDelete, func(ctx context.Context) error {
		return e.messenger.Delete(ctx, chatID, messageID)
	})
}

// Notify 发送一条通知文本，返回消息 ID（失败为 0）
func (e *SideEffects) Notify(ctx context.Context, chatID int64, text string, opts TextOptions) int {
	var msgID int
	e.Run(ctx, EffectNotify, func(ctx context.Context) error {
		id, err := e.messenger.SendText(ctx, chatID, text, opts)
		msgID = id
		return err
	})
	return msgID
}

// DeleteLater 延迟删除消息
func (e *SideEffects) DeleteLater(chatID int64, messageID int, delay time.Duration) {
	if messageID == 0 {
		return
	}
	if e.deferrer == nil {
		logger.L().Warnf("No deferrer configured, message %d in chat %d will not be deleted", messageID, chatID)
		return
	}

	name := fmt.Sprintf("delete_%d_%d", chatID, messageID)
	err := e.deferrer.After(delay, name, func(ctx context.Context) {
		e.Delete(ctx, chatID, messageID)
	})
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues(EffectDelete).Inc()
		logger.L().Warnf("Failed to schedule deletion of message %d in chat %d: %v", messageID, chatID, err)
	}
}
