package telegram

import (
	"context"
	"errors"
	"strings"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// asyncHandler 把 handler 提交到工作池执行，不阻塞更新分发
func (b *Bot) asyncHandler(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		ok := b.workerPool.Submit(HandlerTask{
			Ctx:         context.WithoutCancel(ctx),
			BotInstance: botInstance,
			Update:      update,
			Handler:     next,
		})
		if !ok {
			logger.L().Warnf("Handler dropped: update_id=%d", update.ID)
		}
	}
}

// senderID 返回更新发起人
func senderID(update *botModels.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// RequireOwner 中间件：仅允许 Owner 执行
func (b *Bot) RequireOwner(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		userID := senderID(update)
		if userID == 0 {
			return
		}
		if !b.admin.IsOwner(userID) {
			logger.L().Warnf("Non-owner user %d attempted to use owner command", userID)
			b.denyUpdate(ctx, update, "此功能仅限 Bot Owner 使用")
			return
		}
		next(ctx, botInstance, update)
	}
}

// RequirePanelAccess 中间件：Owner 或已知的聊天管理员
func (b *Bot) RequirePanelAccess(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		userID := senderID(update)
		if userID == 0 {
			return
		}
		if !b.admin.IsOwner(userID) && !b.admin.IsKnownAdmin(userID) {
			logger.L().Warnf("User %d without admin rights attempted to open the panel", userID)
			b.denyUpdate(ctx, update, "控制面板仅对聊天管理员开放")
			return
		}
		next(ctx, botInstance, update)
	}
}

// RequirePrivate 中间件：只处理私聊中的消息
func (b *Bot) RequirePrivate(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.Chat.Type != botModels.ChatTypePrivate {
			return
		}
		next(ctx, botInstance, update)
	}
}

// RequireGroup 中间件：只处理群组中的消息
func (b *Bot) RequireGroup(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || !isGroupChat(update.Message.Chat.Type) {
			return
		}
		next(ctx, botInstance, update)
	}
}

// RequireAccess 中间件：维护模式与白名单检查
func (b *Bot) RequireAccess(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		userID := senderID(update)
		if userID == 0 {
			return
		}
		if err := b.admin.CheckAccess(userID); err != nil {
			metrics.HandlerEvents.WithLabelValues("access_denied").Inc()
			b.denyUpdate(ctx, update, accessDeniedText(err))
			return
		}
		next(ctx, botInstance, update)
	}
}

func accessDeniedText(err error) string {
	switch {
	case errors.Is(err, service.ErrMaintenance):
		return maintenanceNotice
	case errors.Is(err, service.ErrNotWhitelisted):
		return "🔒 发布仅对白名单成员开放"
	}
	return "❌ 暂无权限"
}

// denyUpdate 回调用弹窗提示，消息用文本回复
func (b *Bot) denyUpdate(ctx context.Context, update *botModels.Update, text string) {
	if update.CallbackQuery != nil {
		b.answerCallbackAlert(ctx, update.CallbackQuery.ID, text)
		return
	}
	if update.Message != nil {
		if !strings.HasPrefix(text, "🔒") && !strings.HasPrefix(text, "🛠") && !strings.HasPrefix(text, "❌") {
			text = "❌ " + text
		}
		b.sendMessage(ctx, update.Message.Chat.ID, text, update.Message.ID)
	}
}

func isGroupChat(t botModels.ChatType) bool {
	return t == botModels.ChatTypeGroup || t == botModels.ChatTypeSupergroup
}
