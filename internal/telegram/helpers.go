package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/service"
)

const maintenanceNotice = "🛠 发布系统正在维护升级，请稍后再试"

// sendMessage 发送消息（统一错误处理，使用 HTML 格式）
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, replyTo ...int) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: botModels.ParseModeHTML,
	}

	if len(replyTo) > 0 && replyTo[0] > 0 {
		params.ReplyParameters = &botModels.ReplyParameters{
			MessageID:                replyTo[0],
			AllowSendingWithoutReply: true,
		}
	}

	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		logger.L().Errorf("Failed to send message to chat %d: %v", chatID, err)
	}
}

// sendErrorMessage 发送错误消息
func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, message string, replyTo ...int) {
	b.sendMessage(ctx, chatID, "❌ "+message, replyTo...)
}

// sendSuccessMessage 发送成功消息
func (b *Bot) sendSuccessMessage(ctx context.Context, chatID int64, message string, replyTo ...int) {
	b.sendMessage(ctx, chatID, "✅ "+message, replyTo...)
}

// sendWithKeyboard 发送带内联键盘的 HTML 消息，返回消息 ID（失败为 0）
func (b *Bot) sendWithKeyboard(ctx context.Context, chatID int64, text string, kb service.Keyboard) int {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: botModels.ParseModeHTML,
	}
	if len(kb) > 0 {
		params.ReplyMarkup = inlineMarkup(kb)
	}

	msg, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		logger.L().Errorf("Failed to send message to chat %d: %v", chatID, err)
		return 0
	}
	return msg.ID
}

// editMessage 原地编辑消息文本与键盘
func (b *Bot) editMessage(ctx context.Context, chatID int64, messageID int, text string, kb service.Keyboard) error {
	_, err := b.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   botModels.ParseModeHTML,
		ReplyMarkup: inlineMarkup(kb),
	})
	if err != nil && !service.IsNotModified(err) {
		return err
	}
	return nil
}

// replaceMessage 优先原地编辑；失败时删除旧消息并重新发送，返回最终消息 ID
func (b *Bot) replaceMessage(ctx context.Context, chatID int64, messageID int, text string, kb service.Keyboard) int {
	if messageID > 0 {
		err := b.editMessage(ctx, chatID, messageID, text, kb)
		if err == nil {
			return messageID
		}
		logger.L().Debugf("Edit failed, resending: chat_id=%d message_id=%d err=%v", chatID, messageID, err)
		b.effects.Delete(ctx, chatID, messageID)
	}
	return b.sendWithKeyboard(ctx, chatID, text, kb)
}

// answerCallback 回应 callback query（显示顶部提示）
func (b *Bot) answerCallback(ctx context.Context, callbackQueryID, text string) {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
		ShowAlert:       false, // 显示为顶部提示，不弹窗
	})
	if err != nil {
		logger.L().Debugf("Failed to answer callback query: %v", err)
	}
}

// answerCallbackAlert 以弹窗回应 callback query
func (b *Bot) answerCallbackAlert(ctx context.Context, callbackQueryID, text string) {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		logger.L().Debugf("Failed to answer callback query: %v", err)
	}
}

// callbackMessage 返回回调所在的消息（可能已不可访问）
func callbackMessage(query *botModels.CallbackQuery) (chatID int64, messageID int) {
	if query.Message.Message != nil {
		return query.Message.Message.Chat.ID, query.Message.Message.ID
	}
	if query.Message.InaccessibleMessage != nil {
		return query.Message.InaccessibleMessage.Chat.ID, query.Message.InaccessibleMessage.MessageID
	}
	return query.From.ID, 0
}

// displayName 用户显示名
func displayName(u *botModels.User) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}
