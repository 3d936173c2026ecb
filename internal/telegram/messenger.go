package telegram

import (
	"context"
	"fmt"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// telegramMessenger 基于 go-telegram/bot 的 service.Messenger 实现
type telegramMessenger struct {
	bot *bot.Bot
}

func newTelegramMessenger(b *bot.Bot) *telegramMessenger {
	return &telegramMessenger{bot: b}
}

var _ service.Messenger = (*telegramMessenger)(nil)

// renderText 按需隐藏链接，返回文本与解析模式
func renderText(text string, hideLinks bool) (string, botModels.ParseMode) {
	if text == "" || !hideLinks {
		return text, ""
	}
	return hiddenLinksHTML(text), botModels.ParseModeHTML
}

// SendContent 按"附件 → 媒体 → 文本"的顺序发送，正文作为第一条的说明
func (m *telegramMessenger) SendContent(ctx context.Context, chatID int64, content models.Content, opts service.ContentOptions) (int, error) {
	firstID := 0
	caption := content.Text

	if att := content.SingleAttachment; att != nil {
		c := caption
		if c == "" {
			c = att.Caption
		}
		id, err := m.sendAttachment(ctx, chatID, *att, c, opts)
		if err != nil {
			return 0, err
		}
		firstID = id
		caption = ""
	}

	switch len(content.MediaList) {
	case 0:
	case 1:
		item := content.MediaList[0]
		c := caption
		if c == "" {
			c = item.Caption
		}
		id, err := m.sendSingleMedia(ctx, chatID, item, c, opts)
		if err != nil {
			return 0, err
		}
		if firstID == 0 {
			firstID = id
		}
		caption = ""
	default:
		id, err := m.sendAlbum(ctx, chatID, content.MediaList, caption, opts)
		if err != nil {
			return 0, err
		}
		if firstID == 0 {
			firstID = id
		}
		caption = ""
	}

	if caption != "" {
		text, mode := renderText(caption, opts.HideLinks)
		params := &bot.SendMessageParams{
			ChatID:              chatID,
			Text:                text,
			ParseMode:           mode,
			DisableNotification: opts.DisableNotify,
		}
		if opts.HideLinks {
			disabled := true
			params.LinkPreviewOptions = &botModels.LinkPreviewOptions{IsDisabled: &disabled}
		}
		msg, err := m.bot.SendMessage(ctx, params)
		if err != nil {
			return 0, fmt.Errorf("failed to send text: %w", err)
		}
		if firstID == 0 {
			firstID = msg.ID
		}
	}

	if firstID == 0 {
		return 0, models.ErrEmptyContent
	}
	return firstID, nil
}

func (m *telegramMessenger) sendAttachment(ctx context.Context, chatID int64, att models.MediaItem, caption string, opts service.ContentOptions) (int, error) {
	text, mode := renderText(caption, opts.HideLinks)
	file := &botModels.InputFileString{Data: att.FileID}

	var (
		msg *botModels.Message
		err error
	)
	switch att.Kind {
	case models.MediaDocument:
		msg, err = m.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID: chatID, Document: file, Caption: text, ParseMode: mode, DisableNotification: opts.DisableNotify,
		})
	case models.MediaAudio:
		msg, err = m.bot.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: chatID, Audio: file, Caption: text, ParseMode: mode, DisableNotification: opts.DisableNotify,
		})
	case models.MediaVoice:
		msg, err = m.bot.SendVoice(ctx, &bot.SendVoiceParams{
			ChatID: chatID, Voice: file, Caption: text, ParseMode: mode, DisableNotification: opts.DisableNotify,
		})
	default:
		return 0, fmt.Errorf("unsupported attachment kind %q", att.Kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to send %s: %w", att.Kind, err)
	}
	return msg.ID, nil
}

func (m *telegramMessenger) sendSingleMedia(ctx context.Context, chatID int64, item models.MediaItem, caption string, opts service.ContentOptions) (int, error) {
	text, mode := renderText(caption, opts.HideLinks)
	file := &botModels.InputFileString{Data: item.FileID}

	var (
		msg *botModels.Message
		err error
	)
	if item.Kind == models.MediaVideo {
		msg, err = m.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: chatID, Video: file, Caption: text, ParseMode: mode, DisableNotification: opts.DisableNotify,
		})
	} else {
		msg, err = m.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID, Photo: file, Caption: text, ParseMode: mode, DisableNotification: opts.DisableNotify,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("failed to send %s: %w", item.Kind, err)
	}
	return msg.ID, nil
}

// sendAlbum 相册：正文作为第一项的说明，其余项保留各自说明
func (m *telegramMessenger) sendAlbum(ctx context.Context, chatID int64, items []models.MediaItem, caption string, opts service.ContentOptions) (int, error) {
	media := make([]botModels.InputMedia, 0, len(items))
	for i, item := range items {
		c := item.Caption
		if i == 0 && caption != "" {
			c = caption
		}
		text, mode := renderText(c, opts.HideLinks)
		if item.Kind == models.MediaVideo {
			media = append(media, &botModels.InputMediaVideo{Media: item.FileID, Caption: text, ParseMode: mode})
		} else {
			media = append(media, &botModels.InputMediaPhoto{Media: item.FileID, Caption: text, ParseMode: mode})
		}
	}

	msgs, err := m.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID:              chatID,
		Media:               media,
		DisableNotification: opts.DisableNotify,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send media group: %w", err)
	}
	if len(msgs) == 0 {
		return 0, fmt.Errorf("media group returned no messages")
	}
	return msgs[0].ID, nil
}

// SendText 发送文本消息
func (m *telegramMessenger) SendText(ctx context.Context, chatID int64, text string, opts service.TextOptions) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if opts.HTML {
		params.ParseMode = botModels.ParseModeHTML
	}
	if opts.ReplyTo > 0 {
		params.ReplyParameters = &botModels.ReplyParameters{MessageID: opts.ReplyTo, AllowSendingWithoutReply: true}
	}
	if opts.DisableLinkPreview {
		disabled := true
		params.LinkPreviewOptions = &botModels.LinkPreviewOptions{IsDisabled: &disabled}
	}
	if len(opts.Keyboard) > 0 {
		params.ReplyMarkup = inlineMarkup(opts.Keyboard)
	}

	msg, err := m.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return msg.ID, nil
}

// EditKeyboard 替换内联键盘
func (m *telegramMessenger) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb service.Keyboard) error {
	_, err := m.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: inlineMarkup(kb),
	})
	if err != nil && !service.IsNotModified(err) {
		return fmt.Errorf("failed to edit keyboard of message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// Pin 静默置顶
func (m *telegramMessenger) Pin(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.bot.PinChatMessage(ctx, &bot.PinChatMessageParams{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		return fmt.Errorf("failed to pin message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// Delete 删除消息
func (m *telegramMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	if err != nil {
		return fmt.Errorf("failed to delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// MemberRole 查询成员角色
func (m *telegramMessenger) MemberRole(ctx context.Context, chatID, userID int64) (service.MemberRole, error) {
	member, err := m.bot.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return service.RoleOther, fmt.Errorf("failed to get chat member %d in chat %d: %w", userID, chatID, err)
	}
	return memberRole(member.Type), nil
}

func memberRole(t botModels.ChatMemberType) service.MemberRole {
	switch t {
	case botModels.ChatMemberTypeOwner:
		return service.RoleCreator
	case botModels.ChatMemberTypeAdministrator:
		return service.RoleAdministrator
	case botModels.ChatMemberTypeMember:
		return service.RoleMember
	}
	return service.RoleOther
}
