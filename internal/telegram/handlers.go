package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// registerHandlers 注册所有命令处理器（异步执行）
// 各匹配条件互不重叠，未命中的更新交给 handleDefault
func (b *Bot) registerHandlers() {
	// 普通命令
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("start"),
		b.asyncHandler(b.RequirePrivate(b.handleStart)))
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("ping"),
		b.asyncHandler(b.handlePing))
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("register"),
		b.asyncHandler(b.handleRegister))
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("mychats"),
		b.asyncHandler(b.RequirePrivate(b.handleMyChats)))
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("forcesave"),
		b.asyncHandler(b.RequirePrivate(b.RequireOwner(b.handleForceSave))))

	// 群内临时授权
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("ok"),
		b.asyncHandler(b.RequireGroup(b.handleGrant)))

	// 私聊关键字
	b.bot.RegisterHandlerMatchFunc(keywordMatch("ok"),
		b.asyncHandler(b.RequireAccess(b.handleStartKeyword)))

	// 控制面板（ok25s 在维护模式下同样可用）
	b.bot.RegisterHandlerMatchFunc(b.commandMatch("panel"),
		b.asyncHandler(b.RequirePrivate(b.RequirePanelAccess(b.handlePanel))))
	b.bot.RegisterHandlerMatchFunc(keywordMatch("ok25s"),
		b.asyncHandler(b.RequirePanelAccess(b.handlePanel)))

	// 回调按钮（具体前缀优先，其余归会话）
	for _, prefix := range []string{string(models.VoteLike) + ":", string(models.VoteDislike) + ":"} {
		b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, prefix, bot.MatchTypePrefix,
			b.asyncHandler(b.handleVote))
	}
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbShowStats+":", bot.MatchTypePrefix,
		b.asyncHandler(b.handleShowStats))
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbStopRebroadcast+":", bot.MatchTypePrefix,
		b.asyncHandler(b.handleStopRebroadcast))
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbPanel+":", bot.MatchTypePrefix,
		b.asyncHandler(b.RequirePanelAccess(b.handlePanelCallback)))
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbPerm+":", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handlePermCallback)))
	b.bot.RegisterHandlerMatchFunc(sessionCallbackMatch,
		b.asyncHandler(b.handleSessionCallback))

	logger.L().Debug("All handlers registered with async execution")
}

// reservedCallbackPrefixes 由专门处理器负责的回调前缀
var reservedCallbackPrefixes = []string{
	string(models.VoteLike) + ":",
	string(models.VoteDislike) + ":",
	cbShowStats + ":",
	cbStopRebroadcast + ":",
	cbPanel + ":",
	cbPerm + ":",
}

func sessionCallbackMatch(update *botModels.Update) bool {
	if update.CallbackQuery == nil {
		return false
	}
	data := update.CallbackQuery.Data
	for _, prefix := range reservedCallbackPrefixes {
		if strings.HasPrefix(data, prefix) {
			return false
		}
	}
	return true
}

// messageOf 返回普通消息或频道消息
func messageOf(update *botModels.Update) *botModels.Message {
	if update.Message != nil {
		return update.Message
	}
	return update.ChannelPost
}

// parseCommand 解析 "/cmd@bot args"，指向其他 bot 的命令视为不匹配
func parseCommand(text, username string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], strings.TrimSpace(text[i:])
	}
	name, target, hasTarget := strings.Cut(head[1:], "@")
	if name == "" {
		return "", "", false
	}
	if hasTarget && username != "" && !strings.EqualFold(target, username) {
		return "", "", false
	}
	return strings.ToLower(name), rest, true
}

func (b *Bot) commandMatch(name string) bot.MatchFunc {
	return func(update *botModels.Update) bool {
		msg := messageOf(update)
		if msg == nil {
			return false
		}
		cmd, _, ok := parseCommand(msg.Text, b.username)
		return ok && cmd == name
	}
}

// keywordMatch 私聊中整条消息等于关键字（忽略大小写）
func keywordMatch(word string) bot.MatchFunc {
	return func(update *botModels.Update) bool {
		msg := update.Message
		if msg == nil || msg.Chat.Type != botModels.ChatTypePrivate {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(msg.Text), word)
	}
}

// handleStart 处理 /start [token]
func (b *Bot) handleStart(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	user := msg.From

	if b.admin.Settings().MaintenanceMode && !b.admin.IsOwner(user.ID) {
		b.sendMessage(ctx, msg.Chat.ID, maintenanceNotice)
		return
	}

	_, token, _ := parseCommand(msg.Text, b.username)
	if token == "" {
		text := fmt.Sprintf(
			"👋 你好，<b>%s</b>！\n\n"+
				"• 聊天管理员：私聊发送 <code>ok</code> 开始编辑帖子\n"+
				"• 其他成员：请管理员在群内回复你的消息并发送 /ok，获得一次性临时授权\n\n"+
				"可用命令：\n/mychats - 查看可发布的聊天\n/panel - 控制面板\n/ping - 测试连接",
			html.EscapeString(displayName(user)),
		)
		b.sendMessage(ctx, msg.Chat.ID, text)
		return
	}

	chatID, err := b.grants.Redeem(ctx, token, user.ID)
	if err != nil {
		logger.L().Infof("Start token rejected: user_id=%d err=%v", user.ID, err)
		b.sendMessage(ctx, msg.Chat.ID, redeemErrorText(err))
		return
	}

	if !b.startSession(ctx, user) {
		return
	}
	expires := ""
	if g, ok := b.grants.Active(user.ID); ok {
		expires = formatTime(g.Expires.Time)
	}
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
		"🎟 <b>临时发布授权已激活</b>\n• 👤 用户：%s\n• 🎯 目标：%s\n• ⏳ 到期：%s\n• 授权在第一次发布成功后失效",
		html.EscapeString(displayName(user)), html.EscapeString(b.chatTitle(chatID)), expires))
}

func redeemErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenNotOwned):
		return "⛔ 此链接不属于你，请向管理员申请临时发布授权"
	case errors.Is(err, service.ErrTokenExpired):
		return "⌛ 链接已过期"
	case errors.Is(err, service.ErrGrantInactive):
		return "⛔ 授权已使用或已过期"
	case errors.Is(err, service.ErrTokenInvalid):
		return "⛔ 链接无效或已失效"
	}
	return "❌ 授权验证失败，请稍后重试"
}

// handleStartKeyword 私聊 ok：持有授权或任一聊天的管理员可以开始会话
func (b *Bot) handleStartKeyword(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	allowed := b.admin.IsOwner(userID) || b.grants.HasActiveGrant(userID)
	if !allowed {
		allowed = len(b.membership.AuthorizedChats(ctx, userID)) > 0
	}
	if !allowed {
		metrics.HandlerEvents.WithLabelValues("session_denied").Inc()
		b.sendMessage(ctx, msg.Chat.ID, "🔒 仅限聊天管理员或持有有效临时授权的用户使用", msg.ID)
		return
	}
	b.startSession(ctx, msg.From)
}

// startSession 创建新会话并发送引导
func (b *Bot) startSession(ctx context.Context, user *botModels.User) bool {
	if old, ok := b.sessions.Get(user.ID); ok {
		b.effects.Delete(ctx, user.ID, old.PanelMessageID)
		b.effects.Delete(ctx, user.ID, old.PickerMessageID)
	}

	sess, err := b.sessions.Create(ctx, user.ID)
	if err != nil {
		logger.L().Errorf("Failed to create session for user %d: %v", user.ID, err)
		b.sendErrorMessage(ctx, user.ID, "创建会话失败，请稍后重试")
		return false
	}
	metrics.HandlerEvents.WithLabelValues("session_started").Inc()

	const sep = "\n────────────\n"
	text := fmt.Sprintf("👋 <b>你好</b> <i>%s</i>%s"+
		"<b>发布模式</b>\n• 按任意顺序发送<b>文本</b>或<b>媒体</b>\n• 第一条内容后自动保存并显示面板%s"+
		"<b>支持的内容</b>\n• 📝 文本\n• 🖼️ 图片 / 🎞️ 视频 / 🗂️ 相册\n• 📎 文档\n• 🎵 音频 / 🎙️ 语音",
		html.EscapeString(displayName(user)), sep, sep)
	if sess.IsTempGranted {
		text += fmt.Sprintf("\n\n🎟 本次会话只能发布到：<b>%s</b>", html.EscapeString(b.chatTitle(sess.AllowedChats.Sorted()[0])))
	}
	b.sendMessage(ctx, user.ID, text)
	return true
}

// handlePing 处理 /ping 命令
func (b *Bot) handlePing(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := messageOf(update)
	if msg == nil {
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, b.buildPingMessage(ctx))
}

// handleForceSave 启动时快照无法加载，所有者确认后用当前状态覆盖
func (b *Bot) handleForceSave(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := messageOf(update)
	if msg == nil {
		return
	}
	blocked := b.store.SaveBlocked()
	if err := b.store.ForceSave(ctx); err != nil {
		logger.L().Errorf("Forced state save failed: %v", err)
		b.sendErrorMessage(ctx, msg.Chat.ID, "保存失败，请检查存储后端")
		return
	}
	if blocked != nil {
		logger.L().Warnf("Snapshot overwritten by owner %d after failed load", senderID(update))
		b.sendMessage(ctx, msg.Chat.ID, "✅ 已用当前状态覆盖无法读取的快照，自动保存已恢复")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, "✅ 状态已保存")
}

// handleRegister 在群组或频道中登记聊天
func (b *Bot) handleRegister(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := messageOf(update)
	if msg == nil {
		return
	}
	chatType, ok := destinationType(msg.Chat.Type)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "ℹ️ 请在群组或频道内发送此命令完成登记")
		return
	}

	created, err := b.admin.RegisterChat(ctx, msg.Chat.ID, chatTitleOf(msg.Chat), chatType)
	if err != nil {
		logger.L().Errorf("Failed to register chat %d: %v", msg.Chat.ID, err)
		b.sendErrorMessage(ctx, msg.Chat.ID, "登记失败，请稍后重试")
		return
	}
	if msg.From != nil {
		if _, err := b.membership.IsChatAdmin(ctx, msg.Chat.ID, msg.From.ID); err != nil {
			logger.L().Warnf("Admin check failed on register: chat_id=%d user_id=%d: %v", msg.Chat.ID, msg.From.ID, err)
		}
	}

	if created {
		b.sendSuccessMessage(ctx, msg.Chat.ID, "已将此聊天登记为发布目标")
	} else {
		b.sendMessage(ctx, msg.Chat.ID, "ℹ️ 此聊天已登记，信息已更新")
	}
}

// handleMyChats 列出用户作为管理员的已登记聊天
func (b *Bot) handleMyChats(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	chats := b.membership.AuthorizedChats(ctx, msg.From.ID)
	if len(chats) == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "📝 暂无与你关联的聊天\n请确认 Bot 已加入目标聊天，并在其中发送 /register")
		return
	}

	var text strings.Builder
	text.WriteString("🗂️ <b>你的发布目标</b>\n\n")
	for _, c := range chats {
		kind := "群组"
		if c.Type == models.ChatTypeChannel {
			kind = "频道"
		}
		text.WriteString(fmt.Sprintf("%s %s — %s\n", chatBadge(c.Type), html.EscapeString(c.Title), kind))
	}
	b.sendMessage(ctx, msg.Chat.ID, text.String())
}

// handleGrant 群内管理员回复成员消息并发送 /ok，授予一次性发布授权
func (b *Bot) handleGrant(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	chat := msg.Chat

	req := service.GrantRequest{ChatID: chat.ID, AdminID: msg.From.ID}
	reply := msg.ReplyToMessage
	if reply != nil && reply.From != nil {
		req.IsReply = true
		req.TargetUserID = reply.From.ID
		req.TargetIsBot = reply.From.IsBot
	}

	ticket, err := b.grants.Grant(ctx, req)
	if err != nil {
		logger.L().Infof("Grant rejected: chat_id=%d admin_id=%d err=%v", chat.ID, msg.From.ID, err)
		b.sendMessage(ctx, chat.ID, grantErrorText(err), msg.ID)
		return
	}
	metrics.HandlerEvents.WithLabelValues("grant_issued").Inc()

	if _, err := b.admin.RegisterChat(ctx, chat.ID, chatTitleOf(chat), models.ChatTypeGroup); err != nil {
		logger.L().Warnf("Failed to register chat %d on grant: %v", chat.ID, err)
	}

	target := reply.From
	name := html.EscapeString(displayName(target))
	kb := service.Keyboard{{{Text: "🚀 立即开始发布", URL: ticket.DeepLink(b.username)}}}

	groupText := fmt.Sprintf(
		"👤 <a href=\"tg://user?id=%d\">%s</a>\n<b>已获得临时发布授权</b>\n⏳ 到期：%s\n✅ 支持评价与快速发布（一次性）\n\n点击按钮在私聊中开始",
		target.ID, name, formatTime(ticket.Expires))
	announceID := b.effects.Notify(ctx, chat.ID, groupText, service.TextOptions{
		ReplyTo:  reply.ID,
		Keyboard: kb,
		HTML:     true,
	})
	b.grants.AttachAnnouncement(ctx, target.ID, announceID)

	dmText := fmt.Sprintf("👋 你好 <b>%s</b>\n\n已获得在 <b>%s</b> 的临时发布授权\n⏳ 到期：%s\n\n点击按钮开始",
		name, html.EscapeString(chatTitleOf(chat)), formatTime(ticket.Expires))
	b.effects.Notify(ctx, target.ID, dmText, service.TextOptions{Keyboard: kb, HTML: true})
}

func grantErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrNotChatAdmin):
		return "🚫 此命令仅限管理员使用"
	case errors.Is(err, service.ErrGrantRequiresReply):
		return "⚠️ 请回复要授权成员的消息并发送 /ok"
	case errors.Is(err, service.ErrGrantBotTarget):
		return "⚠️ 不能授权给 Bot"
	}
	return "❌ 授权失败，请稍后重试"
}

// handleDefault 处理未被命令或回调匹配的更新
func (b *Bot) handleDefault(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	switch {
	case update.MyChatMember != nil:
		b.handleMyMemberUpdate(ctx, update.MyChatMember)
	case update.ChatMember != nil:
		b.handleMemberUpdate(ctx, update.ChatMember)
	case update.ChannelPost != nil:
		b.autoRegister(ctx, update.ChannelPost)
	case update.Message != nil:
		msg := update.Message
		if msg.Chat.Type == botModels.ChatTypePrivate {
			b.handlePrivateInput(ctx, msg)
			return
		}
		b.autoRegister(ctx, msg)
	case update.CallbackQuery != nil:
		b.answerCallback(ctx, update.CallbackQuery.ID, "")
	}
}

// autoRegister 群组或频道中的任意消息都会登记该聊天
func (b *Bot) autoRegister(ctx context.Context, msg *botModels.Message) {
	chatType, ok := destinationType(msg.Chat.Type)
	if !ok {
		return
	}
	if _, err := b.admin.RegisterChat(ctx, msg.Chat.ID, chatTitleOf(msg.Chat), chatType); err != nil {
		logger.L().Warnf("Auto register failed: chat_id=%d: %v", msg.Chat.ID, err)
		return
	}
	if msg.From != nil && !msg.From.IsBot {
		// 结果已缓存，同时记录已知管理员
		if _, err := b.membership.IsChatAdmin(ctx, msg.Chat.ID, msg.From.ID); err != nil {
			logger.L().Debugf("Admin check failed on auto register: chat_id=%d user_id=%d: %v", msg.Chat.ID, msg.From.ID, err)
		}
	}
}

// handleMemberUpdate 成员角色变化后清除缓存
func (b *Bot) handleMemberUpdate(ctx context.Context, upd *botModels.ChatMemberUpdated) {
	chatType, ok := destinationType(upd.Chat.Type)
	if !ok {
		return
	}
	b.membership.InvalidateChat(upd.Chat.ID)
	if _, err := b.admin.RegisterChat(ctx, upd.Chat.ID, chatTitleOf(upd.Chat), chatType); err != nil {
		logger.L().Warnf("Failed to register chat %d on member update: %v", upd.Chat.ID, err)
	}
}

// handleMyMemberUpdate Bot 自身被加入或移出聊天
func (b *Bot) handleMyMemberUpdate(ctx context.Context, upd *botModels.ChatMemberUpdated) {
	switch upd.NewChatMember.Type {
	case botModels.ChatMemberTypeLeft, botModels.ChatMemberTypeBanned:
		b.membership.InvalidateChat(upd.Chat.ID)
		if err := b.admin.ForgetChat(ctx, upd.Chat.ID); err != nil {
			logger.L().Warnf("Failed to forget chat %d: %v", upd.Chat.ID, err)
			return
		}
		logger.L().Infof("Bot removed from chat, registration dropped: chat_id=%d", upd.Chat.ID)
	default:
		b.handleMemberUpdate(ctx, upd)
	}
}

// destinationType 群组和频道可以作为发布目标
func destinationType(t botModels.ChatType) (models.ChatType, bool) {
	switch t {
	case botModels.ChatTypeGroup, botModels.ChatTypeSupergroup:
		return models.ChatTypeGroup, true
	case botModels.ChatTypeChannel:
		return models.ChatTypeChannel, true
	}
	return "", false
}

func chatTitleOf(chat botModels.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	return fmt.Sprintf("%d", chat.ID)
}

// chatTitle 已登记聊天的标题
func (b *Bot) chatTitle(chatID int64) string {
	return b.admin.ChatTitle(chatID)
}
