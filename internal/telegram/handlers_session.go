package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/publish"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

const albumHandleTimeout = 30 * time.Second

// handlePrivateInput 私聊普通消息：面板文本输入或帖子内容
func (b *Bot) handlePrivateInput(ctx context.Context, msg *botModels.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if msg.Text != "" {
		switch b.admin.PanelState(userID).Mode {
		case models.PanelWaitReactionPrompt:
			b.saveReactionPrompt(ctx, msg)
			return
		case models.PanelWaitWhitelist:
			b.saveWhitelistInput(ctx, msg)
			return
		}
	}

	// 未注册的命令不当作内容
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return
	}
	if !isContentMessage(msg) {
		return
	}
	if _, ok := b.sessions.Get(userID); !ok {
		return
	}
	if err := b.admin.CheckAccess(userID); err != nil {
		b.sendMessage(ctx, msg.Chat.ID, accessDeniedText(err), msg.ID)
		return
	}

	if msg.MediaGroupID != "" {
		b.albums.Add(msg)
		return
	}
	b.collect(ctx, userID, []*botModels.Message{msg})
}

// handleAlbum 相册收齐后一次性保存
func (b *Bot) handleAlbum(msgs []*botModels.Message) {
	if len(msgs) == 0 || msgs[0].From == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), albumHandleTimeout)
	defer cancel()
	b.collect(ctx, msgs[0].From.ID, msgs)
}

// collect 保存内容并重新推送会话面板
func (b *Bot) collect(ctx context.Context, userID int64, msgs []*botModels.Message) {
	var (
		last  models.ContentKind
		saved int
	)
	for _, m := range msgs {
		for _, in := range contentInputs(m) {
			slot, err := b.sessions.Append(ctx, userID, in)
			switch {
			case errors.Is(err, models.ErrNotCollecting):
				b.sendMessage(ctx, userID, "ℹ️ 当前处于选项面板，请先点击<b>返回编辑</b>再添加内容")
				return
			case errors.Is(err, service.ErrPublishInProgress):
				b.sendMessage(ctx, userID, "⏳ 正在发布中，请稍候再添加内容")
				return
			case errors.Is(err, service.ErrNoSession):
				return
			case err != nil:
				logger.L().Errorf("Failed to append content for user %d: %v", userID, err)
				b.sendErrorMessage(ctx, userID, "保存内容失败，请稍后重试")
				return
			}
			if slot != models.SlotNone {
				saved++
				last = in.Kind
			}
		}
	}
	if saved == 0 {
		return
	}

	sess, ok := b.sessions.Get(userID)
	if !ok {
		return
	}
	metrics.HandlerEvents.WithLabelValues("content_saved").Inc()
	b.pushPanel(ctx, userID, sess, nextHint(sess, last))
}

// pushPanel 删除旧面板并在对话底部发送新面板
func (b *Bot) pushPanel(ctx context.Context, userID int64, sess *models.Session, header string) {
	b.effects.Delete(ctx, userID, sess.PanelMessageID)
	text, kb := b.panelView(sess, header)
	b.setPanelMessage(ctx, userID, b.sendWithKeyboard(ctx, userID, text, kb))
}

// showPanel 在回调所在消息上原地刷新面板
func (b *Bot) showPanel(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session, header string) {
	text, kb := b.panelView(sess, header)
	b.renderScreen(ctx, query, text, kb)
}

// renderScreen 原地刷新回调所在消息，并记录为当前面板
func (b *Bot) renderScreen(ctx context.Context, query *botModels.CallbackQuery, text string, kb service.Keyboard) {
	userID := query.From.ID
	_, msgID := callbackMessage(query)
	b.setPanelMessage(ctx, userID, b.replaceMessage(ctx, userID, msgID, text, kb))
}

func (b *Bot) panelView(sess *models.Session, header string) (string, service.Keyboard) {
	g := b.admin.Settings()
	kb := collectingKeyboard()
	if sess.Stage == models.StageReadyOptions {
		kb = optionsKeyboard(sess, g)
	}
	return panelText(header, sess, g), kb
}

func (b *Bot) setPanelMessage(ctx context.Context, userID int64, messageID int) {
	if messageID == 0 {
		return
	}
	_, err := b.sessions.Update(ctx, userID, func(s *models.Session) error {
		s.PanelMessageID = messageID
		return nil
	})
	if err != nil && !errors.Is(err, service.ErrNoSession) {
		logger.L().Warnf("Failed to remember panel message for user %d: %v", userID, err)
	}
}

// handleSessionCallback 会话面板上的按钮
func (b *Bot) handleSessionCallback(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	userID := query.From.ID
	cb := parseCallback(query.Data)

	if cb.Action == cbNoop {
		b.answerCallback(ctx, query.ID, "")
		return
	}

	sess, ok := b.sessions.Get(userID)
	if !ok {
		b.answerCallbackAlert(ctx, query.ID, "会话已结束，请发送 ok 重新开始")
		return
	}
	if cb.Action != cbCancel {
		if err := b.admin.CheckAccess(userID); err != nil {
			b.answerCallbackAlert(ctx, query.ID, accessDeniedText(err))
			return
		}
	}

	logger.L().Debugf("Session callback: user_id=%d action=%s stage=%s", userID, cb.Action, sess.Stage)

	switch cb.Action {
	case cbDone:
		b.onDone(ctx, query)
	case cbBackToCollect:
		b.onBackToCollect(ctx, query)
	case cbClear:
		b.onClear(ctx, query, sess)
	case cbCancel:
		b.onCancel(ctx, query, sess)
	case cbTogglePin:
		b.onTogglePin(ctx, query)
	case cbReactionsMenu, cbReactionsSet, cbReactionsToggle, cbReactionsSave:
		b.onReactions(ctx, query, sess, cb)
	case cbScheduleMenu, cbScheduleInterval, cbScheduleCount, cbScheduleDone, cbScheduleOff:
		b.onSchedule(ctx, query, sess, cb)
	case cbChooseChats:
		b.onChooseChats(ctx, query, sess)
	case cbToggleChat:
		b.onToggleChat(ctx, query, sess, cb)
	case cbSelectAll:
		b.onSelectAll(ctx, query, sess)
	case cbDoneChats, cbBackMain:
		b.onBackMain(ctx, query, cb.Action == cbDoneChats)
	case cbPreview:
		b.onPreview(ctx, query, sess)
	case cbPublish:
		b.onPublish(ctx, query, sess)
	default:
		b.answerCallback(ctx, query.ID, "")
	}
}

// sessionFailed 会话修改失败时的统一提示
func (b *Bot) sessionFailed(ctx context.Context, query *botModels.CallbackQuery, err error) {
	switch {
	case errors.Is(err, service.ErrNoSession):
		b.answerCallbackAlert(ctx, query.ID, "会话已结束，请发送 ok 重新开始")
	case errors.Is(err, service.ErrPublishInProgress):
		b.answerCallbackAlert(ctx, query.ID, "⏳ 正在发布中，请稍候")
	case errors.Is(err, models.ErrInvalidTransition):
		b.answerCallbackAlert(ctx, query.ID, "当前步骤无法执行此操作")
	case errors.Is(err, models.ErrDestinationRestricted):
		b.answerCallbackAlert(ctx, query.ID, "临时授权仅可发布到授权的聊天")
	default:
		logger.L().Errorf("Session update failed: user_id=%d data=%s: %v", query.From.ID, query.Data, err)
		b.answerCallbackAlert(ctx, query.ID, "操作失败，请稍后重试")
	}
}

func (b *Bot) onDone(ctx context.Context, query *botModels.CallbackQuery) {
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		return s.AdvanceToOptions()
	})
	if errors.Is(err, models.ErrEmptyContent) {
		b.answerCallbackAlert(ctx, query.ID, "请先发送至少一条文本或媒体")
		return
	}
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, "")
	b.showPanel(ctx, query, sess, "⚙️ 设置发布选项，完成后点击<b>预览</b>")
}

func (b *Bot) onBackToCollect(ctx context.Context, query *botModels.CallbackQuery) {
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		return s.BackToCollect()
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, "")
	b.showPanel(ctx, query, sess, "✏️ 继续发送内容，新内容会覆盖同类旧内容，完成后点击<b>完成</b>")
}

func (b *Bot) onClear(ctx context.Context, query *botModels.CallbackQuery, old *models.Session) {
	_, msgID := callbackMessage(query)
	if old.PickerMessageID != msgID {
		b.effects.Delete(ctx, query.From.ID, old.PickerMessageID)
	}
	sess, err := b.sessions.Clear(ctx, query.From.ID)
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, "🧽 已清空")
	b.showPanel(ctx, query, sess, "🧽 内容已清空，请重新发送")
}

func (b *Bot) onCancel(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session) {
	userID := query.From.ID
	_, msgID := callbackMessage(query)
	if err := b.sessions.Cancel(ctx, userID); err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	for _, id := range []int{sess.PanelMessageID, sess.PickerMessageID} {
		if id != msgID {
			b.effects.Delete(ctx, userID, id)
		}
	}
	metrics.HandlerEvents.WithLabelValues("session_cancelled").Inc()
	b.answerCallback(ctx, query.ID, "已结束")
	b.replaceMessage(ctx, userID, msgID, "❌ 会话已结束。发送 <code>ok</code> 重新开始", nil)
}

func (b *Bot) onTogglePin(ctx context.Context, query *botModels.CallbackQuery) {
	if !b.admin.Settings().PinFeatureEnabled {
		b.answerCallbackAlert(ctx, query.ID, "置顶功能已被管理员关闭")
		return
	}
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		s.PinEnabled = !s.PinEnabled
		return nil
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	header := "📌 发布后将置顶"
	if !sess.PinEnabled {
		header = "📌 已关闭置顶"
	}
	b.answerCallback(ctx, query.ID, "")
	b.showPanel(ctx, query, sess, header)
}

func reactionsMenuText(sess *models.Session) string {
	pos, neg := sess.ReactionStyle.Pair()
	return fmt.Sprintf("🎭 <b>评价设置</b>\n当前样式：%s/%s\n选择样式后点击<b>保存</b>", pos, neg)
}

func (b *Bot) onReactions(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session, cb callback) {
	userID := query.From.ID
	if !b.admin.Settings().ReactionsFeatureEnabled {
		b.answerCallbackAlert(ctx, query.ID, "评价功能已被管理员关闭")
		return
	}

	var err error
	switch cb.Action {
	case cbReactionsSet:
		style := models.ReactionStyle(cb.Arg(0))
		if !style.IsValid() {
			b.answerCallback(ctx, query.ID, "未知样式")
			return
		}
		sess, err = b.sessions.Update(ctx, userID, func(s *models.Session) error {
			s.ReactionStyle = style
			s.UseReactions = true
			return nil
		})
	case cbReactionsToggle:
		sess, err = b.sessions.Update(ctx, userID, func(s *models.Session) error {
			s.UseReactions = !s.UseReactions
			return nil
		})
	case cbReactionsSave:
		if sess.UseReactions {
			if err := b.admin.RememberReactionStyle(ctx, userID, sess.ReactionStyle); err != nil {
				logger.L().Warnf("Failed to remember reaction style for user %d: %v", userID, err)
			}
		}
		b.answerCallback(ctx, query.ID, "💾 已保存")
		b.showPanel(ctx, query, sess, "🎭 评价设置已保存")
		return
	}
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, "")
	b.renderScreen(ctx, query, reactionsMenuText(sess), reactionsMenuKeyboard(sess))
}

func scheduleMenuText(sess *models.Session, g models.GlobalSettings) string {
	if g.ScheduleLocked {
		return fmt.Sprintf("⏱️ <b>定时重播</b>\n参数已由管理员锁定：每 %s × %d 次",
			formatInterval(g.RebroadcastIntervalSeconds), g.RebroadcastTotal)
	}
	return fmt.Sprintf("⏱️ <b>定时重播</b>\n发布后按间隔重新发送到相同目标\n当前：每 %s × %d 次",
		formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal)
}

func (b *Bot) onSchedule(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session, cb callback) {
	userID := query.From.ID
	g := b.admin.Settings()
	if !g.SchedulingEnabled {
		b.answerCallbackAlert(ctx, query.ID, "定时重播已被管理员关闭")
		return
	}

	var err error
	switch cb.Action {
	case cbScheduleInterval, cbScheduleCount:
		if g.ScheduleLocked {
			b.answerCallbackAlert(ctx, query.ID, "重播参数已锁定")
			return
		}
		v, ok := cb.Int64(0)
		choices := scheduleIntervals
		if cb.Action == cbScheduleCount {
			choices = scheduleCounts
		}
		if !ok || !slices.Contains(choices, int(v)) {
			b.answerCallback(ctx, query.ID, "无效的选项")
			return
		}
		sess, err = b.sessions.Update(ctx, userID, func(s *models.Session) error {
			if cb.Action == cbScheduleInterval {
				s.RebroadcastIntervalSeconds = int(v)
			} else {
				s.RebroadcastTotal = int(v)
			}
			return nil
		})

	case cbScheduleDone:
		sess, err = b.sessions.Update(ctx, userID, func(s *models.Session) error {
			s.ScheduleActive = true
			if g.ScheduleLocked {
				s.RebroadcastIntervalSeconds = g.RebroadcastIntervalSeconds
				s.RebroadcastTotal = g.RebroadcastTotal
			}
			return nil
		})
		if err != nil {
			b.sessionFailed(ctx, query, err)
			return
		}
		b.answerCallback(ctx, query.ID, "🔁 已启用")
		b.showPanel(ctx, query, sess, fmt.Sprintf("🔁 重播已启用：每 %s × %d 次",
			formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal))
		return

	case cbScheduleOff:
		sess, err = b.sessions.Update(ctx, userID, func(s *models.Session) error {
			s.ScheduleActive = false
			return nil
		})
		if err != nil {
			b.sessionFailed(ctx, query, err)
			return
		}
		b.answerCallback(ctx, query.ID, "⏹ 已取消")
		b.showPanel(ctx, query, sess, "⏹ 已取消定时重播")
		return
	}
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}

	kb := scheduleKeyboard(sess)
	if g.ScheduleLocked {
		kb = lockedScheduleKeyboard(sess)
	}
	b.answerCallback(ctx, query.ID, "")
	b.renderScreen(ctx, query, scheduleMenuText(sess, g), kb)
}

// destinationChoices 会话可选的目标聊天
// 临时授权只能选授权聊天；其余用户为其担任管理员且未停用的已登记聊天
func (b *Bot) destinationChoices(ctx context.Context, userID int64, sess *models.Session) []service.ChatEntry {
	if sess.IsTempGranted {
		known := map[int64]service.ChatEntry{}
		for _, c := range b.admin.KnownChats() {
			known[c.ChatID] = c
		}
		out := make([]service.ChatEntry, 0, len(sess.AllowedChats))
		for _, id := range sess.AllowedChats.Sorted() {
			c, ok := known[id]
			if !ok {
				c = service.ChatEntry{ChatID: id, Title: b.chatTitle(id), Type: models.ChatTypeGroup}
			}
			out = append(out, c)
		}
		return out
	}

	disabled := b.admin.Policy(userID).DisabledChats
	chats := b.membership.AuthorizedChats(ctx, userID)
	out := chats[:0]
	for _, c := range chats {
		if !disabled.Has(c.ChatID) {
			out = append(out, c)
		}
	}
	return out
}

func chatIDs(chats []service.ChatEntry) []int64 {
	ids := make([]int64, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ChatID)
	}
	return ids
}

func pickerText(sess *models.Session) string {
	text := fmt.Sprintf("🗂️ <b>选择发布目标</b>\n已选 %d 个聊天，点击切换", len(sess.ChosenChats))
	if sess.IsTempGranted {
		text += "\n🎟 临时授权仅可发布到授权聊天"
	}
	return text
}

func (b *Bot) onChooseChats(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session) {
	userID := query.From.ID
	chats := b.destinationChoices(ctx, userID, sess)
	if len(chats) == 0 {
		b.answerCallbackAlert(ctx, query.ID, "没有可发布的聊天：请把 bot 加入群组或频道并设为管理员，然后发送 /register")
		return
	}
	available := models.NewIDSet(chatIDs(chats)...)

	sess, err := b.sessions.Update(ctx, userID, func(s *models.Session) error {
		if err := s.OpenDestinations(); err != nil {
			return err
		}
		// 去掉已不可用的目标
		for _, id := range s.ChosenChats.Sorted() {
			if !available.Has(id) {
				s.ChosenChats.Remove(id)
			}
		}
		return nil
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, "")
	b.renderScreen(ctx, query, pickerText(sess), chatPickerKeyboard(chats, sess.ChosenChats))
}

func (b *Bot) onToggleChat(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session, cb callback) {
	chatID, ok := cb.Int64(0)
	if !ok {
		b.answerCallback(ctx, query.ID, "无效的聊天")
		return
	}
	var chosen bool
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		var err error
		chosen, err = s.ToggleDestination(chatID)
		return err
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	note := "已取消"
	if chosen {
		note = "已选择"
	}
	b.answerCallback(ctx, query.ID, note)
	chats := b.destinationChoices(ctx, query.From.ID, sess)
	b.renderScreen(ctx, query, pickerText(sess), chatPickerKeyboard(chats, sess.ChosenChats))
}

func (b *Bot) onSelectAll(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session) {
	chats := b.destinationChoices(ctx, query.From.ID, sess)
	ids := chatIDs(chats)
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		return s.SelectAll(ids)
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	b.answerCallback(ctx, query.ID, fmt.Sprintf("已选 %d 个", len(sess.ChosenChats)))
	b.renderScreen(ctx, query, pickerText(sess), chatPickerKeyboard(chats, sess.ChosenChats))
}

// onBackMain 从子菜单或目标选择返回选项面板
func (b *Bot) onBackMain(ctx context.Context, query *botModels.CallbackQuery, saved bool) {
	sess, err := b.sessions.Update(ctx, query.From.ID, func(s *models.Session) error {
		if s.Stage == models.StageChoosingChats {
			return s.TransitionTo(models.StageReadyOptions)
		}
		return nil
	})
	if err != nil {
		b.sessionFailed(ctx, query, err)
		return
	}
	header := "⚙️ 设置发布选项，完成后点击<b>预览</b>"
	if saved {
		header = fmt.Sprintf("💾 已保存 %d 个目标", len(sess.ChosenChats))
		if len(sess.ChosenChats) == 0 {
			header = "⚠️ 尚未选择任何目标"
		}
	}
	b.answerCallback(ctx, query.ID, "")
	b.showPanel(ctx, query, sess, header)
}

// previewText 预览后的确认信息：目标列表与会被跳过的聊天
func (b *Bot) previewText(sess *models.Session, policy models.EffectivePolicy) string {
	var sb strings.Builder
	sb.WriteString(sessionSummary(sess, b.admin.Settings()))

	fin := sess.Clone().FinalizeForPublish(policy)
	sb.WriteString("\n\n<b>🎯 目标</b>")
	for _, id := range fin.Destinations {
		sb.WriteString("\n• " + html.EscapeString(b.chatTitle(id)))
	}
	for _, id := range fin.Disabled {
		sb.WriteString("\n• <s>" + html.EscapeString(b.chatTitle(id)) + "</s>（已停用）")
	}
	for _, id := range fin.Blocked {
		sb.WriteString("\n• <s>" + html.EscapeString(b.chatTitle(id)) + "</s>（你已被禁止发布）")
	}
	if policy.HideLinks {
		sb.WriteString("\n\n🔗 链接将以文字超链接显示")
	}
	sb.WriteString("\n\n确认无误后点击<b>立即发布</b>")
	return sb.String()
}

func (b *Bot) onPreview(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session) {
	userID := query.From.ID
	if sess.Stage != models.StageReadyOptions {
		b.answerCallbackAlert(ctx, query.ID, "请先点击完成进入选项面板")
		return
	}
	if len(sess.ChosenChats) == 0 {
		b.answerCallbackAlert(ctx, query.ID, "请先选择至少一个目标")
		return
	}

	policy := b.admin.Policy(userID)
	if _, err := b.messenger.SendContent(ctx, userID, sess.Content, service.ContentOptions{HideLinks: policy.HideLinks}); err != nil {
		logger.L().Warnf("Preview failed for user %d: %v", userID, err)
		b.answerCallbackAlert(ctx, query.ID, "预览发送失败："+string(service.ClassifySendError(err).Kind))
		return
	}
	b.answerCallback(ctx, query.ID, "👁️ 预览已发送")

	// 预览在对话底部，确认面板跟在其后
	b.effects.Delete(ctx, userID, sess.PanelMessageID)
	id := b.sendWithKeyboard(ctx, userID, b.previewText(sess, policy), previewKeyboard())
	b.setPanelMessage(ctx, userID, id)
}

func (b *Bot) onPublish(ctx context.Context, query *botModels.CallbackQuery, sess *models.Session) {
	userID := query.From.ID
	_, msgID := callbackMessage(query)
	if sess.Stage != models.StageReadyOptions {
		b.answerCallbackAlert(ctx, query.ID, "请先点击完成进入选项面板")
		return
	}
	if b.admin.Policy(userID).Maintenance {
		b.answerCallbackAlert(ctx, query.ID, maintenanceNotice)
		return
	}

	claimed, err := b.launcher.Claim(userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPublishInProgress):
			b.answerCallbackAlert(ctx, query.ID, "⏳ 正在发布中，请勿重复点击")
		case errors.Is(err, models.ErrInvalidTransition):
			b.answerCallbackAlert(ctx, query.ID, "请先点击完成进入选项面板")
		case errors.Is(err, models.ErrEmptyContent):
			b.answerCallbackAlert(ctx, query.ID, "内容为空，无法发布")
		case errors.Is(err, service.ErrNoSession):
			b.answerCallbackAlert(ctx, query.ID, "会话已结束，请发送 ok 重新开始")
		default:
			logger.L().Errorf("Launch failed for user %d: %v", userID, err)
			b.answerCallbackAlert(ctx, query.ID, "发布失败，请稍后重试")
		}
		return
	}

	b.answerCallback(ctx, query.ID, "🚀 正在发布…")
	b.replaceMessage(ctx, userID, msgID, "⏳ 正在发布，请稍候…", nil)

	report := b.launcher.Run(ctx, userID, claimed)
	summary := html.EscapeString(report.Summary())
	if report.Kept {
		metrics.HandlerEvents.WithLabelValues("publish_failed").Inc()
		kept, ok := b.sessions.Get(userID)
		if !ok {
			b.replaceMessage(ctx, userID, msgID, summary, nil)
			return
		}
		id := b.replaceMessage(ctx, userID, msgID, summary+"\n\n"+sessionSummary(kept, b.admin.Settings()),
			optionsKeyboard(kept, b.admin.Settings()))
		b.setPanelMessage(ctx, userID, id)
		return
	}

	metrics.HandlerEvents.WithLabelValues("published").Inc()
	b.replaceMessage(ctx, userID, msgID, summary, nil)
	b.sendCampaignPanel(ctx, userID, claimed, report)
}

// campaignPanelText 发布后的活动面板文本
func campaignPanelText(sess *models.Session, report publish.LaunchReport) string {
	text := fmt.Sprintf("📣 <b>活动 #%d</b>\n已发布到 %d 个聊天", report.CampaignID, report.Sent)
	if report.Scheduled {
		text += fmt.Sprintf("\n🔁 每 %s 重播，共 %d 次",
			formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal)
	}
	return text
}

// sendCampaignPanel 发给发布者；临时授权的授权人收到只读面板
func (b *Bot) sendCampaignPanel(ctx context.Context, userID int64, sess *models.Session, report publish.LaunchReport) {
	if report.CampaignID == 0 {
		return
	}
	kb := campaignKeyboard(userID, report.CampaignID)
	text := campaignPanelText(sess, report)
	b.sendWithKeyboard(ctx, userID, text, kb)

	if sess.IsTempGranted && sess.GrantedBy != 0 && sess.GrantedBy != userID {
		b.effects.Notify(ctx, sess.GrantedBy, text+fmt.Sprintf("\n👤 发布者：<code>%d</code>（临时授权）", userID),
			service.TextOptions{HTML: true, Keyboard: kb[:1]})
	}
}
