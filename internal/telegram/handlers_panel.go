package telegram

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

const campaignsPageSize = 8

// 控制面板动作（panel:<action>:args）
const (
	panelMain         = "main"
	panelToggle       = "toggle"
	panelPrompt       = "prompt"
	panelPromptReset  = "prompt_reset"
	panelPromptCancel = "prompt_cancel"
	panelSchedule     = "sched"
	panelSchedInt     = "sched_int"
	panelSchedCount   = "sched_cnt"
	panelCampaigns    = "campaigns"
	panelCampaign     = "campaign"
	panelRebroadcasts = "rebroadcasts"
	panelRBStop       = "rb_stop"
	panelRBStopAll    = "rb_stop_all"
	panelChats        = "chats"
	panelChatToggle   = "chat_toggle"
	panelPrefs        = "prefs"
	panelPref         = "pref"
	panelAccess       = "access"
	panelMode         = "mode"
	panelWLAdd        = "wl_add"
	panelWLRemove     = "wl_rm"
	panelClose        = "close"
)

// ownerOnlyPanelActions 全局设置类动作仅限 Bot 所有者
var ownerOnlyPanelActions = []string{
	panelToggle, panelPrompt, panelPromptReset, panelPromptCancel,
	panelSchedule, panelSchedInt, panelSchedCount,
	panelCampaigns, panelCampaign, panelRebroadcasts, panelRBStop, panelRBStopAll,
	panelAccess, panelMode, panelWLAdd, panelWLRemove,
}

func panelData(action string, args ...any) string {
	return callbackData(cbPanel, append([]any{action}, args...)...)
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

// mainPanel 控制面板首页
func (b *Bot) mainPanel(userID int64) (string, service.Keyboard) {
	var kb service.Keyboard
	var sb strings.Builder
	sb.WriteString("🛠 <b>控制面板</b>")

	if b.admin.IsOwner(userID) {
		g := b.admin.Settings()
		fmt.Fprintf(&sb, "\n\n⏱️ 默认重播：每 %s × %d 次\n💬 评价提示：%s",
			formatInterval(g.RebroadcastIntervalSeconds), g.RebroadcastTotal, html.EscapeString(g.ReactionPromptText))
		if g.MaintenanceMode {
			sb.WriteString("\n\n" + maintenanceNotice)
		}

		toggle := func(label string, v bool, flag service.GlobalFlag) service.Button {
			return btn(fmt.Sprintf("%s %s", onOff(v), label), panelData(panelToggle, flag))
		}
		kb = append(kb,
			row(toggle("定时重播", g.SchedulingEnabled, service.FlagScheduling),
				toggle("锁定重播参数", g.ScheduleLocked, service.FlagScheduleLock)),
			row(toggle("评价功能", g.ReactionsFeatureEnabled, service.FlagReactions),
				toggle("置顶功能", g.PinFeatureEnabled, service.FlagPin)),
			row(toggle("默认开启评价", g.DefaultReactionsEnabled, service.FlagDefaultReactions),
				toggle("默认隐藏链接", g.HideLinksDefault, service.FlagHideLinks)),
			row(toggle("维护模式", g.MaintenanceMode, service.FlagMaintenance)),
			row(btn("💬 评价提示文案", panelData(panelPrompt)), btn("⏱️ 默认重播", panelData(panelSchedule))),
			row(btn("📊 活动统计", panelData(panelCampaigns, 0)), btn("🔁 重播任务", panelData(panelRebroadcasts))),
			row(btn("🔐 发布权限", panelData(panelAccess)), btn("👮 管理员封禁", callbackData(cbPerm, "chats"))),
		)
	}

	kb = append(kb,
		row(btn("🗂️ 我的聊天", panelData(panelChats)), btn("⚙️ 个人偏好", panelData(panelPrefs))),
		row(btn("✖️ 关闭", panelData(panelClose))),
	)
	return sb.String(), kb
}

// handlePanel /panel 与私聊 ok25s：在对话底部打开控制面板
func (b *Bot) handlePanel(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	if msg.Chat.Type != botModels.ChatTypePrivate {
		b.sendMessage(ctx, msg.Chat.ID, "ℹ️ 请私聊我打开控制面板", msg.ID)
		return
	}

	old := b.admin.PanelState(userID)
	b.effects.Delete(ctx, userID, old.MessageID)

	text, kb := b.mainPanel(userID)
	id := b.sendWithKeyboard(ctx, userID, text, kb)
	err := b.admin.SetPanelState(ctx, userID, func(ps *models.PanelState) {
		ps.Mode = ""
		ps.MessageID = id
	})
	if err != nil {
		logger.L().Warnf("Failed to save panel state for user %d: %v", userID, err)
	}
}

// renderPanel 在面板消息上原地刷新
func (b *Bot) renderPanel(ctx context.Context, query *botModels.CallbackQuery, text string, kb service.Keyboard) {
	userID := query.From.ID
	_, msgID := callbackMessage(query)
	id := b.replaceMessage(ctx, userID, msgID, text, kb)
	if id != msgID {
		_ = b.admin.SetPanelState(ctx, userID, func(ps *models.PanelState) { ps.MessageID = id })
	}
}

func (b *Bot) setPanelMode(ctx context.Context, userID int64, mode string) {
	if err := b.admin.SetPanelState(ctx, userID, func(ps *models.PanelState) { ps.Mode = mode }); err != nil {
		logger.L().Warnf("Failed to save panel mode for user %d: %v", userID, err)
	}
}

// handlePanelCallback panel:<action>:args
func (b *Bot) handlePanelCallback(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	userID := query.From.ID
	c := parseCallback(query.Data)
	action := c.Arg(0)
	args := callback{Action: action}
	if len(c.Args) > 1 {
		args.Args = c.Args[1:]
	}

	if slices.Contains(ownerOnlyPanelActions, action) && !b.admin.IsOwner(userID) {
		b.answerCallbackAlert(ctx, query.ID, "此功能仅限 Bot Owner 使用")
		return
	}

	switch action {
	case panelMain:
		b.setPanelMode(ctx, userID, "")
		b.answerCallback(ctx, query.ID, "")
		text, kb := b.mainPanel(userID)
		b.renderPanel(ctx, query, text, kb)

	case panelToggle:
		flag := service.GlobalFlag(args.Arg(0))
		v, err := b.admin.Toggle(ctx, flag)
		if err != nil {
			logger.L().Errorf("Failed to toggle %s: %v", flag, err)
			b.answerCallbackAlert(ctx, query.ID, "切换失败")
			return
		}
		b.answerCallback(ctx, query.ID, onOff(v))
		text, kb := b.mainPanel(userID)
		b.renderPanel(ctx, query, text, kb)

	case panelPrompt, panelPromptReset, panelPromptCancel:
		b.onPanelPrompt(ctx, query, action)

	case panelSchedule, panelSchedInt, panelSchedCount:
		b.onPanelSchedule(ctx, query, args)

	case panelCampaigns, panelCampaign:
		b.onPanelCampaigns(ctx, query, args)

	case panelRebroadcasts, panelRBStop, panelRBStopAll:
		b.onPanelRebroadcasts(ctx, query, args)

	case panelChats, panelChatToggle:
		b.onPanelChats(ctx, query, args)

	case panelPrefs, panelPref:
		b.onPanelPrefs(ctx, query, args)

	case panelAccess, panelMode, panelWLAdd, panelWLRemove:
		b.onPanelAccess(ctx, query, args)

	case panelClose:
		b.answerCallback(ctx, query.ID, "")
		chatID, msgID := callbackMessage(query)
		b.effects.Delete(ctx, chatID, msgID)
		_ = b.admin.SetPanelState(ctx, userID, func(ps *models.PanelState) {
			ps.Mode = ""
			ps.MessageID = 0
		})

	default:
		b.answerCallback(ctx, query.ID, "")
	}
}

func (b *Bot) onPanelPrompt(ctx context.Context, query *botModels.CallbackQuery, action string) {
	userID := query.From.ID
	switch action {
	case panelPromptReset:
		if err := b.admin.SetReactionPrompt(ctx, ""); err != nil {
			logger.L().Errorf("Failed to reset reaction prompt: %v", err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
		b.setPanelMode(ctx, userID, "")
		b.answerCallback(ctx, query.ID, "已恢复默认")
		text, kb := b.mainPanel(userID)
		b.renderPanel(ctx, query, text, kb)
		return
	case panelPromptCancel:
		b.setPanelMode(ctx, userID, "")
		b.answerCallback(ctx, query.ID, "")
		text, kb := b.mainPanel(userID)
		b.renderPanel(ctx, query, text, kb)
		return
	}

	b.setPanelMode(ctx, userID, models.PanelWaitReactionPrompt)
	b.answerCallback(ctx, query.ID, "")
	current := b.admin.Settings().ReactionPromptText
	b.renderPanel(ctx, query,
		fmt.Sprintf("💬 <b>评价提示文案</b>\n当前：%s\n\n请直接发送新的文案", html.EscapeString(current)),
		service.Keyboard{
			row(btn("↩️ 恢复默认", panelData(panelPromptReset))),
			row(btn("⬅️ 返回", panelData(panelPromptCancel))),
		})
}

// saveReactionPrompt 面板等待文案时收到的文本
func (b *Bot) saveReactionPrompt(ctx context.Context, msg *botModels.Message) {
	userID := msg.From.ID
	b.setPanelMode(ctx, userID, "")
	if !b.admin.IsOwner(userID) {
		return
	}
	text := sanitizeText(msg.Text)
	if err := b.admin.SetReactionPrompt(ctx, text); err != nil {
		logger.L().Errorf("Failed to save reaction prompt: %v", err)
		b.sendErrorMessage(ctx, userID, "保存失败，请稍后重试")
		return
	}
	logger.L().Infof("Reaction prompt updated by owner %d", userID)
	b.sendSuccessMessage(ctx, userID, "评价提示文案已更新：<i>"+html.EscapeString(b.admin.Settings().ReactionPromptText)+"</i>")
}

func (b *Bot) onPanelSchedule(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	g := b.admin.Settings()
	interval, total := g.RebroadcastIntervalSeconds, g.RebroadcastTotal

	if args.Action != panelSchedule {
		v, ok := args.Int64(0)
		choices := scheduleIntervals
		if args.Action == panelSchedCount {
			choices = scheduleCounts
		}
		if !ok || !slices.Contains(choices, int(v)) {
			b.answerCallback(ctx, query.ID, "无效的选项")
			return
		}
		if args.Action == panelSchedInt {
			interval = int(v)
		} else {
			total = int(v)
		}
		if err := b.admin.SetDefaultSchedule(ctx, interval, total); err != nil {
			logger.L().Errorf("Failed to save default schedule: %v", err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
	}
	b.answerCallback(ctx, query.ID, "")

	intervals := make([]service.Button, 0, len(scheduleIntervals))
	for _, secs := range scheduleIntervals {
		label := formatInterval(secs)
		if secs == interval {
			label = "• " + label
		}
		intervals = append(intervals, btn(label, panelData(panelSchedInt, secs)))
	}
	counts := make([]service.Button, 0, len(scheduleCounts))
	for _, n := range scheduleCounts {
		label := fmt.Sprintf("%d×", n)
		if n == total {
			label = "• " + label
		}
		counts = append(counts, btn(label, panelData(panelSchedCount, n)))
	}
	b.renderPanel(ctx, query,
		fmt.Sprintf("⏱️ <b>默认重播</b>\n新会话默认：每 %s × %d 次\n锁定时所有重播使用此参数",
			formatInterval(interval), total),
		service.Keyboard{intervals, counts, row(btn("⬅️ 返回", panelData(panelMain)))})
}

func (b *Bot) onPanelCampaigns(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	if args.Action == panelCampaign {
		id, ok := args.Int64(0)
		page, _ := args.Int64(1)
		st, found := b.campaigns.Stats(id)
		if !ok || !found {
			b.answerCallbackAlert(ctx, query.ID, "活动不存在或已过期")
			return
		}
		b.answerCallback(ctx, query.ID, "")
		b.renderPanel(ctx, query, campaignStatsText(st),
			backKeyboard(panelData(panelCampaigns, page)))
		return
	}

	ids := b.campaigns.List()
	pages := max(1, (len(ids)+campaignsPageSize-1)/campaignsPageSize)
	p, _ := args.Int64(0)
	page := min(max(int(p), 0), pages-1)

	start := page * campaignsPageSize
	end := min(start+campaignsPageSize, len(ids))

	var kb service.Keyboard
	for _, id := range ids[start:end] {
		label := fmt.Sprintf("#%d", id)
		if st, ok := b.campaigns.Stats(id); ok {
			pos, neg := st.Style.Pair()
			label = fmt.Sprintf("#%d · %s %d · %s %d · %d 个聊天", id, pos, st.Tally.Like, neg, st.Tally.Dislike, len(st.PerChat))
		}
		kb = append(kb, row(btn(label, panelData(panelCampaign, id, page))))
	}
	var nav []service.Button
	if page > 0 {
		nav = append(nav, btn("⬅️ 上一页", panelData(panelCampaigns, page-1)))
	}
	if page < pages-1 {
		nav = append(nav, btn("下一页 ➡️", panelData(panelCampaigns, page+1)))
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	kb = append(kb, row(btn("⬅️ 返回", panelData(panelMain))))

	_ = b.admin.SetPanelState(ctx, query.From.ID, func(ps *models.PanelState) { ps.CampaignsPage = page })
	b.answerCallback(ctx, query.ID, "")
	text := fmt.Sprintf("📊 <b>活动统计</b>（第 %d/%d 页，共 %d 个）", page+1, pages, len(ids))
	if len(ids) == 0 {
		text = "📊 <b>活动统计</b>\n暂无活动"
	}
	b.renderPanel(ctx, query, text, kb)
}

func (b *Bot) onPanelRebroadcasts(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	switch args.Action {
	case panelRBStop:
		owner, ok1 := args.Int64(0)
		campaign, ok2 := args.Int64(1)
		if !ok1 || !ok2 || !b.rebroadcasts.Stop(ctx, owner, campaign) {
			b.answerCallback(ctx, query.ID, "没有进行中的重播")
		} else {
			b.answerCallback(ctx, query.ID, "⏹️ 已停止")
		}
	case panelRBStopAll:
		n := b.rebroadcasts.StopAll(ctx)
		logger.L().Infof("All rebroadcasts stopped by owner %d: count=%d", query.From.ID, n)
		b.answerCallback(ctx, query.ID, fmt.Sprintf("⏹️ 已停止 %d 个重播", n))
	default:
		b.answerCallback(ctx, query.ID, "")
	}

	active := b.rebroadcasts.Active()
	kb := make(service.Keyboard, 0, len(active)+2)
	for _, p := range active {
		kb = append(kb, row(btn(fmt.Sprintf("⏹ #%d · %d/%d · %d 个聊天", p.CampaignID, p.Done(), p.Total, len(p.Destinations)),
			panelData(panelRBStop, p.OwnerID, p.CampaignID))))
	}
	if len(active) > 1 {
		kb = append(kb, row(btn("⏹ 全部停止", panelData(panelRBStopAll))))
	}
	kb = append(kb, row(btn("⬅️ 返回", panelData(panelMain))))

	text := fmt.Sprintf("🔁 <b>重播任务</b>\n进行中 %d 个，点击停止", len(active))
	for _, p := range active {
		if in, ok := b.nextRunIn(p.OwnerID, p.CampaignID); ok {
			text += fmt.Sprintf("\n• #%d 下次约 %s 后", p.CampaignID, in)
		}
	}
	if len(active) == 0 {
		text = "🔁 <b>重播任务</b>\n没有进行中的重播"
	}
	b.renderPanel(ctx, query, text, kb)
}

// onPanelChats 管理员停用/启用自己的目标聊天
func (b *Bot) onPanelChats(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	userID := query.From.ID
	if args.Action == panelChatToggle {
		chatID, ok := args.Int64(0)
		if !ok {
			b.answerCallback(ctx, query.ID, "无效的聊天")
			return
		}
		disabled, err := b.admin.ToggleDisabledChat(ctx, userID, chatID)
		if err != nil {
			logger.L().Errorf("Failed to toggle disabled chat: %v", err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
		note := "已启用"
		if disabled {
			note = "已停用"
		}
		b.answerCallback(ctx, query.ID, note)
	} else {
		b.answerCallback(ctx, query.ID, "")
	}

	chats := b.membership.AuthorizedChats(ctx, userID)
	disabled := b.admin.AdminSettings(userID).DisabledChats
	kb := make(service.Keyboard, 0, len(chats)+1)
	for _, c := range chats {
		kb = append(kb, row(btn(fmt.Sprintf("%s %s %s", chatBadge(c.Type), onOff(!disabled.Has(c.ChatID)), c.Title),
			panelData(panelChatToggle, c.ChatID))))
	}
	kb = append(kb, row(btn("⬅️ 返回", panelData(panelMain))))

	text := "🗂️ <b>我的聊天</b>\n停用的聊天不会出现在目标列表中"
	if len(chats) == 0 {
		text = "🗂️ <b>我的聊天</b>\n暂无可管理的聊天，请把 bot 加入群组或频道后发送 /register"
	}
	b.renderPanel(ctx, query, text, kb)
}

func (b *Bot) onPanelPrefs(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	userID := query.From.ID
	if args.Action == panelPref {
		pref := service.Preference(args.Arg(0))
		if _, err := b.admin.TogglePreference(ctx, userID, pref); err != nil {
			logger.L().Errorf("Failed to toggle preference %s: %v", pref, err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
	}
	b.answerCallback(ctx, query.ID, "")

	a := b.admin.AdminSettings(userID)
	style := "未设置"
	if a.LastReactionStyle.IsValid() {
		pos, neg := a.LastReactionStyle.Pair()
		style = pos + "/" + neg
	}
	b.renderPanel(ctx, query,
		fmt.Sprintf("⚙️ <b>个人偏好</b>\n新会话使用这些默认值\n最近使用的评价样式：%s", style),
		service.Keyboard{
			row(btn(onOff(a.DefaultReactionsEnabled)+" 默认开启评价", panelData(panelPref, service.PrefDefaultReactions))),
			row(btn(onOff(a.HideLinksDefault)+" 隐藏链接", panelData(panelPref, service.PrefHideLinks))),
			row(btn("⬅️ 返回", panelData(panelMain))),
		})
}

// onPanelAccess 所有者的发布权限模式与白名单
func (b *Bot) onPanelAccess(ctx context.Context, query *botModels.CallbackQuery, args callback) {
	userID := query.From.ID
	switch args.Action {
	case panelMode:
		mode := models.PermissionsWhitelist
		if b.admin.AdminSettings(userID).PermissionsMode == models.PermissionsWhitelist {
			mode = models.PermissionsAll
		}
		if err := b.admin.SetPermissionsMode(ctx, userID, mode); err != nil {
			logger.L().Errorf("Failed to set permissions mode: %v", err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
		logger.L().Infof("Permissions mode changed by owner %d: %s", userID, mode)
	case panelWLAdd:
		b.setPanelMode(ctx, userID, models.PanelWaitWhitelist)
		b.answerCallback(ctx, query.ID, "")
		b.renderPanel(ctx, query, "🔐 请发送要加入白名单的用户 ID（数字）",
			backKeyboard(panelData(panelAccess)))
		return
	case panelWLRemove:
		target, ok := args.Int64(0)
		if ok {
			if _, err := b.admin.ToggleWhitelist(ctx, userID, target); err != nil {
				logger.L().Errorf("Failed to update whitelist: %v", err)
			}
		}
	default:
		b.setPanelMode(ctx, userID, "")
	}
	b.answerCallback(ctx, query.ID, "")
	text, kb := b.accessPanel(userID)
	b.renderPanel(ctx, query, text, kb)
}

func (b *Bot) accessPanel(userID int64) (string, service.Keyboard) {
	a := b.admin.AdminSettings(userID)
	mode := "所有人"
	if a.PermissionsMode == models.PermissionsWhitelist {
		mode = "仅白名单"
	}
	text := fmt.Sprintf("🔐 <b>发布权限</b>\n当前模式：%s\n白名单：%d 人", mode, len(a.Whitelist))

	kb := service.Keyboard{row(btn("🔄 切换模式", panelData(panelMode)), btn("➕ 添加", panelData(panelWLAdd)))}
	for _, id := range a.Whitelist.Sorted() {
		kb = append(kb, row(btn(fmt.Sprintf("➖ %d", id), panelData(panelWLRemove, id))))
	}
	kb = append(kb, row(btn("⬅️ 返回", panelData(panelMain))))
	return text, kb
}

// saveWhitelistInput 面板等待白名单 ID 时收到的文本
func (b *Bot) saveWhitelistInput(ctx context.Context, msg *botModels.Message) {
	userID := msg.From.ID
	b.setPanelMode(ctx, userID, "")
	if !b.admin.IsOwner(userID) {
		return
	}
	target, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil || target <= 0 {
		b.sendErrorMessage(ctx, userID, "请输入有效的数字用户 ID")
		return
	}
	if b.admin.AdminSettings(userID).Whitelist.Has(target) {
		b.sendMessage(ctx, userID, fmt.Sprintf("ℹ️ <code>%d</code> 已在白名单中", target))
		return
	}
	if _, err := b.admin.ToggleWhitelist(ctx, userID, target); err != nil {
		logger.L().Errorf("Failed to update whitelist: %v", err)
		b.sendErrorMessage(ctx, userID, "保存失败，请稍后重试")
		return
	}
	b.sendSuccessMessage(ctx, userID, fmt.Sprintf("已将 <code>%d</code> 加入白名单", target))
	text, kb := b.accessPanel(userID)
	b.sendWithKeyboard(ctx, userID, text, kb)
}

// handlePermCallback perm:chats | perm:chat:<id> | perm:toggle:<chat>:<user>
func (b *Bot) handlePermCallback(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	c := parseCallback(query.Data)

	switch c.Arg(0) {
	case "toggle":
		chatID, ok1 := c.Int64(1)
		target, ok2 := c.Int64(2)
		if !ok1 || !ok2 {
			b.answerCallback(ctx, query.ID, "按钮已失效")
			return
		}
		blocked, err := b.admin.ToggleBlockedAdmin(ctx, chatID, target)
		if err != nil {
			logger.L().Errorf("Failed to toggle blocked admin: %v", err)
			b.answerCallbackAlert(ctx, query.ID, "保存失败")
			return
		}
		note := "已解除封禁"
		if blocked {
			note = "已禁止发布"
		}
		b.answerCallback(ctx, query.ID, note)
		b.renderChatAdmins(ctx, query, chatID)

	case "chat":
		chatID, ok := c.Int64(1)
		if !ok {
			b.answerCallback(ctx, query.ID, "按钮已失效")
			return
		}
		b.answerCallback(ctx, query.ID, "")
		b.renderChatAdmins(ctx, query, chatID)

	default:
		b.answerCallback(ctx, query.ID, "")
		chats := b.admin.KnownChats()
		kb := make(service.Keyboard, 0, len(chats)+1)
		for _, ch := range chats {
			kb = append(kb, row(btn(fmt.Sprintf("%s %s", chatBadge(ch.Type), ch.Title), callbackData(cbPerm, "chat", ch.ChatID))))
		}
		kb = append(kb, row(btn("⬅️ 返回", panelData(panelMain))))
		text := "👮 <b>管理员封禁</b>\n选择聊天，禁止指定管理员向其发布"
		if len(chats) == 0 {
			text = "👮 <b>管理员封禁</b>\n暂无已登记的聊天"
		}
		b.renderPanel(ctx, query, text, kb)
	}
}

func (b *Bot) renderChatAdmins(ctx context.Context, query *botModels.CallbackQuery, chatID int64) {
	admins := b.admin.ChatAdmins(chatID)
	kb := make(service.Keyboard, 0, len(admins)+1)
	for _, a := range admins {
		mark := "✅"
		if a.Blocked {
			mark = "🚫"
		}
		kb = append(kb, row(btn(fmt.Sprintf("%s %d (%s)", mark, a.UserID, a.Role),
			callbackData(cbPerm, "toggle", chatID, a.UserID))))
	}
	kb = append(kb, row(btn("⬅️ 返回", callbackData(cbPerm, "chats"))))

	text := fmt.Sprintf("👮 <b>%s</b>\n🚫 表示禁止发布，点击切换", html.EscapeString(b.chatTitle(chatID)))
	if len(admins) == 0 {
		text = fmt.Sprintf("👮 <b>%s</b>\n暂无记录的管理员（管理员使用 /register 或发布后会出现在这里）",
			html.EscapeString(b.chatTitle(chatID)))
	}
	b.renderPanel(ctx, query, text, kb)
}
