package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"

	botModels "github.com/go-telegram/bot/models"
)

// 会话回调
const (
	cbDone             = "done"
	cbBackToCollect    = "back_to_collect"
	cbClear            = "clear"
	cbCancel           = "cancel"
	cbTogglePin        = "toggle_pin"
	cbReactionsMenu    = "reactions_menu"
	cbReactionsSet     = "reactions_set"
	cbReactionsToggle  = "reactions_toggle"
	cbReactionsSave    = "reactions_save"
	cbScheduleMenu     = "schedule_menu"
	cbScheduleInterval = "ssched_int"
	cbScheduleCount    = "ssched_count"
	cbScheduleDone     = "sschedule_done"
	cbScheduleOff      = "sschedule_off"
	cbNoop             = "noop"
	cbChooseChats      = "choose_chats"
	cbToggleChat       = "toggle_chat"
	cbSelectAll        = "select_all"
	cbDoneChats        = "done_chats"
	cbBackMain         = "back_main"
	cbPreview          = "preview"
	cbPublish          = "publish"
)

// 活动面板回调
const (
	cbShowStats       = "show_stats"
	cbStopRebroadcast = "stop_rebroadcast"
)

// 控制面板回调前缀
const (
	cbPanel = "panel"
	cbPerm  = "perm"
)

var (
	scheduleIntervals = []int{7200, 14400, 21600, 43200}
	scheduleCounts    = []int{2, 4, 8, 12}
)

// callback 解析后的回调数据：action:arg1:arg2...
type callback struct {
	Action string
	Args   []string
}

func parseCallback(data string) callback {
	parts := strings.Split(strings.TrimSpace(data), ":")
	return callback{Action: parts[0], Args: parts[1:]}
}

// Arg 返回第 i 个参数，不存在时为空
func (c callback) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Int64 以整数读取第 i 个参数
func (c callback) Int64(i int) (int64, bool) {
	v, err := strconv.ParseInt(c.Arg(i), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func callbackData(action string, args ...any) string {
	if len(args) == 0 {
		return action
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, action)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ":")
}

func btn(text, data string) service.Button {
	return service.Button{Text: text, Data: data}
}

func row(buttons ...service.Button) []service.Button {
	return buttons
}

// inlineMarkup 转换为 Bot API 内联键盘；空键盘用于移除按钮
func inlineMarkup(kb service.Keyboard) *botModels.InlineKeyboardMarkup {
	rows := make([][]botModels.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		if len(r) == 0 {
			continue
		}
		buttons := make([]botModels.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			button := botModels.InlineKeyboardButton{Text: b.Text}
			if b.URL != "" {
				button.URL = b.URL
			} else {
				button.CallbackData = b.Data
			}
			buttons = append(buttons, button)
		}
		rows = append(rows, buttons)
	}
	return &botModels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func backKeyboard(data string) service.Keyboard {
	return service.Keyboard{row(btn("⬅️ 返回", data))}
}

func collectingKeyboard() service.Keyboard {
	return service.Keyboard{row(btn("✅ 完成", cbDone))}
}

// optionsKeyboard 选项面板，按全局开关隐藏不可用的功能
func optionsKeyboard(sess *models.Session, g models.GlobalSettings) service.Keyboard {
	var kb service.Keyboard

	if g.ReactionsFeatureEnabled {
		label := "🎭 评价：已关闭"
		if sess.UseReactions {
			pos, neg := sess.ReactionStyle.Pair()
			label = fmt.Sprintf("🎭 评价样式 (%s/%s)", pos, neg)
		}
		kb = append(kb, row(btn(label, cbReactionsMenu)))
	}

	if !(sess.IsTempGranted && len(sess.AllowedChats) > 0) {
		kb = append(kb, row(btn(fmt.Sprintf("🗂️ 选择目标（已选 %d）", len(sess.ChosenChats)), cbChooseChats)))
	}

	if g.SchedulingEnabled {
		switch {
		case g.ScheduleLocked && sess.ScheduleActive:
			kb = append(kb, row(btn(fmt.Sprintf("⏱️ 重播（已锁定）：每 %s × %d",
				formatInterval(g.RebroadcastIntervalSeconds), g.RebroadcastTotal), cbScheduleMenu)))
		case g.ScheduleLocked:
			kb = append(kb, row(btn("⏱️ 启用重播（已锁定）", cbScheduleMenu)))
		case sess.ScheduleActive:
			kb = append(kb, row(btn(fmt.Sprintf("⏱️ 重播：每 %s × %d",
				formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal), cbScheduleMenu)))
		default:
			kb = append(kb, row(btn("⏱️ 启用重播", cbScheduleMenu)))
		}
	}

	if g.PinFeatureEnabled {
		label := "📌 开启置顶"
		if sess.PinEnabled {
			label = "📌 关闭置顶"
		}
		kb = append(kb, row(btn(label, cbTogglePin)))
	}

	kb = append(kb,
		row(btn("⬅️ 返回编辑", cbBackToCollect)),
		row(btn("🧽 清空", cbClear), btn("❌ 结束", cbCancel)),
		row(btn("👁️ 预览", cbPreview)),
	)
	return kb
}

// chatPickerKeyboard 目标选择列表
func chatPickerKeyboard(chats []service.ChatEntry, chosen models.IDSet) service.Keyboard {
	kb := make(service.Keyboard, 0, len(chats)+2)
	for _, c := range chats {
		mark := "🚫"
		if chosen.Has(c.ChatID) {
			mark = "✅"
		}
		kb = append(kb, row(btn(fmt.Sprintf("%s %s %s", chatBadge(c.Type), mark, c.Title),
			callbackData(cbToggleChat, c.ChatID))))
	}
	kb = append(kb,
		row(btn("✅ 全选", cbSelectAll), btn(fmt.Sprintf("💾 保存选择 (%d)", len(chosen)), cbDoneChats)),
		row(btn("▶️ 继续", cbBackMain)),
	)
	return kb
}

func chatBadge(t models.ChatType) string {
	if t == models.ChatTypeChannel {
		return "📢"
	}
	return "👥"
}

// scheduleKeyboard 重播设置
func scheduleKeyboard(sess *models.Session) service.Keyboard {
	intervals := make([]service.Button, 0, len(scheduleIntervals))
	for _, secs := range scheduleIntervals {
		label := formatInterval(secs)
		if secs == sess.RebroadcastIntervalSeconds {
			label = "• " + label
		}
		intervals = append(intervals, btn(label, callbackData(cbScheduleInterval, secs)))
	}
	counts := make([]service.Button, 0, len(scheduleCounts))
	for _, n := range scheduleCounts {
		label := fmt.Sprintf("%d×", n)
		if n == sess.RebroadcastTotal {
			label = "• " + label
		}
		counts = append(counts, btn(label, callbackData(cbScheduleCount, n)))
	}

	state := "未启用"
	if sess.ScheduleActive {
		state = "已启用"
	}
	kb := service.Keyboard{
		intervals,
		counts,
		row(btn("💾 保存并启用", cbScheduleDone), btn("▶️ 继续", cbBackMain)),
	}
	if sess.ScheduleActive {
		kb = append(kb, row(btn("⏹ 取消重播", cbScheduleOff)))
	}
	kb = append(kb, row(btn(fmt.Sprintf("ℹ️ 间隔 %s | 次数 %d× | %s",
		formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal, state), cbNoop)))
	return kb
}

// lockedScheduleKeyboard 重播参数被锁定时只允许启用或取消
func lockedScheduleKeyboard(sess *models.Session) service.Keyboard {
	toggle := btn("✅ 启用重播", cbScheduleDone)
	if sess.ScheduleActive {
		toggle = btn("⏹ 取消重播", cbScheduleOff)
	}
	return service.Keyboard{
		row(toggle),
		row(btn("⬅️ 返回", cbBackMain)),
	}
}

// reactionsMenuKeyboard 评价样式菜单
func reactionsMenuKeyboard(sess *models.Session) service.Keyboard {
	pos, neg := sess.ReactionStyle.Pair()
	state := "已关闭"
	if sess.UseReactions {
		state = "已开启"
	}

	styles := make([]service.Button, 0, len(models.ReactionStyles))
	for _, s := range models.ReactionStyles {
		p, n := s.Pair()
		label := p + "/" + n
		if s == sess.ReactionStyle {
			label = "• " + label
		}
		styles = append(styles, btn(label, callbackData(cbReactionsSet, s)))
	}

	toggle := "🔔 开启评价"
	if sess.UseReactions {
		toggle = "🔕 关闭评价"
	}
	return service.Keyboard{
		row(btn(fmt.Sprintf("当前：%s/%s · %s", pos, neg, state), cbNoop)),
		styles,
		row(btn(toggle, cbReactionsToggle)),
		row(btn("💾 保存", cbReactionsSave), btn("⬅️ 返回", cbBackMain)),
	}
}

func previewKeyboard() service.Keyboard {
	return service.Keyboard{
		row(btn("🚀 立即发布", cbPublish)),
		row(btn("❌ 取消", cbCancel)),
	}
}

// campaignKeyboard 发布后的活动面板
func campaignKeyboard(ownerID, campaignID int64) service.Keyboard {
	return service.Keyboard{
		row(btn("📊 查看评价", callbackData(cbShowStats, campaignID))),
		row(btn("⏹️ 停止重播", callbackData(cbStopRebroadcast, ownerID, campaignID))),
	}
}
