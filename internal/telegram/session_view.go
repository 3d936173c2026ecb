package telegram

import (
	"fmt"
	"html"
	"strings"

	"publisher_bot/internal/telegram/models"
)

var attachmentNames = map[models.MediaKind]string{
	models.MediaDocument: "文档",
	models.MediaAudio:    "音频",
	models.MediaVoice:    "语音",
}

var slotNames = map[models.ContentKind]string{
	models.ContentText:     "文本",
	models.ContentPhoto:    "图片",
	models.ContentVideo:    "视频",
	models.ContentDocument: "文档",
	models.ContentAudio:    "音频",
	models.ContentVoice:    "语音",
}

// sessionSummary 会话摘要（HTML）
func sessionSummary(sess *models.Session, g models.GlobalSettings) string {
	const check, cross = "✅", "❌"
	var lines []string
	lines = append(lines, "<b>📋 会话摘要</b>")

	text := cross
	if strings.TrimSpace(sess.Text) != "" {
		text = check
	}
	att := cross
	if sess.SingleAttachment != nil {
		att = attachmentNames[sess.SingleAttachment.Kind]
	}
	lines = append(lines, fmt.Sprintf("<b>📝 内容</b>：文本 %s • 媒体 %d • 附件 %s", text, len(sess.MediaList), att))

	reactions := "评价已全局关闭"
	if g.ReactionsFeatureEnabled {
		reactions = "评价 " + cross
		if sess.UseReactions {
			pos, neg := sess.ReactionStyle.Pair()
			reactions = fmt.Sprintf("评价 %s/%s", pos, neg)
		}
	}
	pin := "置顶已全局关闭"
	if g.PinFeatureEnabled {
		pin = "置顶 " + cross
		if sess.PinEnabled {
			pin = "置顶 📌"
		}
	}
	lines = append(lines, fmt.Sprintf("<b>⚙️ 选项</b>：%s • %s • 目标 %d", reactions, pin, len(sess.ChosenChats)))

	var sched string
	switch {
	case !g.SchedulingEnabled:
		sched = "<b>⏱️ 重播</b>：已全局关闭"
	case sess.ScheduleActive:
		sched = fmt.Sprintf("<b>⏱️ 重播</b>：已启用 • 每 %s × %d",
			formatInterval(sess.RebroadcastIntervalSeconds), sess.RebroadcastTotal)
	default:
		sched = "<b>⏱️ 重播</b>：未启用"
	}
	if g.SchedulingEnabled && g.ScheduleLocked {
		sched += " • 已锁定"
	}
	lines = append(lines, sched)

	if sess.IsTempGranted {
		lines = append(lines, "<b>🎟 临时授权</b>：仅可发布到授权聊天")
	}
	return strings.Join(lines, "\n")
}

// panelText 会话面板全文
func panelText(header string, sess *models.Session, g models.GlobalSettings) string {
	return fmt.Sprintf("📋 <b>帖子面板</b>\n%s\n\n%s", header, sessionSummary(sess, g))
}

// nextHint 保存内容后的提示
func nextHint(sess *models.Session, saved models.ContentKind) string {
	var missing []string
	if strings.TrimSpace(sess.Text) == "" {
		missing = append(missing, "📝 文本")
	}
	if len(sess.MediaList) == 0 {
		missing = append(missing, "🖼️ 图片/视频")
	}
	if sess.SingleAttachment == nil {
		missing = append(missing, "📎 文件/音频/语音")
	}

	head := fmt.Sprintf("✅ 已保存<b>%s</b>。", html.EscapeString(slotNames[saved]))
	if len(missing) == 0 {
		return head + "\n全部就绪，点击<b>完成</b>进入选项。"
	}
	return head + "\n还可以添加：" + strings.Join(missing, " • ") + "，然后点击<b>完成</b>。"
}
