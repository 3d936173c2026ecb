package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// handleVote 帖子下方或评价提示上的 👍/👎
func (b *Bot) handleVote(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	action, target, err := service.ParseVoteData(query.Data)
	if err != nil {
		logger.L().Debugf("Ignoring vote callback: %v", err)
		b.answerCallback(ctx, query.ID, "按钮已失效")
		return
	}

	chatID, msgID := callbackMessage(query)
	res, err := b.reactions.CastVote(ctx, service.VoteRequest{
		Target:           target,
		Action:           action,
		UserID:           query.From.ID,
		PressedChatID:    chatID,
		PressedMessageID: msgID,
	})
	if err != nil {
		logger.L().Errorf("Vote failed: user_id=%d target=%s: %v", query.From.ID, target, err)
		b.answerCallback(ctx, query.ID, "投票失败，请稍后重试")
		return
	}

	switch res.Outcome {
	case service.VoteAlreadyCast:
		b.answerCallback(ctx, query.ID, fmt.Sprintf("你已经评价过了（%s）", res.Style.Emoji(res.Previous)))
	default:
		b.answerCallback(ctx, query.ID, "感谢评价 "+res.Style.Emoji(action))
	}
}

// campaignStatsText 活动统计（总计与分聊天）
func campaignStatsText(st service.CampaignStats) string {
	pos, neg := st.Style.Pair()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>活动 #%d</b>\n%s %d · %s %d · 👥 %d 人评价 · 📨 %d 条消息",
		st.CampaignID, pos, st.Tally.Like, neg, st.Tally.Dislike, st.Voters, st.Messages)
	if len(st.PerChat) > 0 {
		sb.WriteString("\n")
		for _, c := range st.PerChat {
			fmt.Fprintf(&sb, "\n• %s：%s %d · %s %d（%d 条）",
				html.EscapeString(c.Title), pos, c.Tally.Like, neg, c.Tally.Dislike, c.Messages)
		}
	}
	return sb.String()
}

// handleShowStats 活动面板上的“查看评价”
func (b *Bot) handleShowStats(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	campaignID, ok := parseCallback(query.Data).Int64(0)
	if !ok {
		b.answerCallback(ctx, query.ID, "按钮已失效")
		return
	}
	st, found := b.campaigns.Stats(campaignID)
	if !found {
		b.answerCallbackAlert(ctx, query.ID, "活动不存在或已过期")
		return
	}

	text := campaignStatsText(st)
	if owner, ok := b.ownerOf(campaignID); ok {
		if r, running := b.rebroadcasts.Status(owner, campaignID); running {
			text += fmt.Sprintf("\n\n🔁 重播进行中：剩余 %d/%d 次", r.Payload.Left, r.Payload.Total)
			if in, ok := b.nextRunIn(owner, campaignID); ok {
				text += "\n⏭ 下次重播：约 " + in + " 后"
			}
		}
	}
	b.answerCallback(ctx, query.ID, "")
	b.sendMessage(ctx, query.From.ID, text)
}

// nextRunIn 距下次重播的时间，调度器未运行时返回 false
func (b *Bot) nextRunIn(ownerID, campaignID int64) (string, bool) {
	next, ok := b.rebroadcasts.NextRun(ownerID, campaignID)
	if !ok {
		return "", false
	}
	return formatDuration(time.Until(next)), true
}

// ownerOf 查找进行中重播的发布者
func (b *Bot) ownerOf(campaignID int64) (int64, bool) {
	for _, p := range b.rebroadcasts.Active() {
		if p.CampaignID == campaignID {
			return p.OwnerID, true
		}
	}
	return 0, false
}

// handleStopRebroadcast stop_rebroadcast:<owner>:<campaign>
// 仅发布者本人或 Bot 所有者可以停止
func (b *Bot) handleStopRebroadcast(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	query := update.CallbackQuery
	cb := parseCallback(query.Data)
	ownerID, ok1 := cb.Int64(0)
	campaignID, ok2 := cb.Int64(1)
	if !ok1 || !ok2 {
		b.answerCallback(ctx, query.ID, "按钮已失效")
		return
	}
	if query.From.ID != ownerID && !b.admin.IsOwner(query.From.ID) {
		b.answerCallbackAlert(ctx, query.ID, "只有发布者可以停止重播")
		return
	}

	if !b.rebroadcasts.Stop(ctx, ownerID, campaignID) {
		b.answerCallback(ctx, query.ID, "没有进行中的重播")
		return
	}
	logger.L().Infof("Rebroadcast stopped by user %d: owner=%d campaign=%d", query.From.ID, ownerID, campaignID)
	b.answerCallback(ctx, query.ID, "⏹️ 已停止重播")

	chatID, msgID := callbackMessage(query)
	if msgID != 0 {
		kb := campaignKeyboard(ownerID, campaignID)[:1]
		if err := b.messenger.EditKeyboard(ctx, chatID, msgID, kb); err != nil && !service.IsNotModified(err) {
			logger.L().Debugf("Failed to update campaign panel: %v", err)
		}
	}
}
