package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
)

// ThanksTTL 感谢消息的保留时间
const ThanksTTL = 90 * time.Second

// ReactionPlacement 评价按钮的位置
type ReactionPlacement string

const (
	// PlacementPrompt 单独发送一条提示消息承载按钮
	PlacementPrompt ReactionPlacement = "prompt"
	// PlacementInline 按钮挂在内容消息上，无法挂载时（相册）退回提示消息
	PlacementInline ReactionPlacement = "inline"
)

// VoteOutcome 投票结果
type VoteOutcome string

const (
	VoteRecorded    VoteOutcome = "recorded"
	VoteAlreadyCast VoteOutcome = "already_voted"
)

// VoteRequest 一次按钮点击
type VoteRequest struct {
	Target           models.MessageKey // 按钮指向的锚点消息
	Action           models.VoteAction
	UserID           int64
	PressedChatID    int64
	PressedMessageID int
}

// VoteResult 投票处理结果
type VoteResult struct {
	Outcome    VoteOutcome
	CampaignID int64 // 0 表示非活动消息
	Previous   models.VoteAction
	Tally      models.Tally
	Style      models.ReactionStyle
}

// VoteData 生成按钮回调数据：<action>:<chat>:<message>
func VoteData(action models.VoteAction, key models.MessageKey) string {
	return fmt.Sprintf("%s:%d:%d", action, key.ChatID, key.MessageID)
}

// ParseVoteData 解析按钮回调数据
func ParseVoteData(data string) (models.VoteAction, models.MessageKey, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return "", models.MessageKey{}, fmt.Errorf("%w: %q", ErrInvalidVote, data)
	}
	action := models.VoteAction(parts[0])
	if !action.IsValid() {
		return "", models.MessageKey{}, fmt.Errorf("%w: action %q", ErrInvalidVote, parts[0])
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", models.MessageKey{}, fmt.Errorf("%w: chat %q", ErrInvalidVote, parts[1])
	}
	msgID, err := strconv.Atoi(parts[2])
	if err != nil || msgID <= 0 {
		return "", models.MessageKey{}, fmt.Errorf("%w: message %q", ErrInvalidVote, parts[2])
	}
	return action, models.MessageKey{ChatID: chatID, MessageID: msgID}, nil
}

// VoteKeyboard 渲染带计数的评价按钮
func VoteKeyboard(style models.ReactionStyle, anchor models.MessageKey, t models.Tally) Keyboard {
	pos, neg := style.Pair()
	return Keyboard{{
		{Text: fmt.Sprintf("%s %d", pos, t.Like), Data: VoteData(models.VoteLike, anchor)},
		{Text: fmt.Sprintf("%s %d", neg, t.Dislike), Data: VoteData(models.VoteDislike, anchor)},
	}}
}

// ReactionService 投票计数与按钮同步
type ReactionService struct {
	store     *repository.StateStore
	messenger Messenger
	effects   *SideEffects
	placement ReactionPlacement
}

// NewReactionService 创建评价服务
func NewReactionService(store *repository.StateStore, messenger Messenger, effects *SideEffects, placement ReactionPlacement) *ReactionService {
	if placement != PlacementInline {
		placement = PlacementPrompt
	}
	return &ReactionService{
		store:     store,
		messenger: messenger,
		effects:   effects,
		placement: placement,
	}
}

// Placement 返回按钮位置模式
func (s *ReactionService) Placement() ReactionPlacement {
	return s.placement
}

// CastVote 记录一次投票
// 检查与计数在同一个 Update 临界区内完成，同一用户的并发点击只有一次生效
func (s *ReactionService) CastVote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	if !req.Action.IsValid() {
		return VoteResult{}, ErrInvalidVote
	}

	var res VoteResult
	_ = s.store.Update(func(st *repository.State) error {
		if cid, ok := st.MessageToCampaign[req.Target]; ok {
			res.CampaignID = cid
			res.Style = campaignStyle(st, cid)
			counter := st.CampaignCounter(cid)
			res.Previous = counter.Voters[req.UserID]
			if counter.RecordInChat(req.Target.ChatID, req.UserID, req.Action) {
				res.Outcome = VoteRecorded
			} else {
				res.Outcome = VoteAlreadyCast
			}
			res.Tally = counter.Tally()
			return nil
		}

		res.Style = messageStyle(st, req.Target)
		counter := st.MessageCounter(req.Target)
		res.Previous = counter.Voters[req.UserID]
		if counter.Record(req.UserID, req.Action) {
			res.Outcome = VoteRecorded
		} else {
			res.Outcome = VoteAlreadyCast
		}
		res.Tally = counter.Tally()
		return nil
	})

	scope := "message"
	if res.CampaignID != 0 {
		scope = "campaign"
	}
	metrics.Votes.WithLabelValues(scope, string(res.Outcome)).Inc()

	if res.Outcome == VoteAlreadyCast {
		return res, nil
	}
	s.store.SaveQuietly(ctx)

	if res.CampaignID != 0 {
		s.SyncCampaign(ctx, res.CampaignID)
	} else if req.PressedMessageID != 0 {
		kb := VoteKeyboard(res.Style, req.Target, res.Tally)
		s.effects.Run(ctx, EffectEditKeyboard, func(ctx context.Context) error {
			err := s.messenger.EditKeyboard(ctx, req.PressedChatID, req.PressedMessageID, kb)
			if IsNotModified(err) {
				return nil
			}
			return err
		})
	}

	if req.PressedMessageID != 0 {
		thanks := fmt.Sprintf("感谢你的评价 %s", res.Style.Emoji(req.Action))
		msgID := s.effects.Notify(ctx, req.PressedChatID, thanks, TextOptions{ReplyTo: req.PressedMessageID})
		s.effects.DeleteLater(req.PressedChatID, msgID, ThanksTTL)
	}

	logger.L().Infof("Vote recorded: campaign=%d target=%s user_id=%d action=%s like=%d dislike=%d",
		res.CampaignID, req.Target, req.UserID, req.Action, res.Tally.Like, res.Tally.Dislike)
	return res, nil
}

func campaignStyle(st *repository.State, campaignID int64) models.ReactionStyle {
	if s, ok := st.CampaignStyles[campaignID]; ok && s.IsValid() {
		return s
	}
	return models.StyleThumbs
}

func messageStyle(st *repository.State, key models.MessageKey) models.ReactionStyle {
	if s, ok := st.ReactionStyleByMessage[key]; ok && s.IsValid() {
		return s
	}
	return models.StyleThumbs
}

// promptView 渲染提示消息所需的快照
type promptView struct {
	style   models.ReactionStyle
	tally   models.Tally
	prompts []models.MessageKey
	bases   map[int64]int
}

func (s *ReactionService) snapshot(campaignID int64) promptView {
	v := promptView{bases: map[int64]int{}}
	s.store.View(func(st *repository.State) {
		v.style = campaignStyle(st, campaignID)
		if c, ok := st.CampaignCounters[campaignID]; ok {
			v.tally = c.Tally()
		}
		v.prompts = append([]models.MessageKey(nil), st.CampaignPromptMsgs[campaignID]...)
		for ck, base := range st.CampaignBaseMsg {
			if ck.CampaignID == campaignID {
				v.bases[ck.ChatID] = base
			}
		}
	})
	return v
}

func (v promptView) keyboard(chatID int64, fallback models.MessageKey) Keyboard {
	anchor := fallback
	if base, ok := v.bases[chatID]; ok {
		anchor = models.MessageKey{ChatID: chatID, MessageID: base}
	}
	return VoteKeyboard(v.style, anchor, v.tally)
}

// SyncCampaign 把最新计数渲染到活动的所有提示消息
// 各聊天独立更新，返回更新失败的提示消息
func (s *ReactionService) SyncCampaign(ctx context.Context, campaignID int64) []models.MessageKey {
	v := s.snapshot(campaignID)
	var failed []models.MessageKey
	for _, p := range v.prompts {
		if err := s.editPrompt(ctx, p, v.keyboard(p.ChatID, p)); err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

func (s *ReactionService) editPrompt(ctx context.Context, p models.MessageKey, kb Keyboard) error {
	err := s.messenger.EditKeyboard(ctx, p.ChatID, p.MessageID, kb)
	if err == nil || IsNotModified(err) {
		return nil
	}
	metrics.SideEffectFailures.WithLabelValues(EffectEditKeyboard).Inc()
	logger.L().Warnf("Failed to update reaction keyboard %s: %v", p, err)
	return err
}

// EnsurePrompt 保证聊天内有一条可用的评价提示
// 先刷新已有提示，只丢弃已删除或无法编辑的；没有可用提示时新建并登记
func (s *ReactionService) EnsurePrompt(ctx context.Context, campaignID, chatID int64, promptText string) error {
	v := s.snapshot(campaignID)
	base, ok := v.bases[chatID]
	if !ok || base == 0 {
		return nil
	}
	anchor := models.MessageKey{ChatID: chatID, MessageID: base}
	kb := VoteKeyboard(v.style, anchor, v.tally)

	valid := 0
	var dropped []models.MessageKey
	for _, p := range v.prompts {
		if p.ChatID != chatID {
			continue
		}
		if err := s.editPrompt(ctx, p, kb); err != nil && !IsTransient(err) {
			dropped = append(dropped, p)
			continue
		}
		// 临时失败的提示仍然存在，下次再刷新
		valid++
	}
	if len(dropped) > 0 {
		s.untrackPrompts(campaignID, dropped)
		logger.L().Infof("Dropped %d unreachable reaction prompts: campaign=%d chat_id=%d", len(dropped), campaignID, chatID)
	}
	if valid > 0 {
		return nil
	}

	if s.placement == PlacementInline {
		if err := s.messenger.EditKeyboard(ctx, chatID, base, kb); err == nil || IsNotModified(err) {
			s.trackPrompt(campaignID, anchor)
			return nil
		}
	}

	if promptText == "" {
		promptText = models.DefaultReactionPrompt
	}
	msgID, err := s.messenger.SendText(ctx, chatID, promptText, TextOptions{Keyboard: kb})
	if err != nil {
		return fmt.Errorf("failed to send reaction prompt to chat %d: %w", chatID, err)
	}
	s.trackPrompt(campaignID, models.MessageKey{ChatID: chatID, MessageID: msgID})
	return nil
}

// ReconcilePrompts 对每个目标聊天执行 EnsurePrompt，单个聊天失败不影响其他聊天
func (s *ReactionService) ReconcilePrompts(ctx context.Context, campaignID int64, chats []int64, promptText string) {
	for _, chatID := range chats {
		if err := s.EnsurePrompt(ctx, campaignID, chatID, promptText); err != nil {
			logger.L().Warnf("Reaction prompt reconcile failed: campaign=%d chat_id=%d: %v", campaignID, chatID, err)
		}
	}
}

func (s *ReactionService) trackPrompt(campaignID int64, key models.MessageKey) {
	_ = s.store.Update(func(st *repository.State) error {
		st.CampaignPromptMsgs[campaignID], _ = repository.AppendUnique(st.CampaignPromptMsgs[campaignID], key)
		return nil
	})
}

func (s *ReactionService) untrackPrompts(campaignID int64, keys []models.MessageKey) {
	_ = s.store.Update(func(st *repository.State) error {
		drop := make(map[models.MessageKey]struct{}, len(keys))
		for _, k := range keys {
			drop[k] = struct{}{}
		}
		kept := st.CampaignPromptMsgs[campaignID][:0]
		for _, k := range st.CampaignPromptMsgs[campaignID] {
			if _, ok := drop[k]; !ok {
				kept = append(kept, k)
			}
		}
		st.CampaignPromptMsgs[campaignID] = kept
		return nil
	})
}
