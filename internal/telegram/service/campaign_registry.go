package service

import (
	"sort"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
)

// CampaignRegistry 活动登记：活动 ID、投递消息、每个聊天的锚点消息
type CampaignRegistry struct {
	store *repository.StateStore
}

// NewCampaignRegistry 创建活动登记
func NewCampaignRegistry(store *repository.StateStore) *CampaignRegistry {
	return &CampaignRegistry{store: store}
}

// Ensure 返回活动 ID；campaignID 为 0 时分配新 ID
// 样式只在首次登记时写入
func (r *CampaignRegistry) Ensure(campaignID int64, style models.ReactionStyle) int64 {
	if !style.IsValid() {
		style = models.StyleThumbs
	}
	_ = r.store.Update(func(st *repository.State) error {
		if campaignID == 0 {
			campaignID = st.NextCampaignID()
		}
		if _, ok := st.CampaignMessages[campaignID]; !ok {
			st.CampaignMessages[campaignID] = []models.MessageKey{}
		}
		if _, ok := st.CampaignStyles[campaignID]; !ok {
			st.CampaignStyles[campaignID] = style
		}
		return nil
	})
	return campaignID
}

// Discard 删除没有任何投递和投票的活动，返回是否删除
func (r *CampaignRegistry) Discard(campaignID int64) bool {
	var removed bool
	_ = r.store.Update(func(st *repository.State) error {
		if len(st.CampaignMessages[campaignID]) > 0 || st.CampaignCounters[campaignID] != nil {
			return nil
		}
		delete(st.CampaignMessages, campaignID)
		delete(st.CampaignStyles, campaignID)
		removed = true
		return nil
	})
	return removed
}

// RecordDelivery 记录一次成功投递，返回该聊天的锚点消息 ID
// 锚点在每个聊天只设置一次，之后的重播复用同一锚点
func (r *CampaignRegistry) RecordDelivery(campaignID, chatID int64, messageID int) int {
	var base int
	_ = r.store.Update(func(st *repository.State) error {
		base = recordDelivery(st, campaignID, chatID, messageID)
		return nil
	})
	return base
}

func recordDelivery(st *repository.State, campaignID, chatID int64, messageID int) int {
	ck := models.CampaignChatKey{CampaignID: campaignID, ChatID: chatID}
	base, ok := st.CampaignBaseMsg[ck]
	if !ok || base == 0 {
		base = messageID
		st.CampaignBaseMsg[ck] = base
	}

	delivered := models.MessageKey{ChatID: chatID, MessageID: messageID}
	st.CampaignMessages[campaignID], _ = repository.AppendUnique(st.CampaignMessages[campaignID], delivered)
	st.MessageToCampaign[delivered] = campaignID
	st.MessageToCampaign[models.MessageKey{ChatID: chatID, MessageID: base}] = campaignID
	return base
}

// BaseMessage 返回聊天的锚点消息
func (r *CampaignRegistry) BaseMessage(campaignID, chatID int64) (int, bool) {
	var base int
	var ok bool
	r.store.View(func(st *repository.State) {
		base, ok = st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: campaignID, ChatID: chatID}]
	})
	return base, ok
}

// Lookup 通过消息找到所属活动
func (r *CampaignRegistry) Lookup(key models.MessageKey) (int64, bool) {
	var id int64
	var ok bool
	r.store.View(func(st *repository.State) {
		id, ok = st.MessageToCampaign[key]
	})
	return id, ok
}

// Style 返回活动的表情样式
func (r *CampaignRegistry) Style(campaignID int64) models.ReactionStyle {
	style := models.StyleThumbs
	r.store.View(func(st *repository.State) {
		if s, ok := st.CampaignStyles[campaignID]; ok && s.IsValid() {
			style = s
		}
	})
	return style
}

// ChatStats 单个聊天的活动统计
type ChatStats struct {
	ChatID   int64
	Title    string
	Messages int
	Tally    models.Tally
}

// CampaignStats 活动统计
type CampaignStats struct {
	CampaignID int64
	Style      models.ReactionStyle
	Tally      models.Tally
	Voters     int
	Messages   int
	PerChat    []ChatStats
}

// Stats 汇总活动统计，活动不存在时返回 false
func (r *CampaignRegistry) Stats(campaignID int64) (CampaignStats, bool) {
	stats := CampaignStats{CampaignID: campaignID, Style: models.StyleThumbs}
	found := false

	r.store.View(func(st *repository.State) {
		msgs, ok := st.CampaignMessages[campaignID]
		counter := st.CampaignCounters[campaignID]
		if !ok && counter == nil {
			return
		}
		found = true
		if s, ok := st.CampaignStyles[campaignID]; ok && s.IsValid() {
			stats.Style = s
		}
		stats.Messages = len(msgs)

		perChat := map[int64]*ChatStats{}
		chatEntry := func(chatID int64) *ChatStats {
			cs, ok := perChat[chatID]
			if !ok {
				cs = &ChatStats{ChatID: chatID, Title: st.ChatTitle(chatID)}
				perChat[chatID] = cs
			}
			return cs
		}
		for _, k := range msgs {
			chatEntry(k.ChatID).Messages++
		}
		if counter != nil {
			stats.Tally = counter.Tally()
			stats.Voters = len(counter.Voters)
			for chatID, t := range counter.PerChat {
				chatEntry(chatID).Tally = t
			}
		}

		for _, cs := range perChat {
			stats.PerChat = append(stats.PerChat, *cs)
		}
	})

	sort.Slice(stats.PerChat, func(i, j int) bool { return stats.PerChat[i].ChatID < stats.PerChat[j].ChatID })
	return stats, found
}

// List 返回所有活动 ID（新的在前）
func (r *CampaignRegistry) List() []int64 {
	var ids []int64
	r.store.View(func(st *repository.State) {
		for id := range st.CampaignMessages {
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}
