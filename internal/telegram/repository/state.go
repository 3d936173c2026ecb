package repository

import (
	"encoding/json"
	"fmt"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
)

// CampaignIDModulus 活动 ID 回绕上限
const CampaignIDModulus = 10_000_000

// State 所有持久化数据桶
type State struct {
	GlobalSettings         models.GlobalSettings                         `json:"global_settings"`
	AdminSettings          map[int64]*models.AdminSettings               `json:"admin_settings"`
	GroupPermissions       map[int64]*models.ChatPermissions             `json:"group_permissions"`
	KnownChats             map[int64]*models.KnownChat                   `json:"known_chats"`
	KnownChatAdmins        map[int64]map[int64]string                    `json:"known_chats_admins"`
	Sessions               map[int64]*models.Session                     `json:"sessions"`
	TempGrants             map[int64]*models.TempGrant                   `json:"temp_grants"`
	ReactionCounters       map[models.MessageKey]*models.ReactionCounter `json:"reactions_counters"`
	ReactionStyleByMessage map[models.MessageKey]models.ReactionStyle    `json:"reaction_style_by_message"`
	CampaignMessages       map[int64][]models.MessageKey                 `json:"campaign_messages"`
	CampaignBaseMsg        map[models.CampaignChatKey]int                `json:"campaign_base_msg"`
	MessageToCampaign      map[models.MessageKey]int64                   `json:"message_to_campaign"`
	CampaignPromptMsgs     map[int64][]models.MessageKey                 `json:"campaign_prompt_msgs"`
	CampaignCounters       map[int64]*models.CampaignCounter             `json:"campaign_counters"`
	CampaignStyles         map[int64]models.ReactionStyle                `json:"campaign_styles"`
	CampaignSeq            int64                                         `json:"campaign_seq"`
	ActiveRebroadcasts     map[string]*models.ActiveRebroadcast          `json:"active_rebroadcasts"`
	PanelState             map[int64]*models.PanelState                  `json:"panel_state"`
	StartTokens            map[string]*models.StartToken                 `json:"start_tokens"`
}

// NewState 创建带默认值的空状态
func NewState() *State {
	s := &State{GlobalSettings: models.DefaultGlobalSettings()}
	s.ensureMaps()
	return s
}

func (s *State) ensureMaps() {
	if s.AdminSettings == nil {
		s.AdminSettings = map[int64]*models.AdminSettings{}
	}
	if s.GroupPermissions == nil {
		s.GroupPermissions = map[int64]*models.ChatPermissions{}
	}
	if s.KnownChats == nil {
		s.KnownChats = map[int64]*models.KnownChat{}
	}
	if s.KnownChatAdmins == nil {
		s.KnownChatAdmins = map[int64]map[int64]string{}
	}
	if s.Sessions == nil {
		s.Sessions = map[int64]*models.Session{}
	}
	if s.TempGrants == nil {
		s.TempGrants = map[int64]*models.TempGrant{}
	}
	if s.ReactionCounters == nil {
		s.ReactionCounters = map[models.MessageKey]*models.ReactionCounter{}
	}
	if s.ReactionStyleByMessage == nil {
		s.ReactionStyleByMessage = map[models.MessageKey]models.ReactionStyle{}
	}
	if s.CampaignMessages == nil {
		s.CampaignMessages = map[int64][]models.MessageKey{}
	}
	if s.CampaignBaseMsg == nil {
		s.CampaignBaseMsg = map[models.CampaignChatKey]int{}
	}
	if s.MessageToCampaign == nil {
		s.MessageToCampaign = map[models.MessageKey]int64{}
	}
	if s.CampaignPromptMsgs == nil {
		s.CampaignPromptMsgs = map[int64][]models.MessageKey{}
	}
	if s.CampaignCounters == nil {
		s.CampaignCounters = map[int64]*models.CampaignCounter{}
	}
	if s.CampaignStyles == nil {
		s.CampaignStyles = map[int64]models.ReactionStyle{}
	}
	if s.ActiveRebroadcasts == nil {
		s.ActiveRebroadcasts = map[string]*models.ActiveRebroadcast{}
	}
	if s.PanelState == nil {
		s.PanelState = map[int64]*models.PanelState{}
	}
	if s.StartTokens == nil {
		s.StartTokens = map[string]*models.StartToken{}
	}
}

// Admin 返回管理员设置，不存在时创建默认值
func (s *State) Admin(userID int64) *models.AdminSettings {
	a, ok := s.AdminSettings[userID]
	if !ok || a == nil {
		a = models.DefaultAdminSettings()
		s.AdminSettings[userID] = a
	}
	if a.DisabledChats == nil {
		a.DisabledChats = models.IDSet{}
	}
	if a.Whitelist == nil {
		a.Whitelist = models.IDSet{}
	}
	return a
}

// Permissions 返回聊天权限，不存在时创建
func (s *State) Permissions(chatID int64) *models.ChatPermissions {
	p, ok := s.GroupPermissions[chatID]
	if !ok || p == nil {
		p = &models.ChatPermissions{}
		s.GroupPermissions[chatID] = p
	}
	if p.BlockedAdmins == nil {
		p.BlockedAdmins = models.IDSet{}
	}
	return p
}

// Policy 计算用户当前的有效策略
func (s *State) Policy(userID int64) models.EffectivePolicy {
	return models.ResolvePolicy(userID, s.GlobalSettings, s.AdminSettings[userID], s.GroupPermissions)
}

// ChatTitle 返回已登记聊天的标题，未知时返回 ID
func (s *State) ChatTitle(chatID int64) string {
	if c, ok := s.KnownChats[chatID]; ok && c != nil && c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("%d", chatID)
}

// NextCampaignID 分配新的活动 ID，回绕后跳过仍在使用的 ID，永不返回 0
func (s *State) NextCampaignID() int64 {
	for i := 0; i < CampaignIDModulus; i++ {
		s.CampaignSeq = (s.CampaignSeq + 1) % CampaignIDModulus
		if s.CampaignSeq == 0 {
			s.CampaignSeq = 1
		}
		if !s.campaignInUse(s.CampaignSeq) {
			break
		}
	}
	return s.CampaignSeq
}

func (s *State) campaignInUse(id int64) bool {
	if _, ok := s.CampaignMessages[id]; ok {
		return true
	}
	_, ok := s.CampaignCounters[id]
	return ok
}

// CampaignCounter 返回活动计数器，不存在时创建
func (s *State) CampaignCounter(campaignID int64) *models.CampaignCounter {
	c, ok := s.CampaignCounters[campaignID]
	if !ok || c == nil {
		c = models.NewCampaignCounter()
		s.CampaignCounters[campaignID] = c
	}
	return c
}

// MessageCounter 返回单条消息计数器，不存在时创建
func (s *State) MessageCounter(key models.MessageKey) *models.ReactionCounter {
	c, ok := s.ReactionCounters[key]
	if !ok || c == nil {
		c = models.NewReactionCounter()
		s.ReactionCounters[key] = c
	}
	return c
}

// AppendUnique 追加消息键并去重，返回是否新增
func AppendUnique(list []models.MessageKey, key models.MessageKey) ([]models.MessageKey, bool) {
	for _, k := range list {
		if k == key {
			return list, false
		}
	}
	return append(list, key), true
}

// bucket 描述一个可独立解码的数据桶
type bucket struct {
	name   string
	decode func(s *State, raw json.RawMessage) error
}

func replaceWith[T any](dst *T, raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func mergeInto[T any](dst *T, raw json.RawMessage) error {
	v := *dst
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

var stateBuckets = []bucket{
	{"global_settings", func(s *State, raw json.RawMessage) error { return mergeInto(&s.GlobalSettings, raw) }},
	{"admin_settings", func(s *State, raw json.RawMessage) error { return replaceWith(&s.AdminSettings, raw) }},
	{"group_permissions", func(s *State, raw json.RawMessage) error { return replaceWith(&s.GroupPermissions, raw) }},
	{"known_chats", func(s *State, raw json.RawMessage) error { return replaceWith(&s.KnownChats, raw) }},
	{"known_chats_admins", func(s *State, raw json.RawMessage) error { return replaceWith(&s.KnownChatAdmins, raw) }},
	{"sessions", func(s *State, raw json.RawMessage) error { return replaceWith(&s.Sessions, raw) }},
	{"temp_grants", func(s *State, raw json.RawMessage) error { return replaceWith(&s.TempGrants, raw) }},
	{"reactions_counters", func(s *State, raw json.RawMessage) error { return replaceWith(&s.ReactionCounters, raw) }},
	{"reaction_style_by_message", func(s *State, raw json.RawMessage) error { return replaceWith(&s.ReactionStyleByMessage, raw) }},
	{"campaign_messages", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignMessages, raw) }},
	{"campaign_base_msg", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignBaseMsg, raw) }},
	{"message_to_campaign", func(s *State, raw json.RawMessage) error { return replaceWith(&s.MessageToCampaign, raw) }},
	{"campaign_prompt_msgs", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignPromptMsgs, raw) }},
	{"campaign_counters", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignCounters, raw) }},
	{"campaign_styles", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignStyles, raw) }},
	{"campaign_seq", func(s *State, raw json.RawMessage) error { return replaceWith(&s.CampaignSeq, raw) }},
	{"active_rebroadcasts", func(s *State, raw json.RawMessage) error { return replaceWith(&s.ActiveRebroadcasts, raw) }},
	{"panel_state", func(s *State, raw json.RawMessage) error { return replaceWith(&s.PanelState, raw) }},
	{"start_tokens", func(s *State, raw json.RawMessage) error { return replaceWith(&s.StartTokens, raw) }},
}

// DecodeState 解码持久化快照
// 单个数据桶解码失败时记录日志并回落为空，不影响其他数据桶
func DecodeState(data []byte) (*State, error) {
	s := NewState()
	if len(data) == 0 {
		return s, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("failed to decode state document: %w", err)
	}

	for _, b := range stateBuckets {
		payload, ok := raw[b.name]
		if !ok || string(payload) == "null" {
			continue
		}
		if err := b.decode(s, payload); err != nil {
			logger.L().Warnf("State bucket %s is unreadable, starting empty: %v", b.name, err)
		}
	}
	s.ensureMaps()
	return s, nil
}

// EncodeState 编码为持久化快照
func EncodeState(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}
