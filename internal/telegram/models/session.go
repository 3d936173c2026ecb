package models

import (
	"errors"
	"fmt"
	"strings"
)

// Stage 会话阶段
type Stage string

const (
	StageWaitingFirstInput Stage = "waiting_first_input" // 等待第一条内容
	StageCollecting        Stage = "collecting"          // 收集内容中
	StageReadyOptions      Stage = "ready_options"       // 选项面板
	StageChoosingChats     Stage = "choosing_chats"      // 选择目标聊天
	StagePublished         Stage = "published"           // 已发布（终态）
)

// stageTransitions 合法的阶段迁移表
// 回退只允许到 collecting 或 ready_options
var stageTransitions = map[Stage][]Stage{
	StageWaitingFirstInput: {StageCollecting},
	StageCollecting:        {StageReadyOptions},
	StageReadyOptions:      {StageChoosingChats, StageCollecting, StagePublished},
	StageChoosingChats:     {StageReadyOptions, StageCollecting},
}

// IsValid 判断阶段是否为已知值
func (s Stage) IsValid() bool {
	switch s {
	case StageWaitingFirstInput, StageCollecting, StageReadyOptions, StageChoosingChats, StagePublished:
		return true
	}
	return false
}

// CanTransitionTo 判断迁移是否合法，自迁移视为合法
func (s Stage) CanTransitionTo(next Stage) bool {
	if s == next {
		return true
	}
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition 非法阶段迁移
	ErrInvalidTransition = errors.New("invalid session stage transition")
	// ErrEmptyContent 会话没有任何内容
	ErrEmptyContent = errors.New("session has no content")
	// ErrDestinationRestricted 临时授权会话选择了授权范围外的聊天
	ErrDestinationRestricted = errors.New("destination is outside the granted chats")
	// ErrNoDestinations 没有可发布的目标
	ErrNoDestinations = errors.New("no destinations selected")
	// ErrNotCollecting 当前阶段不接收内容
	ErrNotCollecting = errors.New("session is not collecting content")
)

// ReservedKeywords 触发命令的关键字，不作为帖子内容
var ReservedKeywords = []string{"ok", "ok25s"}

// IsReservedKeyword 判断文本是否为保留关键字
func IsReservedKeyword(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range ReservedKeywords {
		if t == kw {
			return true
		}
	}
	return false
}

// SessionDefaults 创建会话时的默认值
type SessionDefaults struct {
	UseReactions    bool
	PinEnabled      bool
	ReactionStyle   ReactionStyle
	IntervalSeconds int
	Total           int
}

// Session 用户草稿会话，每个用户最多一个
type Session struct {
	Stage Stage `json:"stage"`
	Content

	UseReactions  bool          `json:"use_reactions"`
	PinEnabled    bool          `json:"pin_enabled"`
	ReactionStyle ReactionStyle `json:"reaction_style,omitempty"`
	ChosenChats   IDSet         `json:"chosen_chats"`

	AllowedChats  IDSet `json:"allowed_chats"`
	IsTempGranted bool  `json:"is_temp_granted"`
	GrantedBy     int64 `json:"granted_by,omitempty"`

	RebroadcastIntervalSeconds int  `json:"rebroadcast_interval_seconds"`
	RebroadcastTotal           int  `json:"rebroadcast_total"`
	ScheduleActive             bool `json:"schedule_active"`

	CampaignID int64 `json:"campaign_id,omitempty"` // 0 表示尚未分配

	PanelMessageID  int `json:"panel_msg_id,omitempty"`
	PickerMessageID int `json:"picker_msg_id,omitempty"`

	Publishing bool `json:"-"` // 已被一次发布占用
}

// NewSession 创建处于 waiting_first_input 的新会话
func NewSession(d SessionDefaults) *Session {
	style := d.ReactionStyle
	if !style.IsValid() {
		style = StyleThumbs
	}
	return &Session{
		Stage:                      StageWaitingFirstInput,
		UseReactions:               d.UseReactions,
		PinEnabled:                 d.PinEnabled,
		ReactionStyle:              style,
		ChosenChats:                IDSet{},
		AllowedChats:               IDSet{},
		RebroadcastIntervalSeconds: d.IntervalSeconds,
		RebroadcastTotal:           d.Total,
	}
}

// AttachGrant 将临时授权绑定到会话
func (s *Session) AttachGrant(chatID, grantedBy int64) {
	s.IsTempGranted = true
	s.GrantedBy = grantedBy
	s.AllowedChats = NewIDSet(chatID)
	s.ChosenChats = NewIDSet(chatID)
}

// TransitionTo 按迁移表切换阶段
func (s *Session) TransitionTo(next Stage) error {
	if !s.Stage.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, next)
	}
	s.Stage = next
	return nil
}

// Append 追加一条内容，返回填充的槽位
// 空白输入或保留关键字返回 SlotNone，不改变会话
func (s *Session) Append(in ContentInput) (Slot, error) {
	if s.Stage != StageWaitingFirstInput && s.Stage != StageCollecting {
		return SlotNone, ErrNotCollecting
	}

	slot := s.Content.apply(in)
	if slot == SlotNone {
		return SlotNone, nil
	}
	if s.Stage == StageWaitingFirstInput {
		s.Stage = StageCollecting
	}
	return slot, nil
}

// AdvanceToOptions 进入选项面板；临时授权会话强制目标为授权聊天
func (s *Session) AdvanceToOptions() error {
	if s.Content.IsEmpty() {
		return ErrEmptyContent
	}
	if err := s.TransitionTo(StageReadyOptions); err != nil {
		return err
	}
	if s.IsTempGranted && len(s.AllowedChats) > 0 {
		s.ChosenChats = s.AllowedChats.Clone()
	}
	return nil
}

// BackToCollect 回到内容收集阶段
func (s *Session) BackToCollect() error {
	return s.TransitionTo(StageCollecting)
}

// OpenDestinations 进入目标选择阶段
func (s *Session) OpenDestinations() error {
	return s.TransitionTo(StageChoosingChats)
}

// ToggleDestination 切换目标聊天，返回切换后是否选中
func (s *Session) ToggleDestination(chatID int64) (bool, error) {
	if s.Stage != StageChoosingChats {
		return false, fmt.Errorf("%w: toggle destination in %s", ErrInvalidTransition, s.Stage)
	}
	if s.IsTempGranted && !s.AllowedChats.Has(chatID) {
		return false, ErrDestinationRestricted
	}
	if s.ChosenChats == nil {
		s.ChosenChats = IDSet{}
	}
	return s.ChosenChats.Toggle(chatID), nil
}

// SelectAll 选中全部可用目标；若已全部选中则清空
func (s *Session) SelectAll(available []int64) error {
	if s.Stage != StageChoosingChats {
		return fmt.Errorf("%w: select all in %s", ErrInvalidTransition, s.Stage)
	}
	pool := available
	if s.IsTempGranted {
		pool = s.AllowedChats.Sorted()
	}

	allChosen := len(pool) > 0
	for _, id := range pool {
		if !s.ChosenChats.Has(id) {
			allChosen = false
			break
		}
	}
	if allChosen {
		s.ChosenChats = IDSet{}
		return nil
	}
	s.ChosenChats = NewIDSet(pool...)
	return nil
}

// MarkPublished 标记会话已发布
func (s *Session) MarkPublished() error {
	return s.TransitionTo(StagePublished)
}

// FinalizeResult 发布前的目标过滤结果
type FinalizeResult struct {
	Destinations []int64 // 可发布
	Disabled     []int64 // 被管理员设置禁用
	Blocked      []int64 // 发布者在该聊天被封禁
}

// FinalizeForPublish 应用全局开关并过滤目标
func (s *Session) FinalizeForPublish(p EffectivePolicy) FinalizeResult {
	if !p.ReactionsEnabled {
		s.UseReactions = false
	}
	if !p.PinEnabled {
		s.PinEnabled = false
	}

	var res FinalizeResult
	for _, id := range s.ChosenChats.Sorted() {
		switch {
		case p.BlockedChats.Has(id):
			res.Blocked = append(res.Blocked, id)
		case p.DisabledChats.Has(id):
			res.Disabled = append(res.Disabled, id)
		default:
			res.Destinations = append(res.Destinations, id)
		}
	}
	return res
}

// Clone 深拷贝会话
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Content = s.Content.Clone()
	out.ChosenChats = s.ChosenChats.Clone()
	out.AllowedChats = s.AllowedChats.Clone()
	return &out
}
