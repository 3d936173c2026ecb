package models

// DefaultReactionPrompt 默认的评价提示文案
const DefaultReactionPrompt = "请为这条帖子打分 👇"

// GlobalSettings 全局功能开关
type GlobalSettings struct {
	SchedulingEnabled          bool   `json:"scheduling_enabled"`
	ScheduleLocked             bool   `json:"schedule_locked"`
	RebroadcastIntervalSeconds int    `json:"rebroadcast_interval_seconds"`
	RebroadcastTotal           int    `json:"rebroadcast_total"`
	PinFeatureEnabled          bool   `json:"pin_feature_enabled"`
	ReactionsFeatureEnabled    bool   `json:"reactions_feature_enabled"`
	MaintenanceMode            bool   `json:"maintenance_mode"`
	DefaultReactionsEnabled    bool   `json:"default_reactions_enabled"`
	HideLinksDefault           bool   `json:"hide_links_default"`
	ReactionPromptText         string `json:"reaction_prompt_text"`
}

// DefaultGlobalSettings 返回默认全局设置
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		SchedulingEnabled:          true,
		ScheduleLocked:             false,
		RebroadcastIntervalSeconds: 7200,
		RebroadcastTotal:           4,
		PinFeatureEnabled:          true,
		ReactionsFeatureEnabled:    true,
		MaintenanceMode:            false,
		DefaultReactionsEnabled:    true,
		HideLinksDefault:           false,
		ReactionPromptText:         DefaultReactionPrompt,
	}
}

// PermissionsMode 管理员发布权限模式
type PermissionsMode string

const (
	PermissionsAll       PermissionsMode = "all"
	PermissionsWhitelist PermissionsMode = "whitelist"
)

// AdminSettings 单个管理员的个人设置
type AdminSettings struct {
	DisabledChats           IDSet           `json:"disabled_chats"`
	PermissionsMode         PermissionsMode `json:"permissions_mode"`
	Whitelist               IDSet           `json:"whitelist"`
	DefaultReactionsEnabled bool            `json:"default_reactions_enabled"`
	HideLinksDefault        bool            `json:"hide_links_default"`
	LastReactionStyle       ReactionStyle   `json:"last_reaction_style,omitempty"`
}

// DefaultAdminSettings 返回管理员默认设置
func DefaultAdminSettings() *AdminSettings {
	return &AdminSettings{
		DisabledChats:           IDSet{},
		PermissionsMode:         PermissionsAll,
		Whitelist:               IDSet{},
		DefaultReactionsEnabled: true,
	}
}

// Allows 判断白名单模式下用户是否允许发布
func (a *AdminSettings) Allows(userID int64) bool {
	if a == nil || a.PermissionsMode != PermissionsWhitelist {
		return true
	}
	return a.Whitelist.Has(userID)
}

// ChatPermissions 单个聊天的权限设置
type ChatPermissions struct {
	BlockedAdmins IDSet `json:"blocked_admins"`
}

// ChatType 聊天类型
type ChatType string

const (
	ChatTypeGroup   ChatType = "group"
	ChatTypeChannel ChatType = "channel"
)

// KnownChat 已登记的目标聊天
type KnownChat struct {
	Title string   `json:"title"`
	Type  ChatType `json:"type"`
}

// PanelState 管理面板的导航状态
type PanelState struct {
	Mode          string `json:"mode,omitempty"` // 例如 wait_reaction_prompt
	MessageID     int    `json:"msg_id,omitempty"`
	CampaignsPage int    `json:"campaigns_page,omitempty"`
}

const (
	// PanelWaitReactionPrompt 等待管理员输入新的评价提示文案
	PanelWaitReactionPrompt = "wait_reaction_prompt"
	// PanelWaitWhitelist 等待所有者输入要加入白名单的用户 ID
	PanelWaitWhitelist = "wait_whitelist"
)
