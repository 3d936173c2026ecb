package models

// EffectivePolicy 单次操作（发布、投票、调度）使用的设置快照
// 在操作开始时计算一次，之后不再读取可变的全局设置
type EffectivePolicy struct {
	ReactionsEnabled  bool
	PinEnabled        bool
	SchedulingEnabled bool
	ScheduleLocked    bool
	Maintenance       bool
	HideLinks         bool
	ReactionPrompt    string

	DisabledChats IDSet // 管理员禁用的聊天
	BlockedChats  IDSet // 发布者被封禁的聊天
}

// ResolvePolicy 由全局设置、管理员设置和聊天权限计算策略
func ResolvePolicy(userID int64, g GlobalSettings, a *AdminSettings, perms map[int64]*ChatPermissions) EffectivePolicy {
	p := EffectivePolicy{
		ReactionsEnabled:  g.ReactionsFeatureEnabled,
		PinEnabled:        g.PinFeatureEnabled,
		SchedulingEnabled: g.SchedulingEnabled,
		ScheduleLocked:    g.ScheduleLocked,
		Maintenance:       g.MaintenanceMode,
		HideLinks:         g.HideLinksDefault,
		ReactionPrompt:    g.ReactionPromptText,
		DisabledChats:     IDSet{},
		BlockedChats:      IDSet{},
	}
	if p.ReactionPrompt == "" {
		p.ReactionPrompt = DefaultReactionPrompt
	}
	if a != nil {
		p.DisabledChats = a.DisabledChats.Clone()
		if p.DisabledChats == nil {
			p.DisabledChats = IDSet{}
		}
		p.HideLinks = a.HideLinksDefault
	}
	for chatID, cp := range perms {
		if cp != nil && cp.BlockedAdmins.Has(userID) {
			p.BlockedChats.Add(chatID)
		}
	}
	return p
}
