package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
)

// GlobalFlag 面板可切换的全局开关
type GlobalFlag string

const (
	FlagScheduling       GlobalFlag = "scheduling"
	FlagScheduleLock     GlobalFlag = "schedule_lock"
	FlagReactions        GlobalFlag = "reactions"
	FlagPin              GlobalFlag = "pin"
	FlagMaintenance      GlobalFlag = "maintenance"
	FlagDefaultReactions GlobalFlag = "default_reactions"
	FlagHideLinks        GlobalFlag = "hide_links"
)

// ChatEntry 已登记聊天
type ChatEntry struct {
	ChatID int64
	Title  string
	Type   models.ChatType
}

// AdminService 全局设置、管理员设置与聊天登记
type AdminService struct {
	store  *repository.StateStore
	owners map[int64]struct{}
}

// NewAdminService 创建管理服务
func NewAdminService(store *repository.StateStore, ownerIDs []int64) *AdminService {
	owners := make(map[int64]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	return &AdminService{store: store, owners: owners}
}

// IsOwner 判断是否为 Bot 所有者
func (s *AdminService) IsOwner(userID int64) bool {
	_, ok := s.owners[userID]
	return ok
}

// Owners 返回所有者 ID（升序）
func (s *AdminService) Owners() []int64 {
	ids := make([]int64, 0, len(s.owners))
	for id := range s.owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckAccess 判断用户是否可以开始或继续编辑帖子
// 所有者不受维护模式和白名单限制
func (s *AdminService) CheckAccess(userID int64) error {
	if s.IsOwner(userID) {
		return nil
	}

	var err error
	s.store.View(func(st *repository.State) {
		if st.GlobalSettings.MaintenanceMode {
			err = ErrMaintenance
			return
		}
		for ownerID := range s.owners {
			if a, ok := st.AdminSettings[ownerID]; ok && !a.Allows(userID) {
				err = ErrNotWhitelisted
				return
			}
		}
	})
	return err
}

// Settings 返回全局设置快照
func (s *AdminService) Settings() models.GlobalSettings {
	var g models.GlobalSettings
	s.store.View(func(st *repository.State) { g = st.GlobalSettings })
	return g
}

// Policy 计算用户的有效策略
func (s *AdminService) Policy(userID int64) models.EffectivePolicy {
	var p models.EffectivePolicy
	s.store.View(func(st *repository.State) { p = st.Policy(userID) })
	return p
}

// Toggle 切换全局开关，返回新值
func (s *AdminService) Toggle(ctx context.Context, flag GlobalFlag) (bool, error) {
	var value bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		g := &st.GlobalSettings
		var field *bool
		switch flag {
		case FlagScheduling:
			field = &g.SchedulingEnabled
		case FlagScheduleLock:
			field = &g.ScheduleLocked
		case FlagReactions:
			field = &g.ReactionsFeatureEnabled
		case FlagPin:
			field = &g.PinFeatureEnabled
		case FlagMaintenance:
			field = &g.MaintenanceMode
		case FlagDefaultReactions:
			field = &g.DefaultReactionsEnabled
		case FlagHideLinks:
			field = &g.HideLinksDefault
		default:
			return fmt.Errorf("unknown flag %q", flag)
		}
		*field = !*field
		value = *field
		return nil
	})
	if err != nil {
		return false, err
	}
	logger.L().Infof("Global flag toggled: %s=%t", flag, value)
	return value, nil
}

// SetReactionPrompt 设置评价提示文案，空文本恢复默认
func (s *AdminService) SetReactionPrompt(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = models.DefaultReactionPrompt
	}
	return s.store.Mutate(ctx, func(st *repository.State) error {
		st.GlobalSettings.ReactionPromptText = text
		return nil
	})
}

// SetDefaultSchedule 设置默认重播间隔与次数
func (s *AdminService) SetDefaultSchedule(ctx context.Context, intervalSeconds, total int) error {
	if intervalSeconds <= 0 || total <= 0 {
		return fmt.Errorf("invalid schedule defaults: interval=%d total=%d", intervalSeconds, total)
	}
	return s.store.Mutate(ctx, func(st *repository.State) error {
		st.GlobalSettings.RebroadcastIntervalSeconds = intervalSeconds
		st.GlobalSettings.RebroadcastTotal = total
		return nil
	})
}

// ToggleDisabledChat 切换管理员个人禁用的目标聊天，返回切换后是否禁用
func (s *AdminService) ToggleDisabledChat(ctx context.Context, adminID, chatID int64) (bool, error) {
	var disabled bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		disabled = st.Admin(adminID).DisabledChats.Toggle(chatID)
		return nil
	})
	return disabled, err
}

// ToggleBlockedAdmin 切换某管理员在某聊天的发布封禁，返回切换后是否封禁
func (s *AdminService) ToggleBlockedAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	var blocked bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		blocked = st.Permissions(chatID).BlockedAdmins.Toggle(userID)
		return nil
	})
	if err == nil {
		logger.L().Infof("Publish block toggled: chat_id=%d user_id=%d blocked=%t", chatID, userID, blocked)
	}
	return blocked, err
}

// SetPermissionsMode 设置管理员的权限模式
func (s *AdminService) SetPermissionsMode(ctx context.Context, adminID int64, mode models.PermissionsMode) error {
	if mode != models.PermissionsAll && mode != models.PermissionsWhitelist {
		return fmt.Errorf("unknown permissions mode %q", mode)
	}
	return s.store.Mutate(ctx, func(st *repository.State) error {
		st.Admin(adminID).PermissionsMode = mode
		return nil
	})
}

// ToggleWhitelist 切换白名单成员，返回切换后是否在名单中
func (s *AdminService) ToggleWhitelist(ctx context.Context, adminID, userID int64) (bool, error) {
	var listed bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		listed = st.Admin(adminID).Whitelist.Toggle(userID)
		return nil
	})
	return listed, err
}

// RememberReactionStyle 记住管理员最近使用的表情样式
func (s *AdminService) RememberReactionStyle(ctx context.Context, adminID int64, style models.ReactionStyle) error {
	if !style.IsValid() {
		return fmt.Errorf("unknown reaction style %q", style)
	}
	return s.store.Mutate(ctx, func(st *repository.State) error {
		st.Admin(adminID).LastReactionStyle = style
		return nil
	})
}

// RegisterChat 登记目标聊天，返回是否为新登记
func (s *AdminService) RegisterChat(ctx context.Context, chatID int64, title string, chatType models.ChatType) (bool, error) {
	var created bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		existing, ok := st.KnownChats[chatID]
		created = !ok
		if ok && existing.Title == title && existing.Type == chatType {
			return nil
		}
		st.KnownChats[chatID] = &models.KnownChat{Title: title, Type: chatType}
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		logger.L().Infof("Chat registered: chat_id=%d title=%q type=%s", chatID, title, chatType)
	}
	return created, nil
}

// ForgetChat 移除聊天登记（例如 Bot 被移出）
func (s *AdminService) ForgetChat(ctx context.Context, chatID int64) error {
	return s.store.Mutate(ctx, func(st *repository.State) error {
		delete(st.KnownChats, chatID)
		delete(st.KnownChatAdmins, chatID)
		return nil
	})
}

// KnownChats 返回所有登记聊天（按标题排序）
func (s *AdminService) KnownChats() []ChatEntry {
	var out []ChatEntry
	s.store.View(func(st *repository.State) {
		out = make([]ChatEntry, 0, len(st.KnownChats))
		for id, c := range st.KnownChats {
			out = append(out, ChatEntry{ChatID: id, Title: c.Title, Type: c.Type})
		}
	})
	sortChats(out)
	return out
}

// ChatTitle 返回已登记聊天的标题，未登记时返回 ID
func (s *AdminService) ChatTitle(chatID int64) string {
	var title string
	s.store.View(func(st *repository.State) { title = st.ChatTitle(chatID) })
	return title
}

func sortChats(chats []ChatEntry) {
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].Title == chats[j].Title {
			return chats[i].ChatID < chats[j].ChatID
		}
		return chats[i].Title < chats[j].Title
	})
}

// PanelState 读取面板状态
func (s *AdminService) PanelState(userID int64) models.PanelState {
	var ps models.PanelState
	s.store.View(func(st *repository.State) {
		if p, ok := st.PanelState[userID]; ok && p != nil {
			ps = *p
		}
	})
	return ps
}

// SetPanelState 更新面板状态
func (s *AdminService) SetPanelState(ctx context.Context, userID int64, fn func(ps *models.PanelState)) error {
	return s.store.Mutate(ctx, func(st *repository.State) error {
		ps, ok := st.PanelState[userID]
		if !ok || ps == nil {
			ps = &models.PanelState{}
			st.PanelState[userID] = ps
		}
		fn(ps)
		return nil
	})
}

// ChatAdmin 聊天中已知的管理员及其发布封禁状态
type ChatAdmin struct {
	UserID  int64
	Role    string
	Blocked bool
}

// ChatAdmins 返回成员检查中记录过的聊天管理员（按 ID 排序）
func (s *AdminService) ChatAdmins(chatID int64) []ChatAdmin {
	var out []ChatAdmin
	s.store.View(func(st *repository.State) {
		perms := st.GroupPermissions[chatID]
		for userID, role := range st.KnownChatAdmins[chatID] {
			a := ChatAdmin{UserID: userID, Role: role}
			if perms != nil {
				a.Blocked = perms.BlockedAdmins.Has(userID)
			}
			out = append(out, a)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// AdminSettings 返回管理员设置副本
func (s *AdminService) AdminSettings(adminID int64) models.AdminSettings {
	var out models.AdminSettings
	s.store.View(func(st *repository.State) {
		a, ok := st.AdminSettings[adminID]
		if !ok || a == nil {
			a = models.DefaultAdminSettings()
		}
		out = *a
		out.DisabledChats = a.DisabledChats.Clone()
		out.Whitelist = a.Whitelist.Clone()
	})
	return out
}

// Preference 管理员个人偏好
type Preference string

const (
	PrefDefaultReactions Preference = "default_reactions"
	PrefHideLinks        Preference = "hide_links"
)

// TogglePreference 切换管理员个人偏好，返回新值
func (s *AdminService) TogglePreference(ctx context.Context, adminID int64, pref Preference) (bool, error) {
	var value bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		a := st.Admin(adminID)
		switch pref {
		case PrefDefaultReactions:
			a.DefaultReactionsEnabled = !a.DefaultReactionsEnabled
			value = a.DefaultReactionsEnabled
		case PrefHideLinks:
			a.HideLinksDefault = !a.HideLinksDefault
			value = a.HideLinksDefault
		default:
			return fmt.Errorf("unknown preference %q", pref)
		}
		return nil
	})
	return value, err
}

// KnownAdmins 返回所有已知聊天管理员（去重，升序）
func (s *AdminService) KnownAdmins() []int64 {
	seen := map[int64]struct{}{}
	s.store.View(func(st *repository.State) {
		for _, admins := range st.KnownChatAdmins {
			for id := range admins {
				seen[id] = struct{}{}
			}
		}
	})
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsKnownAdmin 判断用户是否在任一已登记聊天中被确认为管理员
func (s *AdminService) IsKnownAdmin(userID int64) bool {
	var ok bool
	s.store.View(func(st *repository.State) {
		for _, admins := range st.KnownChatAdmins {
			if _, exists := admins[userID]; exists {
				ok = true
				return
			}
		}
	})
	return ok
}
