package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/repository"

	"github.com/patrickmn/go-cache"
)

// Membership 查询并缓存聊天成员角色
type Membership struct {
	messenger Messenger
	store     *repository.StateStore
	roles     *cache.Cache
}

// NewMembership 创建成员角色服务，ttl 为角色缓存时间
func NewMembership(messenger Messenger, store *repository.StateStore, ttl time.Duration) *Membership {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Membership{
		messenger: messenger,
		store:     store,
		roles:     cache.New(ttl, 2*ttl),
	}
}

func roleCacheKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// Role 返回用户角色，命中缓存时不访问后端
func (m *Membership) Role(ctx context.Context, chatID, userID int64) (MemberRole, error) {
	key := roleCacheKey(chatID, userID)
	if v, ok := m.roles.Get(key); ok {
		return v.(MemberRole), nil
	}

	role, err := m.messenger.MemberRole(ctx, chatID, userID)
	if err != nil {
		return RoleOther, fmt.Errorf("failed to get member role in chat %d: %w", chatID, err)
	}
	m.roles.SetDefault(key, role)
	return role, nil
}

// IsChatAdmin 判断用户是否为聊天管理员，确认后记录到已知管理员
func (m *Membership) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	role, err := m.Role(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if !role.IsAdmin() {
		return false, nil
	}

	_ = m.store.Update(func(st *repository.State) error {
		admins, ok := st.KnownChatAdmins[chatID]
		if !ok {
			admins = map[int64]string{}
			st.KnownChatAdmins[chatID] = admins
		}
		admins[userID] = string(role)
		return nil
	})
	return true, nil
}

// Invalidate 清除缓存的角色（例如收到成员变更）
func (m *Membership) Invalidate(chatID, userID int64) {
	m.roles.Delete(roleCacheKey(chatID, userID))
}

// InvalidateChat 清除某个聊天的全部缓存角色
func (m *Membership) InvalidateChat(chatID int64) {
	prefix := fmt.Sprintf("%d:", chatID)
	for key := range m.roles.Items() {
		if strings.HasPrefix(key, prefix) {
			m.roles.Delete(key)
		}
	}
}

// AuthorizedChats 返回用户作为管理员的已登记聊天
// 单个聊天查询失败时跳过该聊天
func (m *Membership) AuthorizedChats(ctx context.Context, userID int64) []ChatEntry {
	var known []ChatEntry
	m.store.View(func(st *repository.State) {
		for id, c := range st.KnownChats {
			known = append(known, ChatEntry{ChatID: id, Title: c.Title, Type: c.Type})
		}
	})

	out := make([]ChatEntry, 0, len(known))
	for _, c := range known {
		ok, err := m.IsChatAdmin(ctx, c.ChatID, userID)
		if err != nil {
			logger.L().Warnf("Admin check failed: chat_id=%d user_id=%d: %v", c.ChatID, userID, err)
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	sortChats(out)
	return out
}
