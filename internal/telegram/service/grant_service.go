package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	"github.com/google/uuid"
)

// GrantRequest 管理员在群内发起的临时授权
type GrantRequest struct {
	ChatID       int64
	AdminID      int64
	TargetUserID int64
	TargetIsBot  bool
	IsReply      bool // 命令是否回复了被授权人的消息
}

// GrantTicket 授权结果
type GrantTicket struct {
	Token   string
	ChatID  int64
	UserID  int64
	Expires time.Time
}

// DeepLink 生成 /start 深链接
func (t GrantTicket) DeepLink(botUsername string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, t.Token)
}

// GrantService 临时发布授权
type GrantService struct {
	store      *repository.StateStore
	membership *Membership
	effects    *SideEffects
	now        func() time.Time
}

// NewGrantService 创建授权服务
func NewGrantService(store *repository.StateStore, membership *Membership, effects *SideEffects) *GrantService {
	return &GrantService{
		store:      store,
		membership: membership,
		effects:    effects,
		now:        time.Now,
	}
}

// Grant 创建一次性授权与深链接令牌
func (s *GrantService) Grant(ctx context.Context, req GrantRequest) (*GrantTicket, error) {
	if !req.IsReply || req.TargetUserID == 0 {
		return nil, ErrGrantRequiresReply
	}
	if req.TargetIsBot {
		return nil, ErrGrantBotTarget
	}

	isAdmin, err := s.membership.IsChatAdmin(ctx, req.ChatID, req.AdminID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrNotChatAdmin
	}

	expires := s.now().Add(models.GrantTTL).UTC()
	ticket := &GrantTicket{
		Token:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		ChatID:  req.ChatID,
		UserID:  req.TargetUserID,
		Expires: expires,
	}

	err = s.store.Mutate(ctx, func(st *repository.State) error {
		st.TempGrants[req.TargetUserID] = &models.TempGrant{
			ChatID:    req.ChatID,
			Expires:   models.NewTimestamp(expires),
			GrantedBy: req.AdminID,
		}
		st.StartTokens[ticket.Token] = &models.StartToken{
			UserID:  req.TargetUserID,
			ChatID:  req.ChatID,
			Expires: models.NewTimestamp(expires),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Infof("Temp grant issued: chat_id=%d user_id=%d by=%d expires=%s",
		req.ChatID, req.TargetUserID, req.AdminID, expires.Format(time.RFC3339))
	return ticket, nil
}

// AttachAnnouncement 记录群内授权公告，授权到期时删除
func (s *GrantService) AttachAnnouncement(ctx context.Context, userID int64, messageID int) {
	var chatID int64
	var ttl time.Duration
	_ = s.store.Update(func(st *repository.State) error {
		g, ok := st.TempGrants[userID]
		if !ok {
			return nil
		}
		g.AnnounceMessageID = messageID
		chatID = g.ChatID
		ttl = g.Expires.Sub(s.now())
		return nil
	})
	if chatID == 0 || messageID == 0 {
		return
	}
	s.effects.DeleteLater(chatID, messageID, ttl)
}

// Redeem 兑换深链接令牌，返回授权聊天
// 令牌无论成功与否都只能使用一次（过期令牌同样被删除）
func (s *GrantService) Redeem(ctx context.Context, token string, userID int64) (int64, error) {
	var chatID int64
	now := s.now()

	err := s.store.Mutate(ctx, func(st *repository.State) error {
		t, ok := st.StartTokens[token]
		if !ok {
			return ErrTokenInvalid
		}
		if t.UserID != userID {
			return ErrTokenNotOwned
		}
		delete(st.StartTokens, token)
		if t.ExpiredAt(now) {
			return ErrTokenExpired
		}
		if !st.TempGrants[userID].ActiveFor(t.ChatID, now) {
			return ErrGrantInactive
		}
		chatID = t.ChatID
		return nil
	})
	if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrGrantInactive) {
		// 删除令牌也需要落盘
		s.store.SaveQuietly(ctx)
	}
	if err != nil {
		return 0, err
	}
	return chatID, nil
}

// HasActiveGrant 判断用户是否持有有效授权
func (s *GrantService) HasActiveGrant(userID int64) bool {
	var ok bool
	s.store.View(func(st *repository.State) {
		ok = st.TempGrants[userID].ActiveAt(s.now())
	})
	return ok
}

// ActiveFor 判断用户对指定聊天是否持有有效授权
func (s *GrantService) ActiveFor(userID, chatID int64) bool {
	var ok bool
	s.store.View(func(st *repository.State) {
		ok = st.TempGrants[userID].ActiveFor(chatID, s.now())
	})
	return ok
}

// Active 返回用户的有效授权副本
func (s *GrantService) Active(userID int64) (models.TempGrant, bool) {
	var g models.TempGrant
	var ok bool
	s.store.View(func(st *repository.State) {
		if cur := st.TempGrants[userID]; cur.ActiveAt(s.now()) {
			g, ok = *cur, true
		}
	})
	return g, ok
}

// Consume 发布成功后标记授权已使用
func (s *GrantService) Consume(ctx context.Context, userID int64) error {
	var consumed bool
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		if g, ok := st.TempGrants[userID]; ok && !g.Used {
			g.Used = true
			g.Reserved = false
			consumed = true
		}
		return nil
	})
	if consumed {
		logger.L().Infof("Temp grant consumed: user_id=%d", userID)
	}
	return err
}

// PurgeExpired 清理过期令牌和失效授权，返回清理数量
func (s *GrantService) PurgeExpired(ctx context.Context) int {
	now := s.now()
	removed := 0
	_ = s.store.Update(func(st *repository.State) error {
		for token, t := range st.StartTokens {
			if t == nil || t.ExpiredAt(now) {
				delete(st.StartTokens, token)
				removed++
			}
		}
		for userID, g := range st.TempGrants {
			if !g.ActiveAt(now) {
				delete(st.TempGrants, userID)
				removed++
			}
		}
		return nil
	})
	if removed > 0 {
		s.store.SaveQuietly(ctx)
		logger.L().Infof("Purged %d expired grants/tokens", removed)
	}
	return removed
}

// Authorizer 发布授权检查：聊天管理员或持有该聊天的有效授权
type Authorizer struct {
	membership *Membership
	grants     *GrantService
}

// NewAuthorizer 创建发布授权检查
func NewAuthorizer(membership *Membership, grants *GrantService) *Authorizer {
	return &Authorizer{membership: membership, grants: grants}
}

// CanPublish 判断用户是否可以向聊天发布
func (a *Authorizer) CanPublish(ctx context.Context, userID, chatID int64) (bool, error) {
	if a.grants.ActiveFor(userID, chatID) {
		return true, nil
	}
	return a.membership.IsChatAdmin(ctx, chatID, userID)
}
