package service

import (
	"context"
	"fmt"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
)

// SessionService 管理用户草稿会话，每个用户最多一个
type SessionService struct {
	store *repository.StateStore
	now   func() time.Time
}

// NewSessionService 创建会话服务
func NewSessionService(store *repository.StateStore) *SessionService {
	return &SessionService{store: store, now: time.Now}
}

// defaults 由全局设置和管理员设置计算新会话默认值
func defaults(st *repository.State, userID int64) models.SessionDefaults {
	g := st.GlobalSettings
	useReactions := g.DefaultReactionsEnabled
	var style models.ReactionStyle
	if a, ok := st.AdminSettings[userID]; ok && a != nil {
		useReactions = a.DefaultReactionsEnabled
		style = a.LastReactionStyle
	}
	return models.SessionDefaults{
		UseReactions:    useReactions,
		PinEnabled:      true,
		ReactionStyle:   style,
		IntervalSeconds: g.RebroadcastIntervalSeconds,
		Total:           g.RebroadcastTotal,
	}
}

// fresh 创建新会话，若用户持有有效授权则绑定
func (s *SessionService) fresh(st *repository.State, userID int64) *models.Session {
	sess := models.NewSession(defaults(st, userID))
	if g, ok := st.TempGrants[userID]; ok && g.AvailableAt(s.now()) {
		sess.AttachGrant(g.ChatID, g.GrantedBy)
	}
	return sess
}

// Create 创建会话，覆盖已有会话
func (s *SessionService) Create(ctx context.Context, userID int64) (*models.Session, error) {
	var out *models.Session
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		sess := s.fresh(st, userID)
		st.Sessions[userID] = sess
		out = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L().Infof("Session created: user_id=%d temp_granted=%t", userID, out.IsTempGranted)
	return out, nil
}

// Clear 丢弃会话内容，重置为新的 waiting_first_input 会话
func (s *SessionService) Clear(ctx context.Context, userID int64) (*models.Session, error) {
	var out *models.Session
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		sess := s.fresh(st, userID)
		st.Sessions[userID] = sess
		out = sess.Clone()
		return nil
	})
	return out, err
}

// Cancel 删除会话
func (s *SessionService) Cancel(ctx context.Context, userID int64) error {
	return s.store.Mutate(ctx, func(st *repository.State) error {
		delete(st.Sessions, userID)
		return nil
	})
}

// Get 返回会话副本
func (s *SessionService) Get(userID int64) (*models.Session, bool) {
	var out *models.Session
	s.store.View(func(st *repository.State) {
		out = st.Sessions[userID].Clone()
	})
	return out, out != nil
}

// Update 在锁内修改会话并保存，返回修改后的副本
func (s *SessionService) Update(ctx context.Context, userID int64, fn func(sess *models.Session) error) (*models.Session, error) {
	var out *models.Session
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		sess, ok := st.Sessions[userID]
		if !ok || sess == nil {
			return ErrNoSession
		}
		if sess.Publishing {
			return ErrPublishInProgress
		}
		if err := fn(sess); err != nil {
			return err
		}
		out = sess.Clone()
		return nil
	})
	return out, err
}

// Append 向会话追加一条内容
func (s *SessionService) Append(ctx context.Context, userID int64, in models.ContentInput) (models.Slot, error) {
	var slot models.Slot
	_, err := s.Update(ctx, userID, func(sess *models.Session) error {
		var err error
		slot, err = sess.Append(in)
		return err
	})
	return slot, err
}

// Claim 占用会话用于发布，同一会话同时只允许一次发布
// 临时授权会话在同一临界区内占用授权，直到 Release 或授权被消耗
func (s *SessionService) Claim(userID int64) (*models.Session, error) {
	var out *models.Session
	err := s.store.Update(func(st *repository.State) error {
		sess, ok := st.Sessions[userID]
		if !ok || sess == nil {
			return ErrNoSession
		}
		if sess.Publishing {
			return ErrPublishInProgress
		}
		if sess.Stage != models.StageReadyOptions {
			return fmt.Errorf("%w: publish in %s", models.ErrInvalidTransition, sess.Stage)
		}
		if sess.Content.IsEmpty() {
			return models.ErrEmptyContent
		}
		if sess.IsTempGranted {
			if g := st.TempGrants[userID]; g.AvailableAt(s.now()) {
				g.Reserved = true
			}
		}
		sess.Publishing = true
		out = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release 发布没有送达任何聊天，解除占用以便重试
func (s *SessionService) Release(userID int64) {
	_ = s.store.Update(func(st *repository.State) error {
		if sess, ok := st.Sessions[userID]; ok && sess != nil {
			sess.Publishing = false
		}
		if g, ok := st.TempGrants[userID]; ok && g != nil {
			g.Reserved = false
		}
		return nil
	})
}

// Finish 发布结束后移除被占用的会话
// 发布期间新建的会话保留
func (s *SessionService) Finish(ctx context.Context, userID int64) error {
	return s.store.Mutate(ctx, func(st *repository.State) error {
		if sess, ok := st.Sessions[userID]; ok && sess != nil && sess.Publishing {
			delete(st.Sessions, userID)
		}
		return nil
	})
}
