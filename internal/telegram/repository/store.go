package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
)

// ErrSaveBlocked 快照未能加载，保存会覆盖它
var ErrSaveBlocked = errors.New("state save blocked: snapshot could not be loaded")

// StateStore 内存状态及其持久化
// 所有读写都经过 mu；检查与修改必须放在同一个 Update 回调里完成，回调内不得做网络 I/O
type StateStore struct {
	mu      sync.RWMutex
	state   *State
	backend SnapshotBackend

	saveMu  sync.Mutex // 串行化快照写入
	loadErr error      // 非空时拒绝保存，由 saveMu 保护
}

// NewStateStore 创建状态存储
func NewStateStore(backend SnapshotBackend) *StateStore {
	return &StateStore{
		state:   NewState(),
		backend: backend,
	}
}

// Load 从后端加载快照
// 后端读取或整体解码失败时保留空状态并返回错误，之后的保存被拒绝，
// 直到再次加载成功或调用 ForceSave
func (s *StateStore) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := s.backend.Load(ctx)
	if err != nil {
		s.loadErr = fmt.Errorf("failed to load state from %s: %w", s.backend.Name(), err)
		return s.loadErr
	}

	state, err := DecodeState(data)
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if err != nil {
		s.loadErr = err
		return err
	}
	s.loadErr = nil

	logger.L().Infof("State loaded from %s: sessions=%d campaigns=%d rebroadcasts=%d",
		s.backend.Name(), len(state.Sessions), len(state.CampaignMessages), len(state.ActiveRebroadcasts))
	return nil
}

// View 只读访问状态
func (s *StateStore) View(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Update 在写锁内修改状态，不触发保存
func (s *StateStore) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Mutate 修改状态并立即保存；保存失败只记录日志，内存状态仍然有效
func (s *StateStore) Mutate(ctx context.Context, fn func(st *State) error) error {
	if err := s.Update(fn); err != nil {
		return err
	}
	s.SaveQuietly(ctx)
	return nil
}

// Snapshot 编码当前状态
func (s *StateStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EncodeState(s.state)
}

// Save 将当前状态整份写入后端
func (s *StateStore) Save(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.loadErr != nil {
		metrics.StateSaves.WithLabelValues("blocked").Inc()
		return fmt.Errorf("%w: %v", ErrSaveBlocked, s.loadErr)
	}
	return s.write(ctx)
}

// ForceSave 运维确认后解除保存限制，用当前内存状态覆盖快照
func (s *StateStore) ForceSave(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.loadErr != nil {
		logger.L().Warnf("Overwriting unreadable snapshot on %s: %v", s.backend.Name(), s.loadErr)
		s.loadErr = nil
	}
	return s.write(ctx)
}

// SaveBlocked 返回阻止保存的加载错误
func (s *StateStore) SaveBlocked() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.loadErr
}

// write 调用方持有 saveMu
func (s *StateStore) write(ctx context.Context) error {
	data, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, data); err != nil {
		metrics.StateSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save state to %s: %w", s.backend.Name(), err)
	}
	metrics.StateSaves.WithLabelValues("ok").Inc()
	return nil
}

// SaveQuietly 保存并吞掉错误
func (s *StateStore) SaveQuietly(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		logger.L().Errorf("State save failed: %v", err)
	}
}

// StoreStats 状态概览
type StoreStats struct {
	Backend      string
	Sessions     int
	Campaigns    int
	Rebroadcasts int
	KnownChats   int
	SaveBlocked  bool
}

// Stats 返回当前状态概览
func (s *StateStore) Stats() StoreStats {
	stats := StoreStats{Backend: "memory", SaveBlocked: s.SaveBlocked() != nil}
	if s.backend != nil {
		stats.Backend = s.backend.Name()
	}
	s.View(func(st *State) {
		stats.Sessions = len(st.Sessions)
		stats.Campaigns = len(st.CampaignMessages)
		stats.Rebroadcasts = len(st.ActiveRebroadcasts)
		stats.KnownChats = len(st.KnownChats)
	})
	return stats
}
