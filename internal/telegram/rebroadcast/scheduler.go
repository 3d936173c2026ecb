package rebroadcast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/publish"
	"publisher_bot/internal/telegram/repository"
	"publisher_bot/internal/telegram/service"
)

// MinRestoreDelay 重启恢复时的最小首次延迟
const MinRestoreDelay = 30 * time.Second

var (
	// ErrAlreadyScheduled 同一活动已存在重播任务
	ErrAlreadyScheduled = errors.New("rebroadcast already scheduled")
	// ErrInvalidSchedule 间隔或次数无效
	ErrInvalidSchedule = errors.New("invalid rebroadcast schedule")
	// ErrNoCampaign 会话尚未关联活动
	ErrNoCampaign = errors.New("session has no campaign")
)

// Jobs 周期任务注册表
type Jobs interface {
	Every(name string, interval, firstIn time.Duration, task func(ctx context.Context)) error
	Has(name string) bool
	Remove(name string)
	NextRun(name string) (time.Time, bool)
}

// Publisher 重播使用的发布器
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) publish.Result
}

// Reconciler 重播后同步评价提示
type Reconciler interface {
	ReconcilePrompts(ctx context.Context, campaignID int64, chats []int64, promptText string)
}

// PolicySource 计算发布者的有效策略
type PolicySource interface {
	Policy(userID int64) models.EffectivePolicy
}

// Scheduler 活动重播调度器
type Scheduler struct {
	store     *repository.StateStore
	jobs      Jobs
	publisher Publisher
	reactions Reconciler
	policies  PolicySource
	effects   *service.SideEffects
}

// NewScheduler 创建重播调度器
func NewScheduler(
	store *repository.StateStore,
	jobs Jobs,
	publisher Publisher,
	reactions Reconciler,
	policies PolicySource,
	effects *service.SideEffects,
) *Scheduler {
	return &Scheduler{
		store:     store,
		jobs:      jobs,
		publisher: publisher,
		reactions: reactions,
		policies:  policies,
		effects:   effects,
	}
}

// Start 为刚发布的活动开启重播，首次执行在一个间隔之后
func (s *Scheduler) Start(ctx context.Context, ownerID int64, sess *models.Session, destinations []int64) error {
	if sess.CampaignID == 0 {
		return ErrNoCampaign
	}
	if sess.RebroadcastIntervalSeconds <= 0 || sess.RebroadcastTotal <= 0 {
		return fmt.Errorf("%w: interval=%d total=%d", ErrInvalidSchedule, sess.RebroadcastIntervalSeconds, sess.RebroadcastTotal)
	}
	if len(destinations) == 0 {
		return models.ErrNoDestinations
	}

	name := models.RebroadcastJobName(ownerID, sess.CampaignID)
	if s.jobs.Has(name) {
		return fmt.Errorf("%w: %s", ErrAlreadyScheduled, name)
	}

	entry := &models.ActiveRebroadcast{
		Interval: sess.RebroadcastIntervalSeconds,
		Payload:  models.SnapshotRebroadcast(ownerID, sess, destinations),
	}
	err := s.store.Mutate(ctx, func(st *repository.State) error {
		if _, ok := st.ActiveRebroadcasts[name]; ok {
			return fmt.Errorf("%w: %s", ErrAlreadyScheduled, name)
		}
		st.ActiveRebroadcasts[name] = entry
		return nil
	})
	if err != nil {
		return err
	}

	interval := time.Duration(entry.Interval) * time.Second
	if err := s.jobs.Every(name, interval, interval, s.task(name)); err != nil {
		_ = s.store.Mutate(ctx, func(st *repository.State) error {
			delete(st.ActiveRebroadcasts, name)
			return nil
		})
		return fmt.Errorf("failed to start rebroadcast %s: %w", name, err)
	}

	s.syncGauge()
	logger.L().Infof("Rebroadcast started: name=%s interval=%s total=%d destinations=%d",
		name, interval, entry.Payload.Total, len(destinations))
	return nil
}

func (s *Scheduler) task(name string) func(ctx context.Context) {
	return func(ctx context.Context) {
		s.Tick(ctx, name)
	}
}

// Tick 执行一次重播
func (s *Scheduler) Tick(ctx context.Context, name string) {
	var (
		payload models.RebroadcastPayload
		found   bool
	)
	s.store.View(func(st *repository.State) {
		if e, ok := st.ActiveRebroadcasts[name]; ok && e != nil {
			payload = e.Payload
			payload.Content = e.Payload.Content.Clone()
			payload.Destinations = append([]int64(nil), e.Payload.Destinations...)
			found = true
		}
	})
	if !found {
		logger.L().Warnf("Rebroadcast %s fired without registry entry, removing job", name)
		s.jobs.Remove(name)
		metrics.RebroadcastTicks.WithLabelValues("orphaned").Inc()
		return
	}

	policy := s.policies.Policy(payload.OwnerID)
	if policy.Maintenance {
		logger.L().Infof("Rebroadcast %s skipped: maintenance mode", name)
		metrics.RebroadcastTicks.WithLabelValues("skipped").Inc()
		return
	}

	res := s.publisher.Publish(ctx, publish.Request{
		OwnerID:       payload.OwnerID,
		Session:       payload.Session(),
		Policy:        policy,
		IsRebroadcast: true,
	})

	delivered := make([]int64, 0, len(res.Delivered))
	for _, d := range res.Delivered {
		delivered = append(delivered, d.ChatID)
	}

	if payload.UseReactions && policy.ReactionsEnabled && s.reactions != nil && len(delivered) > 0 {
		s.reactions.ReconcilePrompts(ctx, payload.CampaignID, delivered, policy.ReactionPrompt)
	}

	done := payload.Done()
	notice := fmt.Sprintf("🔁 重播 %d/%d", done, payload.Total)
	for _, chatID := range delivered {
		s.effects.Notify(ctx, chatID, notice, service.TextOptions{})
	}
	s.effects.Notify(ctx, payload.OwnerID, ownerReport(payload, done, res), service.TextOptions{})

	left, stopped := s.decrement(ctx, name)
	switch {
	case stopped:
		logger.L().Infof("Rebroadcast %s was stopped during tick", name)
	case left <= 0:
		s.jobs.Remove(name)
		logger.L().Infof("Rebroadcast finished: name=%s total=%d", name, payload.Total)
	default:
		logger.L().Infof("Rebroadcast tick: name=%s run=%d/%d sent=%d left=%d", name, done, payload.Total, res.Sent, left)
	}

	result := "ok"
	if res.Sent == 0 {
		result = "failed"
	}
	metrics.RebroadcastTicks.WithLabelValues(result).Inc()
	s.syncGauge()
}

// decrement 剩余次数减一，归零时删除登记
func (s *Scheduler) decrement(ctx context.Context, name string) (left int, stopped bool) {
	_ = s.store.Mutate(ctx, func(st *repository.State) error {
		e, ok := st.ActiveRebroadcasts[name]
		if !ok || e == nil {
			stopped = true
			return nil
		}
		e.Payload.Left--
		left = e.Payload.Left
		if left <= 0 {
			delete(st.ActiveRebroadcasts, name)
		}
		return nil
	})
	return left, stopped
}

// Stop 停止重播；任务不存在时无操作，返回是否确有任务被停止
func (s *Scheduler) Stop(ctx context.Context, ownerID, campaignID int64) bool {
	name := models.RebroadcastJobName(ownerID, campaignID)
	live := s.jobs.Has(name)
	s.jobs.Remove(name)

	registered := false
	_ = s.store.Mutate(ctx, func(st *repository.State) error {
		if _, ok := st.ActiveRebroadcasts[name]; ok {
			registered = true
			delete(st.ActiveRebroadcasts, name)
		}
		return nil
	})
	s.syncGauge()

	if live || registered {
		logger.L().Infof("Rebroadcast stopped: name=%s", name)
	}
	return live || registered
}

// Restore 启动时重新注册持久化的重播任务
func (s *Scheduler) Restore(ctx context.Context) int {
	type pending struct {
		name     string
		interval int
	}
	var (
		items []pending
		stale []string
	)
	s.store.View(func(st *repository.State) {
		for name, e := range st.ActiveRebroadcasts {
			if e == nil || e.Interval <= 0 || e.Payload.Left <= 0 {
				stale = append(stale, name)
				continue
			}
			items = append(items, pending{name: name, interval: e.Interval})
		}
	})

	restored := 0
	for _, it := range items {
		interval := time.Duration(it.interval) * time.Second
		first := interval
		if first < MinRestoreDelay {
			first = MinRestoreDelay
		}
		if err := s.jobs.Every(it.name, interval, first, s.task(it.name)); err != nil {
			logger.L().Errorf("Failed to restore rebroadcast %s: %v", it.name, err)
			continue
		}
		restored++
	}

	if len(stale) > 0 {
		_ = s.store.Mutate(ctx, func(st *repository.State) error {
			for _, name := range stale {
				delete(st.ActiveRebroadcasts, name)
			}
			return nil
		})
	}
	s.syncGauge()
	logger.L().Infof("Rebroadcasts restored: %d (dropped %d stale)", restored, len(stale))
	return restored
}

// Status 查询活动的重播状态
func (s *Scheduler) Status(ownerID, campaignID int64) (models.ActiveRebroadcast, bool) {
	name := models.RebroadcastJobName(ownerID, campaignID)
	var (
		out models.ActiveRebroadcast
		ok  bool
	)
	s.store.View(func(st *repository.State) {
		if e, exists := st.ActiveRebroadcasts[name]; exists && e != nil {
			out, ok = *e, true
		}
	})
	return out, ok
}

// NextRun 活动下次重播时间，任务不存在或调度器尚未运行时返回 false
func (s *Scheduler) NextRun(ownerID, campaignID int64) (time.Time, bool) {
	return s.jobs.NextRun(models.RebroadcastJobName(ownerID, campaignID))
}

// Active 返回所有进行中的重播（按活动 ID 排序）
func (s *Scheduler) Active() []models.RebroadcastPayload {
	var out []models.RebroadcastPayload
	s.store.View(func(st *repository.State) {
		for _, e := range st.ActiveRebroadcasts {
			if e == nil {
				continue
			}
			p := e.Payload
			p.Destinations = append([]int64(nil), e.Payload.Destinations...)
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CampaignID == out[j].CampaignID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out
}

// StopAll 停止所有重播，返回停止数量
func (s *Scheduler) StopAll(ctx context.Context) int {
	stopped := 0
	for _, p := range s.Active() {
		if s.Stop(ctx, p.OwnerID, p.CampaignID) {
			stopped++
		}
	}
	return stopped
}

func (s *Scheduler) syncGauge() {
	var n int
	s.store.View(func(st *repository.State) {
		n = len(st.ActiveRebroadcasts)
	})
	metrics.ActiveRebroadcasts.Set(float64(n))
}

func ownerReport(p models.RebroadcastPayload, done int, res publish.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔁 活动 #%d 第 %d/%d 次重播：成功 %d 个聊天", p.CampaignID, done, p.Total, res.Sent)
	if len(res.Errors) > 0 {
		b.WriteString("\n⚠️ 问题：")
		for _, e := range res.Errors {
			b.WriteString("\n• ")
			b.WriteString(e)
		}
	}
	if left := p.Left - 1; left > 0 {
		fmt.Fprintf(&b, "\n剩余 %d 次", left)
	} else {
		b.WriteString("\n✅ 重播已全部完成")
	}
	return b.String()
}
