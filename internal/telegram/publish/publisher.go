package publish

import (
	"context"
	"fmt"
	"time"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/metrics"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
	"publisher_bot/internal/telegram/service"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// 默认发布参数
const (
	DefaultMaxConcurrency = 5
	DefaultPerChatTimeout = 25 * time.Second
	DefaultRetryFallback  = 3 * time.Second
)

// Authorizer 首次发布时的权限检查
type Authorizer interface {
	CanPublish(ctx context.Context, userID, chatID int64) (bool, error)
}

// Config 发布参数
type Config struct {
	MaxConcurrency int
	PerChatTimeout time.Duration
	RatePerSecond  float64       // 全局发送速率，<=0 表示不限速
	RetryFallback  time.Duration // 限流响应未给出等待时间时使用
}

// Request 一次发布请求
type Request struct {
	OwnerID       int64
	Session       *models.Session
	Policy        models.EffectivePolicy
	IsRebroadcast bool // 重播跳过管理员/授权复查，也不置顶、不新建评价提示
}

// Delivery 一次成功投递
type Delivery struct {
	ChatID        int64
	MessageID     int
	BaseMessageID int
	Retried       bool
}

// Result 发布结果，部分失败不会返回 error
type Result struct {
	CampaignID int64
	Sent       int
	Errors     []string
	Delivered  []Delivery
	Attempted  []int64 // 通过过滤和权限检查、实际尝试发送的聊天
}

// Publisher 并发向多个聊天发布帖子
type Publisher struct {
	store     *repository.StateStore
	messenger service.Messenger
	campaigns *service.CampaignRegistry
	reactions *service.ReactionService
	effects   *service.SideEffects
	auth      Authorizer
	limiter   *rate.Limiter
	cfg       Config

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublisher 创建发布器
func NewPublisher(
	store *repository.StateStore,
	messenger service.Messenger,
	campaigns *service.CampaignRegistry,
	reactions *service.ReactionService,
	effects *service.SideEffects,
	auth Authorizer,
	cfg Config,
) *Publisher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.PerChatTimeout <= 0 {
		cfg.PerChatTimeout = DefaultPerChatTimeout
	}
	if cfg.RetryFallback <= 0 {
		cfg.RetryFallback = DefaultRetryFallback
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Publisher{
		store:     store,
		messenger: messenger,
		campaigns: campaigns,
		reactions: reactions,
		effects:   effects,
		auth:      auth,
		limiter:   rate.NewLimiter(limit, burst),
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type sendOutcome struct {
	chatID    int64
	messageID int
	retried   bool
	err       error
}

// Publish 执行一次发布
func (p *Publisher) Publish(ctx context.Context, req Request) Result {
	start := time.Now()
	kind := "initial"
	if req.IsRebroadcast {
		kind = "rebroadcast"
	}
	taskID := uuid.NewString()

	var res Result
	if req.Policy.Maintenance {
		res.Errors = append(res.Errors, "🛠 维护模式中，暂停发布")
		return res
	}

	sess := req.Session.Clone()
	fin := sess.FinalizeForPublish(req.Policy)

	titles := map[int64]string{}
	p.store.View(func(st *repository.State) {
		for _, id := range sess.ChosenChats.Sorted() {
			titles[id] = st.ChatTitle(id)
		}
	})
	title := func(id int64) string {
		if t, ok := titles[id]; ok {
			return t
		}
		return fmt.Sprintf("%d", id)
	}

	for _, id := range fin.Blocked {
		res.Errors = append(res.Errors, fmt.Sprintf("你在 %s 已被禁止发布", title(id)))
	}
	for _, id := range fin.Disabled {
		res.Errors = append(res.Errors, fmt.Sprintf("%s 已被停用，已跳过", title(id)))
	}

	eligible := fin.Destinations
	if !req.IsRebroadcast {
		eligible = p.authorize(ctx, req.OwnerID, fin.Destinations, title, &res)
	}
	res.Attempted = eligible
	if len(eligible) == 0 {
		if len(res.Errors) == 0 {
			res.Errors = append(res.Errors, "没有可发布的目标")
		}
		return res
	}

	res.CampaignID = p.campaigns.Ensure(sess.CampaignID, sess.ReactionStyle)
	logger.L().Infof("Publish started: task_id=%s kind=%s owner=%d campaign=%d destinations=%d",
		taskID, kind, req.OwnerID, res.CampaignID, len(eligible))

	opts := service.ContentOptions{HideLinks: req.Policy.HideLinks}
	outcomes := make([]sendOutcome, len(eligible))

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, chatID := range eligible {
		i, chatID := i, chatID
		g.Go(func() error {
			outcomes[i] = p.sendOne(ctx, chatID, sess.Content, opts)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			se := service.ClassifySendError(o.err)
			metrics.PublishDeliveries.WithLabelValues(kind, string(se.Kind)).Inc()
			logger.L().Warnf("Publish to chat %d failed: task_id=%s kind=%s err=%v", o.chatID, taskID, se.Kind, o.err)
			res.Errors = append(res.Errors, fmt.Sprintf("无法发送到 %s：%s", title(o.chatID), describe(se)))
			continue
		}

		metrics.PublishDeliveries.WithLabelValues(kind, "ok").Inc()
		base := p.campaigns.RecordDelivery(res.CampaignID, o.chatID, o.messageID)
		res.Delivered = append(res.Delivered, Delivery{
			ChatID:        o.chatID,
			MessageID:     o.messageID,
			BaseMessageID: base,
			Retried:       o.retried,
		})
		res.Sent++
	}
	if res.Sent == 0 && sess.CampaignID == 0 {
		// 新活动一条都没送达，不留下空活动
		p.campaigns.Discard(res.CampaignID)
		res.CampaignID = 0
	}
	p.store.SaveQuietly(ctx)

	if !req.IsRebroadcast {
		for _, d := range res.Delivered {
			if sess.PinEnabled {
				p.effects.Pin(ctx, d.ChatID, d.MessageID)
			}
			if sess.UseReactions && p.reactions != nil {
				if err := p.reactions.EnsurePrompt(ctx, res.CampaignID, d.ChatID, req.Policy.ReactionPrompt); err != nil {
					logger.L().Warnf("Reaction prompt failed: campaign=%d chat_id=%d: %v", res.CampaignID, d.ChatID, err)
				}
			}
		}
	}

	metrics.PublishDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	logger.L().Infof("Publish completed: task_id=%s campaign=%d sent=%d failed=%d duration=%v",
		taskID, res.CampaignID, res.Sent, len(eligible)-res.Sent, time.Since(start))
	return res
}

// authorize 首次发布要求发布者是聊天管理员或持有该聊天的有效授权
func (p *Publisher) authorize(ctx context.Context, ownerID int64, chats []int64, title func(int64) string, res *Result) []int64 {
	if p.auth == nil {
		return chats
	}
	allowed := make([]int64, 0, len(chats))
	for _, chatID := range chats {
		ok, err := p.auth.CanPublish(ctx, ownerID, chatID)
		if err != nil {
			logger.L().Warnf("Publish permission check failed: chat_id=%d user_id=%d: %v", chatID, ownerID, err)
			res.Errors = append(res.Errors, fmt.Sprintf("无法确认你在 %s 的权限，已跳过", title(chatID)))
			continue
		}
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("你不是 %s 的管理员，已跳过", title(chatID)))
			continue
		}
		allowed = append(allowed, chatID)
	}
	return allowed
}

// sendOne 向单个聊天发送；限流时按服务端给出的等待时间重试一次
func (p *Publisher) sendOne(ctx context.Context, chatID int64, content models.Content, opts service.ContentOptions) sendOutcome {
	out := sendOutcome{chatID: chatID}

	send := func() (int, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.PerChatTimeout)
		defer cancel()
		return p.messenger.SendContent(sendCtx, chatID, content, opts)
	}

	msgID, err := send()
	if err == nil {
		out.messageID = msgID
		return out
	}

	se := service.ClassifySendError(err)
	if se.Kind != service.SendRateLimited {
		out.err = err
		return out
	}

	wait := se.RetryAfter
	if wait <= 0 {
		wait = p.cfg.RetryFallback
	}
	metrics.SendRetries.Inc()
	logger.L().Infof("Rate limited on chat %d, retrying in %s", chatID, wait)

	out.retried = true
	if err := p.sleep(ctx, wait); err != nil {
		out.err = err
		return out
	}
	msgID, err = send()
	if err != nil {
		out.err = err
		return out
	}
	out.messageID = msgID
	return out
}

func describe(se service.SendError) string {
	switch se.Kind {
	case service.SendRateLimited:
		return "触发频率限制"
	case service.SendTimedOut:
		return "发送超时"
	case service.SendNetworkError:
		return "网络错误"
	}
	return fmt.Sprintf("发送失败（%v）", se.Err)
}
