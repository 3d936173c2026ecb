package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// PublishDeliveries 按结果统计单个目标的投递
	PublishDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_deliveries_total",
		Help: "Deliveries to destination chats by outcome.",
	}, []string{"kind", "outcome"})

	// PublishDuration 一次发布（含全部目标）的耗时
	PublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "publisher_publish_duration_seconds",
		Help:    "Duration of a whole publish fan-out.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// SendRetries 限流后的重试次数
	SendRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publisher_send_retries_total",
		Help: "Sends retried after a rate limit response.",
	})

	// Votes 投票结果
	Votes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_votes_total",
		Help: "Reaction votes by scope and result.",
	}, []string{"scope", "result"})

	// RebroadcastTicks 重播执行次数
	RebroadcastTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_rebroadcast_ticks_total",
		Help: "Rebroadcast ticks by result.",
	}, []string{"result"})

	// ActiveRebroadcasts 当前活跃的重播任务数
	ActiveRebroadcasts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "publisher_active_rebroadcasts",
		Help: "Rebroadcast schedules currently armed.",
	})

	// SideEffectFailures 非关键副作用失败次数
	SideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_side_effect_failures_total",
		Help: "Failed cosmetic side effects (pin, delete, keyboard edits).",
	}, []string{"effect"})

	// HandlerEvents 处理器事件：dropped 队列已满丢弃，panic 处理器崩溃，其余为业务事件
	HandlerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_handler_events_total",
		Help: "Handler and worker pool events by type.",
	}, []string{"event"})

	// StateSaves 状态持久化结果
	StateSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publisher_state_saves_total",
		Help: "State snapshot writes by result.",
	}, []string{"result"})
)

// MustRegister 注册全部指标，重复调用只生效一次
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			PublishDeliveries,
			PublishDuration,
			SendRetries,
			Votes,
			RebroadcastTicks,
			ActiveRebroadcasts,
			SideEffectFailures,
			HandlerEvents,
			StateSaves,
		)
	})
}
