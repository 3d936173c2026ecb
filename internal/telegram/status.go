package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// buildPingMessage /ping 的状态报告
func (b *Bot) buildPingMessage(ctx context.Context) string {
	lines := []string{"🏓 Pong!"}

	if !b.startTime.IsZero() {
		lines = append(lines, "⏱ 运行时间: "+formatDuration(time.Since(b.startTime)))
	}

	if b.workerPool != nil {
		stats := b.workerPool.Stats()
		lines = append(lines, fmt.Sprintf("🛠 工作池: %d 个协程，队列 %d/%d", stats.Workers, stats.QueueLength, stats.QueueCapacity))
	}

	if b.admin != nil && b.admin.Settings().MaintenanceMode {
		lines = append(lines, "🚧 维护模式已开启")
	}

	if b.store != nil {
		st := b.store.Stats()
		lines = append(lines, fmt.Sprintf("📦 状态: 会话 %d · 活动 %d · 重播 %d · 聊天 %d",
			st.Sessions, st.Campaigns, st.Rebroadcasts, st.KnownChats))
		lines = append(lines, fmt.Sprintf("🗄 存储 (%s): %s", st.Backend, b.storageStatus(ctx)))
		if st.SaveBlocked {
			lines = append(lines, "⛔ 快照加载失败，自动保存已暂停；确认后发送 /forcesave 覆盖")
		}
	}

	lines = append(lines, b.apiLatencyLine(ctx))
	return strings.Join(lines, "\n")
}

func (b *Bot) storageStatus(ctx context.Context) string {
	if b.cfg.StorageCheck == nil {
		return "✅ 正常"
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.cfg.StorageCheck(checkCtx); err != nil {
		return fmt.Sprintf("⚠️ %v", err)
	}
	return "✅ 正常"
}

// apiLatencyLine 用 getMe 往返时间衡量到 Bot API 的延迟
func (b *Bot) apiLatencyLine(ctx context.Context) string {
	if b.bot == nil {
		return "🌐 Bot API: 未连接"
	}
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := b.bot.GetMe(probeCtx); err != nil {
		return fmt.Sprintf("🌐 Bot API: ⚠️ %v", err)
	}
	return fmt.Sprintf("🌐 Bot API 延迟: %s", time.Since(start).Round(time.Millisecond))
}

var durationUnits = []struct {
	size  time.Duration
	label string
}{
	{24 * time.Hour, "天"},
	{time.Hour, "小时"},
	{time.Minute, "分钟"},
	{time.Second, "秒"},
}

// formatDuration 如 "1天 2小时 3秒"，零值为 "0秒"
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0秒"
	}
	parts := make([]string, 0, len(durationUnits))
	for _, u := range durationUnits {
		if n := d / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.label))
			d -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}
