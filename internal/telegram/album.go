package telegram

import (
	"sort"
	"sync"
	"time"

	"publisher_bot/internal/logger"

	botModels "github.com/go-telegram/bot/models"
)

// defaultAlbumWait 等待同一相册其余消息的时间
const defaultAlbumWait = 1500 * time.Millisecond

// albumBuffer 相册缓冲区
type albumBuffer struct {
	messages []*botModels.Message
	timer    *time.Timer
	mu       sync.Mutex
}

// albumCollector 把同一 media_group_id 的消息合并为一次回调
type albumCollector struct {
	buffers   map[string]*albumBuffer
	mu        sync.Mutex
	wait      time.Duration
	onCollect func(messages []*botModels.Message)
}

func newAlbumCollector(wait time.Duration, onCollect func([]*botModels.Message)) *albumCollector {
	if wait <= 0 {
		wait = defaultAlbumWait
	}
	return &albumCollector{
		buffers:   make(map[string]*albumBuffer),
		wait:      wait,
		onCollect: onCollect,
	}
}

// Add 添加消息；每来一条消息重置计时器
func (c *albumCollector) Add(message *botModels.Message) {
	groupID := message.MediaGroupID

	c.mu.Lock()
	buffer, exists := c.buffers[groupID]
	if !exists {
		buffer = &albumBuffer{}
		c.buffers[groupID] = buffer
	}
	c.mu.Unlock()

	buffer.mu.Lock()
	buffer.messages = append(buffer.messages, message)
	if buffer.timer != nil {
		buffer.timer.Stop()
	}
	buffer.timer = time.AfterFunc(c.wait, func() {
		c.collect(groupID)
	})
	buffer.mu.Unlock()

	logger.L().Debugf("Album message buffered: media_group_id=%s total=%d", groupID, len(buffer.messages))
}

func (c *albumCollector) collect(groupID string) {
	c.mu.Lock()
	buffer, exists := c.buffers[groupID]
	if !exists {
		c.mu.Unlock()
		return
	}
	delete(c.buffers, groupID)
	c.mu.Unlock()

	buffer.mu.Lock()
	messages := buffer.messages
	buffer.mu.Unlock()

	if len(messages) == 0 {
		return
	}
	// 更新可能乱序到达，按消息 ID 还原相册顺序
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	logger.L().Infof("Album collected: media_group_id=%s messages=%d", groupID, len(messages))
	c.onCollect(messages)
}

// Flush 立即处理所有缓冲的相册（关闭时调用）
func (c *albumCollector) Flush() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.buffers))
	for id, buffer := range c.buffers {
		buffer.mu.Lock()
		if buffer.timer != nil {
			buffer.timer.Stop()
		}
		buffer.mu.Unlock()
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.collect(id)
	}
}
