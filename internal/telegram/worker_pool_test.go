package telegram

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := NewWorkerPool(2, 8)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		ok := pool.Submit(HandlerTask{
			Ctx:    context.Background(),
			Update: &botModels.Update{ID: int64(i)},
			Handler: func(ctx context.Context, _ *bot.Bot, _ *botModels.Update) {
				ran.Add(1)
			},
		})
		require.True(t, ok)
	}
	pool.Shutdown()

	assert.Equal(t, int32(5), ran.Load())
	assert.False(t, pool.Submit(HandlerTask{}), "closed pool accepts no work")
	pool.Shutdown()
}

func TestWorkerPoolRecoversPanic(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	recovered := make(chan int64, 1)
	pool.onPanic = func(task HandlerTask) { recovered <- task.Update.ID }

	pool.Submit(HandlerTask{
		Ctx:    context.Background(),
		Update: &botModels.Update{ID: 42},
		Handler: func(context.Context, *bot.Bot, *botModels.Update) {
			panic("boom")
		},
	})

	select {
	case id := <-recovered:
		assert.Equal(t, int64(42), id)
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported")
	}

	done := make(chan struct{})
	pool.Submit(HandlerTask{
		Ctx:     context.Background(),
		Handler: func(context.Context, *bot.Bot, *botModels.Update) { close(done) },
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	pool.Shutdown()
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	blocking := func(context.Context, *bot.Bot, *botModels.Update) {
		close(started)
		<-block
	}
	noop := func(context.Context, *bot.Bot, *botModels.Update) {}

	require.True(t, pool.Submit(HandlerTask{Ctx: context.Background(), Handler: blocking}))
	<-started
	require.True(t, pool.Submit(HandlerTask{Ctx: context.Background(), Handler: noop}))
	assert.False(t, pool.Submit(HandlerTask{Ctx: context.Background(), Handler: noop}))

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Workers)
	assert.Equal(t, 1, stats.QueueLength)
	assert.Equal(t, 1, stats.QueueCapacity)

	close(block)
	pool.Shutdown()
}
