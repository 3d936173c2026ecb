package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestEveryRegistersNamedJob(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Every("rebroadcast_1_2", time.Hour, 30*time.Second, func(ctx context.Context) {})
	require.NoError(t, err)
	assert.True(t, s.Has("rebroadcast_1_2"))
	assert.False(t, s.Has("rebroadcast_1_3"))
}

func TestNextRunAfterStart(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.Every("rebroadcast_1_2", time.Hour, 30*time.Second, func(ctx context.Context) {}))
	_, ok := s.NextRun("rebroadcast_1_2")
	assert.False(t, ok, "next run is unknown until the scheduler starts")

	s.Start()
	require.Eventually(t, func() bool {
		_, ok := s.NextRun("rebroadcast_1_2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	next, _ := s.NextRun("rebroadcast_1_2")
	assert.WithinDuration(t, time.Now().Add(30*time.Second), next, 5*time.Second)

	_, ok = s.NextRun("missing")
	assert.False(t, ok)
}

func TestEveryReplacesSameName(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.Every("autosave", time.Minute, 0, func(ctx context.Context) {}))
	require.NoError(t, s.Every("autosave", time.Hour, 0, func(ctx context.Context) {}))

	count := 0
	for _, j := range s.s.Jobs() {
		if j.Name() == "autosave" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEveryRejectsZeroInterval(t *testing.T) {
	s := newTestScheduler(t)
	assert.Error(t, s.Every("bad", 0, 0, func(ctx context.Context) {}))
}

func TestRemove(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.Every("job", time.Hour, 0, func(ctx context.Context) {}))
	s.Remove("job")
	assert.False(t, s.Has("job"))

	// 不存在的任务
	s.Remove("missing")
}

func TestAfterRunsOnce(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()

	done := make(chan struct{}, 2)
	require.NoError(t, s.After(50*time.Millisecond, "delete_later", func(ctx context.Context) {
		done <- struct{}{}
	}))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("one-time job did not run")
	}
}

func TestFormatSchedulerLog(t *testing.T) {
	got := formatSchedulerLog("job ran", []any{"name", "autosave", "dangling"})
	assert.Equal(t, "gocron: job ran name=autosave dangling", got)
}
