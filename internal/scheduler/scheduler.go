package scheduler

import (
	"context"
	"fmt"
	"time"

	"publisher_bot/internal/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler 基于 gocron 的命名任务调度器
// 任务名同时作为 tag，按名称查询与删除
type Scheduler struct {
	s   gocron.Scheduler
	now func() time.Time
}

// New 创建调度器，调度循环在创建后即可接受任务，Start 之后才会执行
func New(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	opts = append([]gocron.SchedulerOption{gocron.WithLogger(logrusAdapter{})}, opts...)
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{s: s, now: time.Now}, nil
}

// Every 注册周期任务，firstIn 之后首次执行，之后每隔 interval 执行一次
// 同名任务已存在时先移除
func (s *Scheduler) Every(name string, interval, firstIn time.Duration, task func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for job %s", interval, name)
	}
	if firstIn <= 0 {
		firstIn = interval
	}
	s.Remove(name)

	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithTags(name),
		gocron.WithStartAt(gocron.WithStartDateTime(s.now().Add(firstIn))),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(gocron.AfterJobRunsWithPanic(func(_ uuid.UUID, jobName string, recoverData any) {
			logger.L().Errorf("Job %s panicked: %v", jobName, recoverData)
		})),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	logger.L().Infof("Job scheduled: name=%s interval=%s first_in=%s", name, interval, firstIn)
	return nil
}

// After 注册一次性任务
func (s *Scheduler) After(delay time.Duration, name string, task func(ctx context.Context)) error {
	if delay <= 0 {
		delay = time.Second
	}
	_, err := s.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(s.now().Add(delay))),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithTags(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule one-time job %s: %w", name, err)
	}
	return nil
}

// Has 判断是否存在同名任务
func (s *Scheduler) Has(name string) bool {
	for _, j := range s.s.Jobs() {
		if j.Name() == name {
			return true
		}
	}
	return false
}

// NextRun 返回同名任务的下次执行时间
// 调度器 Start 之前 gocron 不计算执行时间，此时返回 false
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, j := range s.s.Jobs() {
		if j.Name() != name {
			continue
		}
		next, err := j.NextRun()
		if err != nil || next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// Remove 删除同名任务，不存在时无操作
func (s *Scheduler) Remove(name string) {
	s.s.RemoveByTags(name)
}

// Start 开始执行任务
func (s *Scheduler) Start() {
	s.s.Start()
}

// Shutdown 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Shutdown() error {
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}
