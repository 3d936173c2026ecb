package publish

import (
	"context"
	"errors"
	"fmt"

	"publisher_bot/internal/logger"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"
)

// ErrSchedulingDisabled 全局关闭了定时重播
var ErrSchedulingDisabled = errors.New("scheduling disabled")

// Scheduler 启动重播任务
type Scheduler interface {
	Start(ctx context.Context, ownerID int64, sess *models.Session, destinations []int64) error
}

// LaunchReport 一次完整发布流程的结果
type LaunchReport struct {
	Result
	Scheduled   bool
	ScheduleErr error
	Kept        bool // 全部失败时保留会话以便重试
}

// Launcher 串联会话、发布、授权消耗和重播调度
type Launcher struct {
	sessions  *service.SessionService
	admin     *service.AdminService
	grants    *service.GrantService
	publisher *Publisher
	scheduler Scheduler
}

// NewLauncher 创建发布流程
func NewLauncher(sessions *service.SessionService, admin *service.AdminService, grants *service.GrantService, publisher *Publisher, scheduler Scheduler) *Launcher {
	return &Launcher{
		sessions:  sessions,
		admin:     admin,
		grants:    grants,
		publisher: publisher,
		scheduler: scheduler,
	}
}

// SetScheduler 在重播调度器创建后注入
func (l *Launcher) SetScheduler(s Scheduler) {
	l.scheduler = s
}

// Launch 占用用户当前会话并发布
func (l *Launcher) Launch(ctx context.Context, userID int64) (LaunchReport, error) {
	sess, err := l.Claim(userID)
	if err != nil {
		return LaunchReport{}, err
	}
	return l.Run(ctx, userID, sess), nil
}

// Claim 占用会话，重复点击发布时返回 service.ErrPublishInProgress
func (l *Launcher) Claim(userID int64) (*models.Session, error) {
	return l.sessions.Claim(userID)
}

// Run 发布已占用的会话
// 没有任何送达时解除占用并保留会话，否则消耗授权并结束会话
func (l *Launcher) Run(ctx context.Context, userID int64, sess *models.Session) LaunchReport {
	policy := l.admin.Policy(userID)
	res := l.publisher.Publish(ctx, Request{OwnerID: userID, Session: sess, Policy: policy})
	report := LaunchReport{Result: res}

	if res.Sent == 0 {
		l.sessions.Release(userID)
		report.Kept = true
		return report
	}

	sess.CampaignID = res.CampaignID
	sess.FinalizeForPublish(policy)
	if sess.IsTempGranted {
		if err := l.grants.Consume(ctx, userID); err != nil {
			logger.L().Errorf("Failed to consume grant for user %d: %v", userID, err)
		}
	}

	if sess.ScheduleActive && l.scheduler != nil {
		switch {
		case !policy.SchedulingEnabled:
			report.ScheduleErr = ErrSchedulingDisabled
		default:
			if err := l.scheduler.Start(ctx, userID, sess, res.Attempted); err != nil {
				report.ScheduleErr = err
			} else {
				report.Scheduled = true
			}
		}
	}

	if err := l.sessions.Finish(ctx, userID); err != nil {
		logger.L().Errorf("Failed to finish session for user %d: %v", userID, err)
	}
	logger.L().Infof("Session published: user_id=%d campaign=%d sent=%d scheduled=%t",
		userID, res.CampaignID, res.Sent, report.Scheduled)
	return report
}

// Summary 发布结果摘要文本
func (r LaunchReport) Summary() string {
	text := fmt.Sprintf("✅ 已发布到 %d 个聊天", r.Sent)
	if r.Sent == 0 {
		text = "❌ 发布失败，会话已保留，可以调整后重试"
	}
	if r.CampaignID != 0 && r.Sent > 0 {
		text += fmt.Sprintf("\n活动编号：#%d", r.CampaignID)
	}
	if r.Scheduled {
		text += "\n🔁 已开启定时重播"
	} else if r.ScheduleErr != nil {
		text += "\n⚠️ 定时重播未开启"
	}
	if len(r.Errors) > 0 {
		text += "\n\n⚠️ 问题："
		for _, e := range r.Errors {
			text += "\n• " + e
		}
	}
	return text
}
