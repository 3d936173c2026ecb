package service

import (
	"context"
	"time"

	"publisher_bot/internal/telegram/models"
)

// Button 内联按钮，Data 与 URL 二选一
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard 内联键盘（按行）
type Keyboard [][]Button

// ContentOptions 发送帖子内容的选项
type ContentOptions struct {
	HideLinks     bool // 链接替换为文字超链接
	DisableNotify bool
}

// TextOptions 发送文本消息的选项
type TextOptions struct {
	ReplyTo            int
	Keyboard           Keyboard
	HTML               bool
	DisableLinkPreview bool
}

// MemberRole 聊天成员角色
type MemberRole string

const (
	RoleCreator       MemberRole = "creator"
	RoleAdministrator MemberRole = "administrator"
	RoleMember        MemberRole = "member"
	RoleOther         MemberRole = "other"
)

// IsAdmin 创建者与管理员都视为管理员
func (r MemberRole) IsAdmin() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// Messenger 消息后端（Telegram Bot API 的抽象）
type Messenger interface {
	// SendContent 发送帖子内容，返回第一条消息的 ID
	SendContent(ctx context.Context, chatID int64, content models.Content, opts ContentOptions) (int, error)

	// SendText 发送文本消息
	SendText(ctx context.Context, chatID int64, text string, opts TextOptions) (int, error)

	// EditKeyboard 替换消息的内联键盘
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error

	// Pin 静默置顶
	Pin(ctx context.Context, chatID int64, messageID int) error

	// Delete 删除消息
	Delete(ctx context.Context, chatID int64, messageID int) error

	// MemberRole 查询用户在聊天中的角色
	MemberRole(ctx context.Context, chatID, userID int64) (MemberRole, error)
}

// Deferrer 延迟执行一次性任务
type Deferrer interface {
	After(delay time.Duration, name string, task func(ctx context.Context)) error
}
