package service

import "errors"

var (
	// ErrNoSession 用户没有进行中的会话
	ErrNoSession = errors.New("no active session")
	// ErrPublishInProgress 会话正在发布
	ErrPublishInProgress = errors.New("session is already being published")
	// ErrNotChatAdmin 用户不是该聊天的管理员
	ErrNotChatAdmin = errors.New("user is not an admin of the chat")
	// ErrGrantRequiresReply 授权命令必须回复被授权人的消息
	ErrGrantRequiresReply = errors.New("grant must reply to the target user's message")
	// ErrGrantBotTarget 不能授权给机器人
	ErrGrantBotTarget = errors.New("cannot grant publishing to a bot")
	// ErrTokenInvalid 令牌不存在
	ErrTokenInvalid = errors.New("start token is invalid")
	// ErrTokenExpired 令牌已过期
	ErrTokenExpired = errors.New("start token has expired")
	// ErrTokenNotOwned 令牌属于其他用户
	ErrTokenNotOwned = errors.New("start token belongs to another user")
	// ErrGrantInactive 授权已使用或已过期
	ErrGrantInactive = errors.New("grant is used or expired")
	// ErrMaintenance 维护模式中
	ErrMaintenance = errors.New("bot is in maintenance mode")
	// ErrNotWhitelisted 白名单模式下用户不在名单中
	ErrNotWhitelisted = errors.New("user is not whitelisted")
	// ErrInvalidVote 投票回调数据不合法
	ErrInvalidVote = errors.New("invalid vote payload")
	// ErrUnknownChat 聊天未登记
	ErrUnknownChat = errors.New("chat is not registered")
)
