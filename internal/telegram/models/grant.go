package models

import "time"

// GrantTTL 临时授权有效期
const GrantTTL = 30 * time.Minute

// TempGrant 临时发布授权，按被授权用户 ID 存储
type TempGrant struct {
	ChatID    int64     `json:"chat_id"`
	Expires   Timestamp `json:"expires"`
	Used      bool      `json:"used"`
	GrantedBy int64     `json:"granted_by"`

	AnnounceMessageID int `json:"announce_msg_id,omitempty"` // 群内公告消息，过期后删除

	Reserved bool `json:"-"` // 发布进行中，不落盘
}

// ActiveAt 判断授权在 now 时刻是否有效
// 已使用或已过期的授权等同于不存在
func (g *TempGrant) ActiveAt(now time.Time) bool {
	if g == nil || g.Used {
		return false
	}
	return now.Before(g.Expires.Time)
}

// AvailableAt 授权有效且没有被进行中的发布占用
func (g *TempGrant) AvailableAt(now time.Time) bool {
	return g.ActiveAt(now) && !g.Reserved
}

// ActiveFor 判断授权在 now 时刻对指定聊天是否有效
func (g *TempGrant) ActiveFor(chatID int64, now time.Time) bool {
	return g.ActiveAt(now) && g.ChatID == chatID
}

// StartToken 深链接一次性令牌
type StartToken struct {
	UserID  int64     `json:"user_id"`
	ChatID  int64     `json:"chat_id"`
	Expires Timestamp `json:"expires"`
}

// ExpiredAt 判断令牌是否已过期
func (t *StartToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.Expires.Time)
}
