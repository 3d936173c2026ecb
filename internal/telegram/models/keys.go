package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator 复合键序列化分隔符
const KeySeparator = "|"

// legacyKeySeparator 旧版状态文件使用的分隔符，仅在解析时兼容
const legacyKeySeparator = "::"

// ErrMalformedKey 复合键格式错误
var ErrMalformedKey = errors.New("malformed composite key")

// MessageKey 标识某个聊天中的一条消息
type MessageKey struct {
	ChatID    int64
	MessageID int
}

// String 返回 "<chat_id>|<message_id>"
func (k MessageKey) String() string {
	return strconv.FormatInt(k.ChatID, 10) + KeySeparator + strconv.Itoa(k.MessageID)
}

// MarshalText 实现 encoding.TextMarshaler，使其可作为 JSON map 键
func (k MessageKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *MessageKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseMessageKey 解析消息复合键
func ParseMessageKey(s string) (MessageKey, error) {
	a, b, err := splitKey(s)
	if err != nil {
		return MessageKey{}, err
	}
	chatID, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return MessageKey{}, fmt.Errorf("%w: chat id %q", ErrMalformedKey, a)
	}
	msgID, err := strconv.Atoi(b)
	if err != nil {
		return MessageKey{}, fmt.Errorf("%w: message id %q", ErrMalformedKey, b)
	}
	return MessageKey{ChatID: chatID, MessageID: msgID}, nil
}

// CampaignChatKey 标识某个活动在某个聊天中的位置
type CampaignChatKey struct {
	CampaignID int64
	ChatID     int64
}

func (k CampaignChatKey) String() string {
	return strconv.FormatInt(k.CampaignID, 10) + KeySeparator + strconv.FormatInt(k.ChatID, 10)
}

func (k CampaignChatKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CampaignChatKey) UnmarshalText(text []byte) error {
	parsed, err := ParseCampaignChatKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseCampaignChatKey 解析活动-聊天复合键
func ParseCampaignChatKey(s string) (CampaignChatKey, error) {
	a, b, err := splitKey(s)
	if err != nil {
		return CampaignChatKey{}, err
	}
	campaignID, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return CampaignChatKey{}, fmt.Errorf("%w: campaign id %q", ErrMalformedKey, a)
	}
	chatID, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return CampaignChatKey{}, fmt.Errorf("%w: chat id %q", ErrMalformedKey, b)
	}
	return CampaignChatKey{CampaignID: campaignID, ChatID: chatID}, nil
}

func splitKey(s string) (string, string, error) {
	sep := KeySeparator
	if !strings.Contains(s, KeySeparator) && strings.Contains(s, legacyKeySeparator) {
		sep = legacyKeySeparator
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
