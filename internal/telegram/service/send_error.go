package service

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// SendErrorKind 发送失败的类别
type SendErrorKind string

const (
	SendRateLimited  SendErrorKind = "rate_limited"
	SendTimedOut     SendErrorKind = "timed_out"
	SendNetworkError SendErrorKind = "network_error"
	SendOther        SendErrorKind = "other"
)

// SendError 分类后的发送错误
type SendError struct {
	Kind       SendErrorKind
	RetryAfter time.Duration // 仅 rate_limited 有值，0 表示服务端未给出
	Err        error
}

func (e SendError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e SendError) Unwrap() error {
	return e.Err
}

// ClassifySendError 将消息后端返回的错误归类
// go-telegram/bot 会把传输层错误压成字符串，因此最后按文本兜底
func ClassifySendError(err error) SendError {
	if err == nil {
		return SendError{}
	}

	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return SendError{
			Kind:       SendRateLimited,
			RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	if errors.Is(err, bot.ErrorTooManyRequests) {
		return SendError{Kind: SendRateLimited, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return SendError{Kind: SendTimedOut, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return SendError{Kind: SendTimedOut, Err: err}
		}
		return SendError{Kind: SendNetworkError, Err: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "Client.Timeout"):
		return SendError{Kind: SendTimedOut, Err: err}
	case strings.Contains(msg, "error do request"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "EOF"):
		return SendError{Kind: SendNetworkError, Err: err}
	}
	return SendError{Kind: SendOther, Err: err}
}

// IsNotModified 编辑内容与原内容一致，Telegram 视为错误，这里按成功处理
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// IsTransient 限流、超时、网络错误或请求被取消，目标消息可能仍然存在
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return ClassifySendError(err).Kind != SendOther
}
