package telegram

import (
	"fmt"
	"testing"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/service"

	botModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCmd  string
		wantArgs string
		wantOK   bool
	}{
		{name: "plain", text: "/start", wantCmd: "start", wantOK: true},
		{name: "with token", text: "/start abc123", wantCmd: "start", wantArgs: "abc123", wantOK: true},
		{name: "addressed to us", text: "/Start@PubBot  tok", wantCmd: "start", wantArgs: "tok", wantOK: true},
		{name: "addressed to other bot", text: "/start@OtherBot tok", wantOK: false},
		{name: "not a command", text: "hello /start", wantOK: false},
		{name: "bare slash", text: "/", wantOK: false},
		{name: "multiline args", text: "/ok\nnext", wantCmd: "ok", wantArgs: "next", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := parseCommand(tt.text, "pubbot")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCmd, cmd)
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func privateText(text string) *botModels.Update {
	return &botModels.Update{Message: &botModels.Message{
		Chat: botModels.Chat{ID: 1, Type: botModels.ChatTypePrivate},
		From: &botModels.User{ID: 1},
		Text: text,
	}}
}

func TestKeywordMatch(t *testing.T) {
	match := keywordMatch("ok")
	assert.True(t, match(privateText("ok")))
	assert.True(t, match(privateText("  OK ")))
	assert.False(t, match(privateText("okay")))
	assert.False(t, match(privateText("ok25s")))

	group := privateText("ok")
	group.Message.Chat.Type = botModels.ChatTypeSupergroup
	assert.False(t, match(group))

	assert.True(t, keywordMatch("ok25s")(privateText("Ok25S")))
}

func TestCommandMatch(t *testing.T) {
	b := &Bot{username: "pubbot"}
	assert.True(t, b.commandMatch("start")(privateText("/start token")))
	assert.False(t, b.commandMatch("start")(privateText("/starting")))
	assert.False(t, b.commandMatch("ok")(privateText("ok")))

	channel := &botModels.Update{ChannelPost: &botModels.Message{
		Chat: botModels.Chat{ID: -100, Type: botModels.ChatTypeChannel},
		Text: "/register@pubbot",
	}}
	assert.True(t, b.commandMatch("register")(channel))
}

func TestSessionCallbackMatch(t *testing.T) {
	cb := func(data string) *botModels.Update {
		return &botModels.Update{CallbackQuery: &botModels.CallbackQuery{ID: "q", Data: data}}
	}
	assert.True(t, sessionCallbackMatch(cb(cbDone)))
	assert.True(t, sessionCallbackMatch(cb("toggle_chat:-100")))
	assert.False(t, sessionCallbackMatch(cb("like:-100:5")))
	assert.False(t, sessionCallbackMatch(cb("dislike:-100:5")))
	assert.False(t, sessionCallbackMatch(cb("show_stats:3")))
	assert.False(t, sessionCallbackMatch(cb("stop_rebroadcast:1:3")))
	assert.False(t, sessionCallbackMatch(cb("panel:main")))
	assert.False(t, sessionCallbackMatch(cb("perm:chats")))
	assert.False(t, sessionCallbackMatch(privateText("done")))
}

func TestDestinationType(t *testing.T) {
	got, ok := destinationType(botModels.ChatTypeSupergroup)
	assert.True(t, ok)
	assert.Equal(t, models.ChatTypeGroup, got)

	got, ok = destinationType(botModels.ChatTypeChannel)
	assert.True(t, ok)
	assert.Equal(t, models.ChatTypeChannel, got)

	_, ok = destinationType(botModels.ChatTypePrivate)
	assert.False(t, ok)
}

func TestErrorTexts(t *testing.T) {
	assert.Equal(t, maintenanceNotice, accessDeniedText(fmt.Errorf("check: %w", service.ErrMaintenance)))
	assert.Contains(t, accessDeniedText(service.ErrNotWhitelisted), "白名单")

	assert.Contains(t, redeemErrorText(service.ErrTokenNotOwned), "不属于你")
	assert.Contains(t, redeemErrorText(service.ErrTokenExpired), "过期")
	assert.Contains(t, grantErrorText(service.ErrGrantRequiresReply), "回复")
	assert.Contains(t, grantErrorText(service.ErrNotChatAdmin), "管理员")
}

func TestRedactWebhook(t *testing.T) {
	assert.Equal(t, "https://bot.example.com/webhook/***", redactWebhook("https://bot.example.com/webhook/s3cr3t", "s3cr3t"))
	assert.Equal(t, "https://bot.example.com/webhook", redactWebhook("https://bot.example.com/webhook", ""))
}

func TestUpdateChatID(t *testing.T) {
	assert.Equal(t, int64(1), updateChatID(privateText("x")))
	assert.Equal(t, int64(7), updateChatID(&botModels.Update{CallbackQuery: &botModels.CallbackQuery{From: botModels.User{ID: 7}}}))
	assert.Zero(t, updateChatID(nil))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann Lee", displayName(&botModels.User{FirstName: "Ann", LastName: "Lee"}))
	assert.Equal(t, "@ann", displayName(&botModels.User{Username: "ann"}))
	assert.Empty(t, displayName(nil))
}
