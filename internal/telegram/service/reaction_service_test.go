package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVoteAtMostOncePerCampaign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cid := f.publishCampaign(map[int64]int{-100: 10, -200: 20})

	first, err := f.reactions.CastVote(ctx, VoteRequest{
		Target: models.MessageKey{ChatID: -100, MessageID: 10},
		Action: models.VoteLike, UserID: 7, PressedChatID: -100, PressedMessageID: 11,
	})
	require.NoError(t, err)
	assert.Equal(t, VoteRecorded, first.Outcome)
	assert.Equal(t, cid, first.CampaignID)

	// 换动作、换聊天重试都不能改变计数
	retries := []VoteRequest{
		{Target: models.MessageKey{ChatID: -100, MessageID: 10}, Action: models.VoteLike, UserID: 7},
		{Target: models.MessageKey{ChatID: -100, MessageID: 10}, Action: models.VoteDislike, UserID: 7},
		{Target: models.MessageKey{ChatID: -200, MessageID: 20}, Action: models.VoteDislike, UserID: 7},
	}
	for _, req := range retries {
		res, err := f.reactions.CastVote(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, VoteAlreadyCast, res.Outcome)
		assert.Equal(t, models.VoteLike, res.Previous)
	}

	assert.Equal(t, models.Tally{Like: 1, Dislike: 0}, f.campaignTally(cid))
}

func TestCastVoteConcurrentSameUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cid := f.publishCampaign(map[int64]int{-100: 10})

	var wg sync.WaitGroup
	var mu sync.Mutex
	recorded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := models.VoteLike
			if i%2 == 1 {
				action = models.VoteDislike
			}
			res, err := f.reactions.CastVote(ctx, VoteRequest{
				Target: models.MessageKey{ChatID: -100, MessageID: 10},
				Action: action,
				UserID: 42,
			})
			if err == nil && res.Outcome == VoteRecorded {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, recorded)
	tally := f.campaignTally(cid)
	assert.Equal(t, 1, tally.Like+tally.Dislike)
}

func TestCastVoteSyncsEveryCampaignPrompt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cid := f.publishCampaign(map[int64]int{-100: 10, -200: 20})
	require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))
	require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -200, "rate"))
	prompts := f.promptKeys(cid)
	require.Len(t, prompts, 2)
	f.messenger.edits = nil

	_, err := f.reactions.CastVote(ctx, VoteRequest{
		Target: models.MessageKey{ChatID: -200, MessageID: 20},
		Action: models.VoteDislike, UserID: 9, PressedChatID: -200, PressedMessageID: prompts[1].MessageID,
	})
	require.NoError(t, err)

	require.Len(t, f.messenger.edits, 2)
	for _, e := range f.messenger.edits {
		assert.Equal(t, "👎 1", e.Keyboard[0][1].Text)
		action, anchor, err := ParseVoteData(e.Keyboard[0][0].Data)
		require.NoError(t, err)
		assert.Equal(t, models.VoteLike, action)
		assert.Equal(t, e.Key.ChatID, anchor.ChatID, "each chat keeps its own anchor")
	}

	// 感谢消息回复被点击的消息并在 90 秒后删除
	last := f.messenger.texts[len(f.messenger.texts)-1]
	assert.Equal(t, prompts[1].MessageID, last.Opts.ReplyTo)
	require.NotEmpty(t, f.deferrer.calls)
	assert.Equal(t, ThanksTTL, f.deferrer.calls[len(f.deferrer.calls)-1].Delay)
}

func TestCastVoteWithoutCampaignUsesMessageRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	target := models.MessageKey{ChatID: -300, MessageID: 5}
	require.NoError(t, f.store.Update(func(st *repository.State) error {
		st.ReactionStyleByMessage[target] = models.StyleHearts
		return nil
	}))

	res, err := f.reactions.CastVote(ctx, VoteRequest{
		Target: target, Action: models.VoteLike, UserID: 1, PressedChatID: -300, PressedMessageID: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.CampaignID)
	assert.Equal(t, models.StyleHearts, res.Style)

	res, err = f.reactions.CastVote(ctx, VoteRequest{Target: target, Action: models.VoteDislike, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, VoteAlreadyCast, res.Outcome)

	f.store.View(func(st *repository.State) {
		assert.Equal(t, models.Tally{Like: 1}, st.ReactionCounters[target].Tally())
		assert.Empty(t, st.CampaignCounters, "message votes never touch campaign counters")
	})
	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, target, f.messenger.edits[0].Key)
	assert.Equal(t, "❤️ 1", f.messenger.edits[0].Keyboard[0][0].Text)
}

func TestEnsurePromptReplacesUnreachablePrompt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cid := f.publishCampaign(map[int64]int{-100: 10})

	require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))
	old := f.promptKeys(cid)
	require.Len(t, old, 1)

	// 已有可用提示时不重复发送
	sent := len(f.messenger.texts)
	require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))
	assert.Len(t, f.messenger.texts, sent)

	f.messenger.editErrs[old[0]] = errMessageGone
	require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))

	current := f.promptKeys(cid)
	require.Len(t, current, 1)
	assert.NotEqual(t, old[0], current[0])
	assert.Len(t, f.messenger.texts, sent+1)
}

func TestEnsurePromptKeepsPromptOnTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "rate limited", err: &bot.TooManyRequestsError{Message: "Too Many Requests", RetryAfter: 3}},
		{name: "timed out", err: context.DeadlineExceeded},
		{name: "network", err: errors.New("error do request: connection reset by peer")},
		{name: "canceled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			cid := f.publishCampaign(map[int64]int{-100: 10})

			require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))
			prompts := f.promptKeys(cid)
			require.Len(t, prompts, 1)
			sent := len(f.messenger.texts)

			f.messenger.editErrs[prompts[0]] = tt.err
			require.NoError(t, f.reactions.EnsurePrompt(ctx, cid, -100, "rate"))

			assert.Equal(t, prompts, f.promptKeys(cid))
			assert.Len(t, f.messenger.texts, sent, "no duplicate prompt")
		})
	}
}

func TestEnsurePromptInlinePlacement(t *testing.T) {
	f := newFixture()
	f.reactions = NewReactionService(f.store, f.messenger, f.effects, PlacementInline)
	ctx := context.Background()
	cid := f.publishCampaign(map[int64]int{-100: 10, -200: 20})

	// -200 是相册，无法挂按钮，退回提示消息
	f.messenger.editErrs[models.MessageKey{ChatID: -200, MessageID: 20}] = errMessageGone

	f.reactions.ReconcilePrompts(ctx, cid, []int64{-100, -200}, "rate")

	prompts := f.promptKeys(cid)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts, models.MessageKey{ChatID: -100, MessageID: 10})
	require.Len(t, f.messenger.texts, 1)
	assert.Equal(t, int64(-200), f.messenger.texts[0].ChatID)
}

func TestParseVoteData(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		action  models.VoteAction
		key     models.MessageKey
		wantErr bool
	}{
		{name: "like", data: "like:-1001:42", action: models.VoteLike, key: models.MessageKey{ChatID: -1001, MessageID: 42}},
		{name: "dislike", data: "dislike:5:1", action: models.VoteDislike, key: models.MessageKey{ChatID: 5, MessageID: 1}},
		{name: "unknown action", data: "meh:1:2", wantErr: true},
		{name: "missing part", data: "like:1", wantErr: true},
		{name: "bad chat", data: "like:x:2", wantErr: true},
		{name: "zero message", data: "like:1:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, key, err := ParseVoteData(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if action != tt.action || key != tt.key {
				t.Fatalf("got (%s, %v), want (%s, %v)", action, key, tt.action, tt.key)
			}
			if VoteData(action, key) != tt.data {
				t.Fatalf("VoteData(%s, %v) does not round-trip", action, key)
			}
		})
	}
}
