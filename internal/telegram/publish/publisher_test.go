package publish

import (
	"context"
	"strings"
	"testing"
	"time"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishPartialFailure(t *testing.T) {
	h := newHarness(stubAuth{})
	h.messenger.on(chatD2, hang)
	h.messenger.on(chatD3, rateLimited(2))

	res := h.publisher.Publish(context.Background(), Request{
		OwnerID: owner,
		Session: readySession(chatD1, chatD2, chatD3),
		Policy:  defaultPolicy(),
	})

	assert.Equal(t, 2, res.Sent)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "D2")
	assert.Equal(t, []time.Duration{2 * time.Second}, h.slept)
	assert.Equal(t, 2, h.messenger.calls[chatD3], "rate-limited chat is retried once")

	require.NotZero(t, res.CampaignID)
	h.store.View(func(st *repository.State) {
		_, ok := st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: res.CampaignID, ChatID: chatD1}]
		assert.True(t, ok)
		_, ok = st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: res.CampaignID, ChatID: chatD3}]
		assert.True(t, ok)
		_, ok = st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: res.CampaignID, ChatID: chatD2}]
		assert.False(t, ok)
	})

	for _, d := range res.Delivered {
		if d.ChatID == chatD3 {
			assert.True(t, d.Retried)
		}
	}
	assert.Len(t, h.messenger.pinned, 2)
	assert.Len(t, h.messenger.texts, 2, "one reaction prompt per delivered chat")
}

func TestPublishBaseMessageStableAcrossRebroadcasts(t *testing.T) {
	h := newHarness(stubAuth{})
	ctx := context.Background()
	sess := readySession(chatD1)

	first := h.publisher.Publish(ctx, Request{OwnerID: owner, Session: sess, Policy: defaultPolicy()})
	require.Equal(t, 1, first.Sent)
	base := first.Delivered[0].MessageID
	prompts := len(h.messenger.texts)

	sess.CampaignID = first.CampaignID
	for i := 0; i < 3; i++ {
		res := h.publisher.Publish(ctx, Request{OwnerID: owner, Session: sess, Policy: defaultPolicy(), IsRebroadcast: true})
		require.Equal(t, 1, res.Sent)
		assert.Equal(t, first.CampaignID, res.CampaignID)
		assert.Equal(t, base, res.Delivered[0].BaseMessageID)
		assert.NotEqual(t, base, res.Delivered[0].MessageID)
	}

	h.store.View(func(st *repository.State) {
		assert.Equal(t, base, st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: first.CampaignID, ChatID: chatD1}])
		assert.Len(t, st.CampaignMessages[first.CampaignID], 4)
		for _, key := range st.CampaignMessages[first.CampaignID] {
			assert.Equal(t, first.CampaignID, st.MessageToCampaign[key])
		}
	})
	assert.Len(t, h.messenger.pinned, 1, "rebroadcasts never pin")
	assert.Equal(t, prompts, len(h.messenger.texts), "rebroadcasts never create prompts")
}

func TestPublishSkipsUnauthorizedChats(t *testing.T) {
	h := newHarness(stubAuth{denied: map[int64]bool{chatD2: true}})

	res := h.publisher.Publish(context.Background(), Request{
		OwnerID: owner,
		Session: readySession(chatD1, chatD2),
		Policy:  defaultPolicy(),
	})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []int64{chatD1}, res.Attempted)
	assert.Zero(t, h.messenger.calls[chatD2])
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "D2")
}

func TestPublishRebroadcastSkipsAuthorization(t *testing.T) {
	h := newHarness(stubAuth{denied: map[int64]bool{chatD1: true}})
	res := h.publisher.Publish(context.Background(), Request{
		OwnerID:       owner,
		Session:       readySession(chatD1),
		Policy:        defaultPolicy(),
		IsRebroadcast: true,
	})
	assert.Equal(t, 1, res.Sent)
}

func TestPublishPolicyFilters(t *testing.T) {
	tests := []struct {
		name      string
		policy    func(p *models.EffectivePolicy)
		wantSent  int
		wantError string
	}{
		{
			name:      "maintenance",
			policy:    func(p *models.EffectivePolicy) { p.Maintenance = true },
			wantError: "维护",
		},
		{
			name:      "blocked",
			policy:    func(p *models.EffectivePolicy) { p.BlockedChats.Add(chatD1) },
			wantSent:  1,
			wantError: "D1",
		},
		{
			name:      "disabled",
			policy:    func(p *models.EffectivePolicy) { p.DisabledChats.Add(chatD2) },
			wantSent:  1,
			wantError: "D2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(stubAuth{})
			p := defaultPolicy()
			tt.policy(&p)

			res := h.publisher.Publish(context.Background(), Request{
				OwnerID: owner,
				Session: readySession(chatD1, chatD2),
				Policy:  p,
			})
			if res.Sent != tt.wantSent {
				t.Fatalf("sent = %d, want %d", res.Sent, tt.wantSent)
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantError) {
					found = true
				}
			}
			if !found {
				t.Fatalf("errors %v do not mention %q", res.Errors, tt.wantError)
			}
		})
	}
}

func TestPublishReactionsDisabledGlobally(t *testing.T) {
	h := newHarness(stubAuth{})
	p := defaultPolicy()
	p.ReactionsEnabled = false
	p.PinEnabled = false

	res := h.publisher.Publish(context.Background(), Request{OwnerID: owner, Session: readySession(chatD1), Policy: p})
	require.Equal(t, 1, res.Sent)
	assert.Empty(t, h.messenger.texts)
	assert.Empty(t, h.messenger.pinned)
}

func TestPublishAllFailedLeavesNoCampaign(t *testing.T) {
	h := newHarness(stubAuth{})
	h.messenger.on(chatD1, hang)
	h.messenger.on(chatD2, hang)

	res := h.publisher.Publish(context.Background(), Request{
		OwnerID: owner,
		Session: readySession(chatD1, chatD2),
		Policy:  defaultPolicy(),
	})

	assert.Zero(t, res.Sent)
	assert.Zero(t, res.CampaignID)
	assert.Len(t, res.Errors, 2)
	assert.Empty(t, h.campaigns.List())
	h.store.View(func(st *repository.State) {
		assert.Empty(t, st.CampaignStyles)
	})
}

func TestPublishAllFailedKeepsExistingCampaign(t *testing.T) {
	h := newHarness(stubAuth{})
	ctx := context.Background()
	sess := readySession(chatD1)

	first := h.publisher.Publish(ctx, Request{OwnerID: owner, Session: sess, Policy: defaultPolicy()})
	require.Equal(t, 1, first.Sent)

	h.messenger.on(chatD1, hang)
	sess.CampaignID = first.CampaignID
	res := h.publisher.Publish(ctx, Request{OwnerID: owner, Session: sess, Policy: defaultPolicy(), IsRebroadcast: true})

	assert.Zero(t, res.Sent)
	assert.Equal(t, first.CampaignID, res.CampaignID)
	assert.Equal(t, []int64{first.CampaignID}, h.campaigns.List())
}
