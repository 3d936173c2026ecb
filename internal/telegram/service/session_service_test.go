package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionClearIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)
	_, err = f.sessions.Append(ctx, 1, models.ContentInput{Kind: models.ContentText, Text: "draft"})
	require.NoError(t, err)
	_, err = f.sessions.Append(ctx, 1, models.ContentInput{Kind: models.ContentDocument, FileID: "doc"})
	require.NoError(t, err)

	first, err := f.sessions.Clear(ctx, 1)
	require.NoError(t, err)
	second, err := f.sessions.Clear(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.StageWaitingFirstInput, second.Stage)
	assert.True(t, second.Content.IsEmpty())
	assert.Empty(t, second.ChosenChats)
	assert.Equal(t, int64(0), second.CampaignID)
}

func TestSessionDefaultsFromSettings(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Update(func(st *repository.State) error {
		st.GlobalSettings.RebroadcastIntervalSeconds = 14400
		st.GlobalSettings.RebroadcastTotal = 8
		a := st.Admin(3)
		a.DefaultReactionsEnabled = false
		a.LastReactionStyle = models.StyleFaces
		return nil
	}))

	sess, err := f.sessions.Create(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, sess.UseReactions)
	assert.True(t, sess.PinEnabled)
	assert.False(t, sess.ScheduleActive)
	assert.Equal(t, models.StyleFaces, sess.ReactionStyle)
	assert.Equal(t, 14400, sess.RebroadcastIntervalSeconds)
	assert.Equal(t, 8, sess.RebroadcastTotal)
}

func TestSessionCreateOverwrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)
	_, err = f.sessions.Append(ctx, 1, models.ContentInput{Kind: models.ContentText, Text: "old"})
	require.NoError(t, err)

	sess, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, sess.Text)
}

func TestSessionUpdateWithoutSession(t *testing.T) {
	f := newFixture()
	_, err := f.sessions.Update(context.Background(), 404, func(sess *models.Session) error { return nil })
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSessionUpdateReturnsCopy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)

	out, err := f.sessions.Update(ctx, 1, func(sess *models.Session) error {
		sess.ChosenChats.Add(-7)
		return nil
	})
	require.NoError(t, err)
	out.ChosenChats.Add(-8)

	stored, ok := f.sessions.Get(1)
	require.True(t, ok)
	assert.True(t, stored.ChosenChats.Has(-7))
	assert.False(t, stored.ChosenChats.Has(-8))
}

func TestSessionClaimOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.store.Update(func(st *repository.State) error {
		st.TempGrants[1] = &models.TempGrant{ChatID: -7, Expires: models.NewTimestamp(f.now.Add(time.Hour))}
		return nil
	}))

	_, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)
	_, err = f.sessions.Claim(1)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.sessions.Update(ctx, 1, func(sess *models.Session) error {
		sess.Text = "post"
		sess.Stage = models.StageCollecting
		return sess.AdvanceToOptions()
	})
	require.NoError(t, err)

	claimed, err := f.sessions.Claim(1)
	require.NoError(t, err)
	assert.True(t, claimed.Publishing)
	assert.True(t, claimed.IsTempGranted)

	_, err = f.sessions.Claim(1)
	assert.ErrorIs(t, err, ErrPublishInProgress)
	_, err = f.sessions.Update(ctx, 1, func(sess *models.Session) error { return nil })
	assert.ErrorIs(t, err, ErrPublishInProgress)
	f.store.View(func(st *repository.State) {
		assert.True(t, st.TempGrants[1].Reserved)
	})

	f.sessions.Release(1)
	f.store.View(func(st *repository.State) {
		assert.False(t, st.TempGrants[1].Reserved)
	})
	_, err = f.sessions.Claim(1)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Finish(ctx, 1))
	_, ok := f.sessions.Get(1)
	assert.False(t, ok)
}

func TestSessionFinishKeepsUnclaimedSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.sessions.Create(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Finish(ctx, 1))

	_, ok := f.sessions.Get(1)
	assert.True(t, ok)
}
