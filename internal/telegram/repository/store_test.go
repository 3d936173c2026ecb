package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"publisher_bot/internal/telegram/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func populatedState() *State {
	st := NewState()
	expires := models.NewTimestamp(time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC))

	admin := st.Admin(11)
	admin.DisabledChats = models.NewIDSet(-300, -400)
	st.Permissions(-300).BlockedAdmins.Add(99)
	st.KnownChats[-300] = &models.KnownChat{Title: "news", Type: models.ChatTypeChannel}
	st.KnownChatAdmins[-300] = map[int64]string{11: "alice"}

	sess := models.NewSession(models.SessionDefaults{UseReactions: true, PinEnabled: true, IntervalSeconds: 7200, Total: 4})
	_, _ = sess.Append(models.ContentInput{Kind: models.ContentText, Text: "hello"})
	_, _ = sess.Append(models.ContentInput{Kind: models.ContentPhoto, FileID: "ph", MediaGroupID: "g1"})
	sess.ChosenChats = models.NewIDSet(-300)
	st.Sessions[11] = sess

	st.TempGrants[22] = &models.TempGrant{ChatID: -300, Expires: expires, GrantedBy: 11}
	st.StartTokens["tok"] = &models.StartToken{UserID: 22, ChatID: -300, Expires: expires}

	campaignID := st.NextCampaignID()
	base := models.MessageKey{ChatID: -300, MessageID: 5}
	st.CampaignMessages[campaignID] = []models.MessageKey{base, {ChatID: -300, MessageID: 9}}
	st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: campaignID, ChatID: -300}] = 5
	st.MessageToCampaign[base] = campaignID
	st.CampaignPromptMsgs[campaignID] = []models.MessageKey{{ChatID: -300, MessageID: 6}}
	st.CampaignCounter(campaignID).RecordInChat(-300, 77, models.VoteLike)
	st.CampaignStyles[campaignID] = models.StyleHearts

	st.MessageCounter(models.MessageKey{ChatID: -500, MessageID: 1}).Record(78, models.VoteDislike)
	st.ReactionStyleByMessage[models.MessageKey{ChatID: -500, MessageID: 1}] = models.StyleFaces

	st.ActiveRebroadcasts[models.RebroadcastJobName(11, campaignID)] = &models.ActiveRebroadcast{
		Interval: 3600,
		Payload:  models.SnapshotRebroadcast(11, sess, []int64{-300}),
	}
	st.PanelState[11] = &models.PanelState{Mode: models.PanelWaitReactionPrompt, MessageID: 3}
	return st
}

func TestStateStoreRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store := NewStateStore(NewFileSnapshotBackend(path))
	want := populatedState()
	require.NoError(t, store.Update(func(st *State) error {
		*st = *want
		return nil
	}))
	require.NoError(t, store.Save(ctx))

	restored := NewStateStore(NewFileSnapshotBackend(path))
	require.NoError(t, restored.Load(ctx))

	restored.View(func(got *State) {
		assert.Equal(t, want, got)
		_, ok := got.CampaignBaseMsg[models.CampaignChatKey{CampaignID: 1, ChatID: -300}]
		assert.True(t, ok, "composite key must decode into its typed form")
		assert.True(t, got.AdminSettings[11].DisabledChats.Has(-400))
		assert.Equal(t, time.UTC, got.TempGrants[22].Expires.Location())
	})
}

func TestDecodeStateFallsBackPerBucket(t *testing.T) {
	doc := `{
		"global_settings": {"maintenance_mode": true},
		"campaign_base_msg": {"not-a-key": 1},
		"known_chats": {"-1": {"title": "kept", "type": "group"}},
		"campaign_seq": 41
	}`

	st, err := DecodeState([]byte(doc))
	require.NoError(t, err)

	assert.True(t, st.GlobalSettings.MaintenanceMode)
	assert.True(t, st.GlobalSettings.SchedulingEnabled, "missing settings keep their defaults")
	assert.Empty(t, st.CampaignBaseMsg)
	assert.NotNil(t, st.CampaignBaseMsg)
	assert.Equal(t, "kept", st.KnownChats[-1].Title)
	assert.Equal(t, int64(42), st.NextCampaignID())
}

func TestStateStoreLoadMissingFile(t *testing.T) {
	store := NewStateStore(NewFileSnapshotBackend(filepath.Join(t.TempDir(), "nope.json")))
	require.NoError(t, store.Load(context.Background()))
	store.View(func(st *State) {
		assert.Empty(t, st.Sessions)
		assert.Equal(t, models.DefaultGlobalSettings(), st.GlobalSettings)
	})
}

func TestStateStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	store := NewStateStore(NewFileSnapshotBackend(path))
	ctx := context.Background()
	err := store.Load(ctx)
	require.Error(t, err)
	store.View(func(st *State) {
		assert.NotNil(t, st.Sessions, "state must stay usable after a failed load")
	})

	require.NoError(t, store.Update(func(st *State) error {
		st.KnownChats[-1] = &models.KnownChat{Title: "new", Type: models.ChatTypeGroup}
		return nil
	}))
	assert.ErrorIs(t, store.Save(ctx), ErrSaveBlocked)
	store.SaveQuietly(ctx)
	assert.True(t, store.Stats().SaveBlocked)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data), "unreadable snapshot is left untouched")

	require.NoError(t, store.ForceSave(ctx))
	assert.NoError(t, store.SaveBlocked())
	require.NoError(t, store.Save(ctx))

	reloaded := NewStateStore(NewFileSnapshotBackend(path))
	require.NoError(t, reloaded.Load(ctx))
	reloaded.View(func(st *State) {
		assert.Equal(t, "new", st.KnownChats[-1].Title)
	})
}

// flakyBackend 前几次读取失败，之后返回 data
type flakyBackend struct {
	failures int
	data     []byte
	saved    [][]byte
}

func (b *flakyBackend) Name() string { return "flaky" }

func (b *flakyBackend) Load(ctx context.Context) ([]byte, error) {
	if b.failures > 0 {
		b.failures--
		return nil, errors.New("server selection timeout")
	}
	return b.data, nil
}

func (b *flakyBackend) Save(ctx context.Context, data []byte) error {
	b.saved = append(b.saved, data)
	return nil
}

func TestStateStoreBackendErrorBlocksSave(t *testing.T) {
	snapshot, err := EncodeState(populatedState())
	require.NoError(t, err)
	backend := &flakyBackend{failures: 1, data: snapshot}
	store := NewStateStore(backend)
	ctx := context.Background()

	require.Error(t, store.Load(ctx))
	assert.ErrorIs(t, store.Save(ctx), ErrSaveBlocked)
	assert.Empty(t, backend.saved)

	// 再次加载成功后恢复保存
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.Save(ctx))
	require.Len(t, backend.saved, 1)
	store.View(func(st *State) {
		assert.NotEmpty(t, st.KnownChats)
	})
}

func TestNextCampaignIDWraps(t *testing.T) {
	st := NewState()
	st.CampaignSeq = CampaignIDModulus - 1
	st.CampaignCounters[1] = models.NewCampaignCounter()

	got := st.NextCampaignID()
	assert.Equal(t, int64(2), got, "wrap skips zero and ids still in use")
}

func TestMongoSnapshotBackend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts", func(mt *mtest.T) {
		backend := &MongoSnapshotBackend{collection: mt.Coll, id: defaultSnapshotID}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := backend.Save(context.Background(), []byte(`{"campaign_seq":3}`)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	})

	mt.Run("save error", func(mt *mtest.T) {
		backend := &MongoSnapshotBackend{collection: mt.Coll, id: defaultSnapshotID}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "WriteError",
			Message: "mock write failure",
		}))

		err := backend.Save(context.Background(), []byte(`{}`))
		if err == nil || !strings.Contains(err.Error(), "failed to save state snapshot") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("load document", func(mt *mtest.T) {
		backend := &MongoSnapshotBackend{collection: mt.Coll, id: defaultSnapshotID}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			mt.DB.Name()+"."+mt.Coll.Name(),
			mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: defaultSnapshotID},
				{Key: "data", Value: `{"campaign_seq":7}`},
			},
		))

		data, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		st, err := DecodeState(data)
		if err != nil {
			t.Fatalf("DecodeState failed: %v", err)
		}
		if st.CampaignSeq != 7 {
			t.Fatalf("expected campaign_seq 7, got %d", st.CampaignSeq)
		}
	})

	mt.Run("load missing", func(mt *mtest.T) {
		backend := &MongoSnapshotBackend{collection: mt.Coll, id: defaultSnapshotID}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch))

		data, err := backend.Load(context.Background())
		if err != nil || data != nil {
			t.Fatalf("expected (nil, nil), got (%q, %v)", data, err)
		}
	})
}
