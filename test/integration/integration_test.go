//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	mongoclient "publisher_bot/internal/mongo"
	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

func TestStateStoreMongoRoundTrip(t *testing.T) {
	t.Parallel()

	db := setupIntegrationDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store := repository.NewStateStore(repository.NewMongoSnapshotBackend(db))
	if err := store.Load(ctx); err != nil {
		t.Fatalf("failed to load empty state: %v", err)
	}

	var campaignID int64
	base := models.MessageKey{ChatID: -20001, MessageID: 10}
	err := store.Update(func(st *repository.State) error {
		st.KnownChats[-20001] = &models.KnownChat{Title: "integration", Type: models.ChatTypeGroup}
		campaignID = st.NextCampaignID()
		st.CampaignMessages[campaignID] = []models.MessageKey{base}
		st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: campaignID, ChatID: base.ChatID}] = base.MessageID
		st.MessageToCampaign[base] = campaignID
		st.CampaignCounter(campaignID).RecordInChat(base.ChatID, 30001, models.VoteLike)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to update state: %v", err)
	}
	if err := store.Save(ctx); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	// 第二次保存覆盖同一文档
	if err := store.Update(func(st *repository.State) error {
		st.GlobalSettings.MaintenanceMode = true
		return nil
	}); err != nil {
		t.Fatalf("failed to update state: %v", err)
	}
	if err := store.Save(ctx); err != nil {
		t.Fatalf("failed to save state again: %v", err)
	}

	count, err := db.Collection("state_snapshots").CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("failed to count snapshots: %v", err)
	}
	if count != 1 {
		t.Fatalf("unexpected snapshot count: got %d, want 1", count)
	}

	restored := repository.NewStateStore(repository.NewMongoSnapshotBackend(db))
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("failed to reload state: %v", err)
	}

	restored.View(func(st *repository.State) {
		if !st.GlobalSettings.MaintenanceMode {
			t.Fatalf("expected maintenance mode to survive reload")
		}
		if got := st.KnownChats[-20001]; got == nil || got.Title != "integration" {
			t.Fatalf("unexpected known chat: %+v", got)
		}
		if got := st.MessageToCampaign[base]; got != campaignID {
			t.Fatalf("unexpected campaign for base message: got %d, want %d", got, campaignID)
		}
		if got := st.CampaignBaseMsg[models.CampaignChatKey{CampaignID: campaignID, ChatID: base.ChatID}]; got != base.MessageID {
			t.Fatalf("unexpected base message: got %d, want %d", got, base.MessageID)
		}
		if next := st.NextCampaignID(); next != campaignID+1 {
			t.Fatalf("campaign sequence not persisted: got %d, want %d", next, campaignID+1)
		}
	})
}

// setupIntegrationDatabase 每次运行使用独立数据库，结束后删除
func setupIntegrationDatabase(t *testing.T) *mongodriver.Database {
	t.Helper()

	name := fmt.Sprintf("%s_%d", lookupEnv("TEST_DATABASE", "test_publisher_bot"), time.Now().UnixNano())
	client, err := mongoclient.NewClient(mongoclient.Config{
		URI:      lookupEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database: name,
		Timeout:  5 * time.Second,
		AppName:  "publisher_bot_integration",
	})
	if err != nil {
		if runningInCI() {
			t.Fatalf("MongoDB required in CI: %v", err)
		}
		t.Skipf("skip: MongoDB unreachable: %v", err)
	}

	db := client.Database()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Errorf("drop %s: %v", name, err)
		}
		if err := client.Close(ctx); err != nil {
			t.Errorf("close MongoDB: %v", err)
		}
	})
	return db
}

func lookupEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func runningInCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
