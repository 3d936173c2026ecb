package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BOT_OWNER_IDS", "111, 222")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []int64{111, 222}, cfg.BotOwnerIDs)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 5*time.Minute, cfg.AdminCacheTTL)
	assert.Equal(t, 1200*time.Millisecond, cfg.AlbumWait)
	assert.Equal(t, "prompt", cfg.ReactionPlacement)
	assert.Equal(t, BackendFile, cfg.StateBackend)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	assert.Empty(t, cfg.WebhookURL())
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing token", map[string]string{"TELEGRAM_TOKEN": ""}},
		{"bad owner id", map[string]string{"BOT_OWNER_IDS": "12,abc"}},
		{"bad placement", map[string]string{"REACTION_PLACEMENT": "bottom"}},
		{"bad backend", map[string]string{"STATE_BACKEND": "redis"}},
		{"mongo without uri", map[string]string{"STATE_BACKEND": "mongo"}},
		{"webhook without secret", map[string]string{"BASE_URL": "https://bot.example.com"}},
		{"bad secret", map[string]string{"BASE_URL": "https://bot.example.com", "WEBHOOK_SECRET": "a b"}},
		{"bad duration", map[string]string{"ALBUM_WAIT": "soon"}},
		{"autosave too short", map[string]string{"AUTOSAVE_INTERVAL": "10ms"}},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestWebhookURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASE_URL", "https://bot.example.com/")
	t.Setenv("WEBHOOK_SECRET", "s3cret_-x")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/webhook/s3cret_-x", cfg.WebhookURL())
}

func TestMongoBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STATE_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.StateBackend)
	assert.Equal(t, "publisher_bot", cfg.MongoDBName)
}

func TestParseOwnerIDs(t *testing.T) {
	tests := []struct {
		input   string
		want    []int64
		wantErr bool
	}{
		{"123456789", []int64{123456789}, false},
		{"1, 2 ,3", []int64{1, 2, 3}, false},
		{"1,,2,", []int64{1, 2}, false},
		{"", []int64{}, false},
		{"x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseOwnerIDs(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
