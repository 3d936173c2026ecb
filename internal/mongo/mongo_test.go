package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty uri", Config{Database: "db"}},
		{"empty database", Config{URI: "mongodb://localhost:27017"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{URI: "mongodb://x", Database: "db"}
	cfg.applyDefaults()
	assert.Equal(t, defaultConnectTimeout, cfg.Timeout)
	assert.Equal(t, defaultAppName, cfg.AppName)
	assert.Equal(t, uint64(defaultMaxPoolSize), cfg.MaxPoolSize)

	custom := Config{Timeout: time.Second, AppName: "other", MaxPoolSize: 3}
	custom.applyDefaults()
	assert.Equal(t, time.Second, custom.Timeout)
	assert.Equal(t, "other", custom.AppName)
	assert.Equal(t, uint64(3), custom.MaxPoolSize)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close(context.Background()))
	assert.Nil(t, c.Database())
	assert.Error(t, c.Ping(context.Background()))
}
