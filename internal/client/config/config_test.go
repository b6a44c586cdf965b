package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, StoreSQLite, c.StoreDriver)
	assert.Equal(t, RemoteGRPC, c.RemoteDriver)
	assert.Equal(t, "127.0.0.1:50051", c.GRPCEndpoint)
	assert.Equal(t, 5*time.Minute, c.CacheTTL)
	assert.Equal(t, 60*time.Second, c.SyncCooldown)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.NotEmpty(t, c.CacheDir)
	assert.False(t, c.S3Enabled())
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_EnvOverridesJSON(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"remote":        "rest",
		"rest_url":      "http://json",
		"sync_cooldown": "30s",
	})
	t.Setenv("CLUBSYNC_REST_URL", "http://env")
	t.Setenv("CLUBSYNC_REALTIME", "true")
	t.Setenv("CLUBSYNC_CACHE_TTL", "1m")

	cfg, err := LoadConfig([]string{"list", "-c", path, "members"})
	require.NoError(t, err)

	assert.Equal(t, RemoteREST, cfg.RemoteDriver)
	assert.Equal(t, "http://env", cfg.RESTURL)
	assert.Equal(t, 30*time.Second, cfg.SyncCooldown)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.Realtime)
}

func TestLoadConfig_BadEnv(t *testing.T) {
	t.Setenv("CLUBSYNC_CACHE_TTL", "soon")
	_, err := LoadConfig(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Config{StoreDriver: "tape", RemoteDriver: RemoteGRPC}
	assert.ErrorContains(t, c.Validate(), "store driver")

	c = Config{StoreDriver: StoreMemory, RemoteDriver: "carrier-pigeon"}
	assert.ErrorContains(t, c.Validate(), "remote driver")
}
