package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"store":           "file",
		"grpc_endpoint":   "www.example:9000",
		"request_timeout": "3s",
		"cache_ttl":       int64(2 * time.Second),
		"realtime":        true,
		"s3": map[string]any{
			"endpoint":       "http://minio:9000",
			"use_path_style": true,
		},
	})

	t.Run("overlays present keys", func(t *testing.T) {
		cfg := &Config{RemoteDriver: RemoteMemory}
		require.NoError(t, parseJson(cfg, path))

		assert.Equal(t, StoreFile, cfg.StoreDriver)
		assert.Equal(t, RemoteMemory, cfg.RemoteDriver)
		assert.Equal(t, "www.example:9000", cfg.GRPCEndpoint)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 2*time.Second, cfg.CacheTTL)
		assert.True(t, cfg.Realtime)
		assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
		assert.True(t, cfg.S3UsePathStyle)
		assert.True(t, cfg.S3Enabled())
	})

	t.Run("no path → no changes", func(t *testing.T) {
		cfg := &Config{GRPCEndpoint: "defaults:1234"}
		require.NoError(t, parseJson(cfg, ""))
		assert.Equal(t, "defaults:1234", cfg.GRPCEndpoint)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		assert.Error(t, parseJson(&Config{}, bad))
	})

	t.Run("missing file → error", func(t *testing.T) {
		assert.Error(t, parseJson(&Config{}, filepath.Join(dir, "nope.json")))
	})
}
