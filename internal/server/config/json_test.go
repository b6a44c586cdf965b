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
	t.Run("loads from json", func(t *testing.T) {
		path := writeTempJSON(t, "", "", map[string]any{
			"endpoint_addr_grpc": "www.example:9000",
			"metrics_addr":       ":9999",
			"database_dsn":       "dsn",
			"secret_key":         "my_secret_key",
			"request_timeout":    "1m",
			"schema_file":        "extra.yaml",
			"log_level":          "warn",
		})

		cfg := &Config{}
		require.NoError(t, parseJson(cfg, path))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, ":9999", cfg.MetricsAddr)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, time.Minute, cfg.RequestTimeout)
		assert.Equal(t, "extra.yaml", cfg.SchemaFile)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("absent keys keep values", func(t *testing.T) {
		path := writeTempJSON(t, "", "", map[string]any{"secret_key": "k"})
		cfg := &Config{EndpointAddrGRPC: "defaults:1234", RequestTimeout: time.Second}
		require.NoError(t, parseJson(cfg, path))
		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, time.Second, cfg.RequestTimeout)
		assert.Equal(t, "k", cfg.SecretKey)
	})

	t.Run("no path means no changes", func(t *testing.T) {
		cfg := &Config{SecretKey: "key"}
		require.NoError(t, parseJson(cfg, ""))
		assert.Equal(t, &Config{SecretKey: "key"}, cfg)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		assert.ErrorContains(t, parseJson(&Config{}, path), "parse config")
	})
}
