package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/clubsync/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "3s" or
// integer nanoseconds; absent keys keep the current value.
type JsonConfig struct {
	EndpointAddrGRPC *string         `json:"endpoint_addr_grpc"`
	MetricsAddr      *string         `json:"metrics_addr"`
	DatabaseDSN      *string         `json:"database_dsn"`
	SecretKey        *string         `json:"secret_key"`
	RequestTimeout   *timex.Duration `json:"request_timeout"`
	SchemaFile       *string         `json:"schema_file"`
	LogLevel         *string         `json:"log_level"`
}

// parseJson overlays config with the JSON file at path. An empty path is a
// no-op.
func parseJson(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.MetricsAddr, c.MetricsAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	set(&config.SchemaFile, c.SchemaFile)
	set(&config.LogLevel, c.LogLevel)
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
