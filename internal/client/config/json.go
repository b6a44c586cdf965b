package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/clubsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "3s" or as integer nanoseconds.
// Pointer fields distinguish "absent" from zero values.
type JsonConfig struct {
	CacheDir        *string `json:"cache_dir"`
	StoreDriver     *string `json:"store"`
	CachePassphrase *string `json:"cache_passphrase"`

	RemoteDriver *string `json:"remote"`
	PostgresDSN  *string `json:"postgres_dsn"`
	GRPCEndpoint *string `json:"grpc_endpoint"`
	AccessToken  *string `json:"access_token"`
	TokenSecret  *string `json:"token_secret"`
	RESTURL      *string `json:"rest_url"`
	RESTAPIKey   *string `json:"rest_api_key"`

	CacheTTL       *timex.Duration `json:"cache_ttl"`
	SyncCooldown   *timex.Duration `json:"sync_cooldown"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	Realtime       *bool           `json:"realtime"`

	S3 *struct {
		Region       *string `json:"region"`
		AccessKey    *string `json:"access_key"`
		SecretKey    *string `json:"secret_key"`
		Endpoint     *string `json:"endpoint"`
		PublicURL    *string `json:"public_url"`
		UsePathStyle *bool   `json:"use_path_style"`
	} `json:"s3"`

	SchemaFile *string `json:"schema_file"`
	LogLevel   *string `json:"log_level"`
}

// parseJson overlays cfg with the values present in the JSON file at path.
// An empty path leaves cfg untouched.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.CacheDir, jc.CacheDir)
	set(&cfg.StoreDriver, jc.StoreDriver)
	set(&cfg.CachePassphrase, jc.CachePassphrase)
	set(&cfg.RemoteDriver, jc.RemoteDriver)
	set(&cfg.PostgresDSN, jc.PostgresDSN)
	set(&cfg.GRPCEndpoint, jc.GRPCEndpoint)
	set(&cfg.AccessToken, jc.AccessToken)
	set(&cfg.TokenSecret, jc.TokenSecret)
	set(&cfg.RESTURL, jc.RESTURL)
	set(&cfg.RESTAPIKey, jc.RESTAPIKey)
	set(&cfg.Realtime, jc.Realtime)
	set(&cfg.SchemaFile, jc.SchemaFile)
	set(&cfg.LogLevel, jc.LogLevel)

	if jc.CacheTTL != nil {
		cfg.CacheTTL = jc.CacheTTL.Duration
	}
	if jc.SyncCooldown != nil {
		cfg.SyncCooldown = jc.SyncCooldown.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}

	if s3 := jc.S3; s3 != nil {
		set(&cfg.S3Region, s3.Region)
		set(&cfg.S3AccessKey, s3.AccessKey)
		set(&cfg.S3SecretKey, s3.SecretKey)
		set(&cfg.S3Endpoint, s3.Endpoint)
		set(&cfg.S3PublicURL, s3.PublicURL)
		set(&cfg.S3UsePathStyle, s3.UsePathStyle)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
