package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/filex"
	"github.com/dmitrijs2005/clubsync/internal/flagx"
	"github.com/dmitrijs2005/clubsync/internal/manager"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/dmitrijs2005/clubsync/internal/syncer"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CLUBSYNC"

const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"

	RemotePostgres = "postgres"
	RemoteGRPC     = "grpc"
	RemoteREST     = "rest"
	RemoteMemory   = "memory"
)

// Config holds runtime settings for the clubsync client.
type Config struct {
	CacheDir        string `envconfig:"CACHE_DIR"`
	StoreDriver     string `envconfig:"STORE"`
	CachePassphrase string `envconfig:"CACHE_PASSPHRASE"`

	RemoteDriver string `envconfig:"REMOTE"`
	PostgresDSN  string `envconfig:"POSTGRES_DSN"`
	GRPCEndpoint string `envconfig:"GRPC_ENDPOINT"`
	AccessToken  string `envconfig:"ACCESS_TOKEN"`
	TokenSecret  string `envconfig:"TOKEN_SECRET"`
	RESTURL      string `envconfig:"REST_URL"`
	RESTAPIKey   string `envconfig:"REST_API_KEY"`

	CacheTTL       time.Duration `envconfig:"CACHE_TTL"`
	SyncCooldown   time.Duration `envconfig:"SYNC_COOLDOWN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
	Realtime       bool          `envconfig:"REALTIME"`

	S3Region       string `envconfig:"S3_REGION"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3PublicURL    string `envconfig:"S3_PUBLIC_URL"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE"`

	SchemaFile string `envconfig:"SCHEMA_FILE"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
}

// LoadDefaults populates c with defaults suitable for a local run.
func (c *Config) LoadDefaults() {
	c.CacheDir = filex.DefaultCacheDir("clubsync")
	c.StoreDriver = StoreSQLite
	c.RemoteDriver = RemoteGRPC
	c.GRPCEndpoint = "127.0.0.1:50051"
	c.CacheTTL = manager.DefaultTTL
	c.SyncCooldown = syncer.DefaultCooldown
	c.RequestTimeout = remote.DefaultTimeout
	c.S3Region = "us-east-1"
	c.LogLevel = "warn"
}

// S3Enabled reports whether asset storage is configured.
func (c *Config) S3Enabled() bool { return c.S3Endpoint != "" || c.S3AccessKey != "" }

// Validate checks the driver names.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.RemoteDriver {
	case RemotePostgres, RemoteGRPC, RemoteREST, RemoteMemory:
	default:
		return fmt.Errorf("unknown remote driver %q", c.RemoteDriver)
	}
	return nil
}

// LoadConfig builds a Config from defaults, the JSON file named by -c/-config
// in args, and CLUBSYNC_* environment variables, in that order. Command-line
// flags are applied later by the CLI through BindFlags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}
