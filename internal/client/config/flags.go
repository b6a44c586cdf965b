package config

import "github.com/spf13/pflag"

// BindFlags registers the command-line overrides on fs. Defaults are the
// values already held by cfg, so flags take precedence only when given.
//
//	-c, --config string      JSON config file (read by LoadConfig)
//	    --cache-dir string   cache directory
//	    --store string       sqlite | file | memory
//	    --remote string      postgres | grpc | rest | memory
//	-a, --endpoint string    gRPC gateway address
//	    --dsn string         Postgres DSN
//	    --rest-url string    PostgREST base URL
//	    --ttl duration       cache freshness window
//	    --cooldown duration  minimum spacing of background syncs
//	    --timeout duration   remote request timeout
//	    --realtime           follow remote changes while watching
//	    --schema string      YAML collection table
//	    --log-level string   debug | info | warn | error
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP("config", "c", "", "path to JSON config file")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "cache directory")
	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "cache store driver (sqlite|file|memory)")
	fs.StringVar(&cfg.RemoteDriver, "remote", cfg.RemoteDriver, "remote driver (postgres|grpc|rest|memory)")
	fs.StringVarP(&cfg.GRPCEndpoint, "endpoint", "a", cfg.GRPCEndpoint, "gRPC gateway address")
	fs.StringVar(&cfg.PostgresDSN, "dsn", cfg.PostgresDSN, "Postgres DSN")
	fs.StringVar(&cfg.RESTURL, "rest-url", cfg.RESTURL, "PostgREST base URL")
	fs.DurationVar(&cfg.CacheTTL, "ttl", cfg.CacheTTL, "cache freshness window")
	fs.DurationVar(&cfg.SyncCooldown, "cooldown", cfg.SyncCooldown, "minimum spacing of background syncs")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "remote request timeout")
	fs.BoolVar(&cfg.Realtime, "realtime", cfg.Realtime, "follow remote changes while watching")
	fs.StringVar(&cfg.SchemaFile, "schema", cfg.SchemaFile, "YAML file with collection definitions")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
}
