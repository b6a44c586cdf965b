// Package config loads runtime configuration for the clubsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. CLUBSYNC_* environment variables (envconfig).
//  4. Command-line flags registered by BindFlags.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds. Absent keys keep the earlier value:
//
//	{
//	  "store": "sqlite",
//	  "remote": "grpc",
//	  "grpc_endpoint": "127.0.0.1:50051",
//	  "token_secret": "dev-secret",
//	  "cache_ttl": "5m",
//	  "s3": {"endpoint": "http://127.0.0.1:9000", "use_path_style": true}
//	}
package config
