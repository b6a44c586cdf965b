package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/clubsync/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-m string     metrics bind address
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   database request timeout
//	-f string     YAML schema file
//	-l string     log level
//
// args is filtered with flagx.FilterArgs first, so flags owned by other
// components (for example -c) do not cause errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-s", "-t", "-f", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.RequestTimeout, "t", config.RequestTimeout, "database request timeout")
	fs.StringVar(&config.SchemaFile, "f", config.SchemaFile, "schema file")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
