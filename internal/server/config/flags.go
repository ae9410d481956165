package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address, empty disables the JSON API
//	-m string   store: postgres or memory
//	-d string   PostgreSQL DSN
//	-k string   signing algorithm: RS256, EdDSA or HS256
//	-s string   HMAC secret for HS256
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket holding the signing keys
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-n string   NATS URL for auth events
//	-o string   OTLP/HTTP trace endpoint
//	-l string   log level
//	-x          generate throwaway signing keys at start (development)
//
// Only these flags are parsed; the rest of os.Args is left to others.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-w", "-m", "-d", "-k", "-s", "-t", "-r", "-u", "-p", "-b", "-g", "-e", "-n", "-o", "-l", "-x",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.Store, "m", config.Store, "store: postgres or memory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SigningAlgorithm, "k", config.SigningAlgorithm, "signing algorithm")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "HS256 secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3KeyBucket, "b", config.S3KeyBucket, "S3 key bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL")
	fs.StringVar(&config.OTLPEndpoint, "o", config.OTLPEndpoint, "OTLP trace endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.GenerateKeys, "x", config.GenerateKeys, "generate throwaway signing keys")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// minutes only; keep finer values from earlier sources when not given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
}
