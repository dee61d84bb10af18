package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// parseFlags applies command-line overrides.
//
//	-a string     HTTP bind address (e.g. ":8000")
//	-d string     database DSN
//	-s string     access token secret
//	-rs string    refresh token secret
//	-t duration   access token validity (e.g. 15m)
//	-r duration   refresh token validity (e.g. 240h)
//	-u string     S3 access key
//	-p string     S3 secret key
//	-b string     S3 bucket
//	-g string     S3 region
//	-e string     S3 endpoint
//
// Arguments are filtered through flagx.FilterArgs first so the -c and
// -env-file flags handled elsewhere do not cause parse errors.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-rs", "-t", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.AccessTokenSecret, "s", cfg.AccessTokenSecret, "access token secret")
	fs.StringVar(&cfg.RefreshTokenSecret, "rs", cfg.RefreshTokenSecret, "refresh token secret")
	fs.DurationVar(&cfg.AccessTokenValidityDuration, "t", cfg.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&cfg.RefreshTokenValidityDuration, "r", cfg.RefreshTokenValidityDuration, "refresh token validity")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 endpoint")

	return fs.Parse(args)
}
