package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/joho/godotenv"
)

// loadDotEnv seeds the process environment from -env-file, or from ./.env when
// the flag is absent. Variables already set in the environment win. A missing
// default .env is not an error; a missing explicit file is.
func loadDotEnv(args []string) error {
	path := flagx.EnvFile(args)
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays environment variables onto cfg.
//
//	PORT                  listen port (":" + PORT); ADDRESS takes precedence
//	APP_ENV               dev | production
//	DATABASE_URL          postgres:// or mongodb:// DSN
//	MONGO_DATABASE        database name for MongoDB
//	ACCESS_TOKEN_SECRET   ACCESS_TOKEN_EXPIRY   (e.g. "15m", "1d")
//	REFRESH_TOKEN_SECRET  REFRESH_TOKEN_EXPIRY  (e.g. "10d")
//	S3_ACCESS_KEY S3_SECRET_KEY S3_BUCKET S3_REGION S3_ENDPOINT S3_PUBLIC_URL
//	UPLOAD_TEMP_DIR       staging directory for multipart files
//	COOKIE_SECURE         true | false
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.ListenAddr = ":" + port
	}
	str("ADDRESS", &cfg.ListenAddr)
	str("APP_ENV", &cfg.Env)
	str("DATABASE_URL", &cfg.DatabaseDSN)
	str("MONGO_DATABASE", &cfg.MongoDatabase)
	str("ACCESS_TOKEN_SECRET", &cfg.AccessTokenSecret)
	str("REFRESH_TOKEN_SECRET", &cfg.RefreshTokenSecret)
	if err := dur("ACCESS_TOKEN_EXPIRY", &cfg.AccessTokenValidityDuration); err != nil {
		return err
	}
	if err := dur("REFRESH_TOKEN_EXPIRY", &cfg.RefreshTokenValidityDuration); err != nil {
		return err
	}
	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_ENDPOINT", &cfg.S3BaseEndpoint)
	str("S3_PUBLIC_URL", &cfg.S3PublicURL)
	str("UPLOAD_TEMP_DIR", &cfg.UploadTempDir)

	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		cfg.CookieSecure = b
	}
	return nil
}

// parseDuration extends time.ParseDuration with a whole-day suffix, so "10d"
// means 240h.
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
