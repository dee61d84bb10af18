package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JSONConfig is the on-disk shape of the optional config file. Durations accept
// either strings ("15m") or integer nanoseconds. Only non-zero values override
// what is already in Config.
type JSONConfig struct {
	ListenAddr                   string         `json:"listen_addr"`
	Env                          string         `json:"env"`
	DatabaseDSN                  string         `json:"database_dsn"`
	MongoDatabase                string         `json:"mongo_database"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3AccessKey                  string         `json:"s3_access_key"`
	S3SecretKey                  string         `json:"s3_secret_key"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3PublicURL                  string         `json:"s3_public_url"`
	UploadTempDir                string         `json:"upload_temp_dir"`
	CookieSecure                 *bool          `json:"cookie_secure"`
}

// parseJSON overlays values from the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(b, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.Env, jc.Env)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.MongoDatabase, jc.MongoDatabase)
	setString(&cfg.AccessTokenSecret, jc.AccessTokenSecret)
	setString(&cfg.RefreshTokenSecret, jc.RefreshTokenSecret)
	if jc.AccessTokenValidityDuration.Duration > 0 {
		cfg.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	}
	if jc.RefreshTokenValidityDuration.Duration > 0 {
		cfg.RefreshTokenValidityDuration = jc.RefreshTokenValidityDuration.Duration
	}
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3PublicURL, jc.S3PublicURL)
	setString(&cfg.UploadTempDir, jc.UploadTempDir)
	if jc.CookieSecure != nil {
		cfg.CookieSecure = *jc.CookieSecure
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
