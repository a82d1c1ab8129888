package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/shopkeeper/internal/flagx"
	"github.com/dmitrijs2005/shopkeeper/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON configuration files.
// Interval fields accept "10m" as well as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	OTPMaxAttempts               int            `json:"otp_max_attempts"`
	PasswordMinLength            int            `json:"password_min_length"`
	OTPStore                     string         `json:"otp_store"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	PhotoURLValidityDuration     timex.Duration `json:"photo_url_validity_duration"`
	SeedDemoAccounts             bool           `json:"seed_demo_accounts"`
}

// parseJson overlays config with the non-empty fields of the JSON file named
// by -c/-config or $SHOPKEEPER_CONFIG. It panics on read or decode errors.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.OTPStore, c.OTPStore)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.OTPValidityDuration.Duration > 0 {
		config.OTPValidityDuration = c.OTPValidityDuration.Duration
	}
	if c.PhotoURLValidityDuration.Duration > 0 {
		config.PhotoURLValidityDuration = c.PhotoURLValidityDuration.Duration
	}
	if c.OTPMaxAttempts > 0 {
		config.OTPMaxAttempts = c.OTPMaxAttempts
	}
	if c.PasswordMinLength > 0 {
		config.PasswordMinLength = c.PasswordMinLength
	}
	if c.SeedDemoAccounts {
		config.SeedDemoAccounts = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
