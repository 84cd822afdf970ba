package config

import (
	"encoding/json"
	"os"

	"github.com/moviemate/authkeeper/internal/flagx"
	"github.com/moviemate/authkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Duration fields use
// timex.Duration so values may be given either as strings ("15m") or as
// nanosecond numbers. Pointer fields distinguish "absent" from zero.
type JsonConfig struct {
	EndpointAddr                 *string         `json:"endpoint_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	ProductionMode               *bool           `json:"production_mode"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	TokenHashPepper              *string         `json:"token_hash_pepper"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RateLimitMax                 *int            `json:"rate_limit_max"`
	RateLimitWindow              *timex.Duration `json:"rate_limit_window"`
	RedisAddr                    *string         `json:"redis_addr"`
	RetentionWindow              *timex.Duration `json:"retention_window"`
	SweepInterval                *timex.Duration `json:"sweep_interval"`
}

// getConfigFileName returns the config file path given by -c/-config or the
// CONFIG environment variable, flags taking precedence.
func getConfigFileName() string {
	if name := flagx.JsonConfigFlags(); name != "" {
		return name
	}
	return os.Getenv("CONFIG")
}

// parseJson overlays values from the JSON config file, if one is given,
// onto config. Fields absent from the file keep their current values.
func parseJson(config *Config) error {
	fileName := getConfigFileName()
	if fileName == "" {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.EndpointAddr != nil {
		config.EndpointAddr = *jc.EndpointAddr
	}
	if jc.DatabaseDSN != nil {
		config.DatabaseDSN = *jc.DatabaseDSN
	}
	if jc.ProductionMode != nil {
		config.ProductionMode = *jc.ProductionMode
	}
	if jc.AccessTokenSecret != nil {
		config.AccessTokenSecret = *jc.AccessTokenSecret
	}
	if jc.RefreshTokenSecret != nil {
		config.RefreshTokenSecret = *jc.RefreshTokenSecret
	}
	if jc.TokenHashPepper != nil {
		config.TokenHashPepper = *jc.TokenHashPepper
	}
	if jc.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	}
	if jc.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = jc.RefreshTokenValidityDuration.Duration
	}
	if jc.RateLimitMax != nil {
		config.RateLimitMax = *jc.RateLimitMax
	}
	if jc.RateLimitWindow != nil {
		config.RateLimitWindow = jc.RateLimitWindow.Duration
	}
	if jc.RedisAddr != nil {
		config.RedisAddr = *jc.RedisAddr
	}
	if jc.RetentionWindow != nil {
		config.RetentionWindow = jc.RetentionWindow.Duration
	}
	if jc.SweepInterval != nil {
		config.SweepInterval = jc.SweepInterval.Duration
	}

	return nil
}
