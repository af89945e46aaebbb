package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/taskcamp/internal/flagx"
	"github.com/dmitrijs2005/taskcamp/internal/timex"
)

// JsonConfig is the on-disk shape of a configuration file. Durations are
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Only fields present in the file override the current Config.
type JsonConfig struct {
	EndpointAddrHTTP               string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC               string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                    string          `json:"database_dsn"`
	LogLevel                       string          `json:"log_level"`
	AccessTokenSecret              string          `json:"access_token_secret"`
	RefreshTokenSecret             string          `json:"refresh_token_secret"`
	AccessTokenValidityDuration    *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration   *timex.Duration `json:"refresh_token_validity_duration"`
	SingleUseTokenValidityDuration *timex.Duration `json:"single_use_token_validity_duration"`
	BcryptCost                     *int            `json:"bcrypt_cost"`
	BaseURL                        string          `json:"base_url"`
	CookieSecure                   *bool           `json:"cookie_secure"`
	RedisURL                       string          `json:"redis_url"`
	PurgeSchedule                  string          `json:"purge_schedule"`
	RequestTimeout                 *timex.Duration `json:"request_timeout"`
}

// parseJson loads the file named by -c/-config, if any, and copies the
// fields it sets into config. A missing or malformed file panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.ConfigFile(args)
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.PurgeSchedule, c.PurgeSchedule)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.SingleUseTokenValidityDuration != nil {
		config.SingleUseTokenValidityDuration = c.SingleUseTokenValidityDuration.Duration
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
