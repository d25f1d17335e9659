package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConfigDir = ".labctl"
	configFileName   = "labctl"
	configFileType   = "yaml"
	envPrefix        = "LABCTL"

	cfgKeyBaseURL     = "base_url"
	cfgKeyToken       = "token"
	cfgKeyRetryMax    = "retry_max"
	cfgKeyTimeout     = "timeout"
	cfgKeyCacheExpiry = "cache_expiry"
	cfgKeyLogLevel    = "log_level"
)

// settings is the resolved labctl configuration.
type settings struct {
	BaseURL     string
	Token       string
	RetryMax    int
	Timeout     time.Duration
	CacheExpiry time.Duration
	LogLevel    string
}

// loadSettings reads labctl.yaml from configDir. Environment variables with
// the LABCTL_ prefix override the file, and flags that were set override
// both. A missing config file is not an error.
func loadSettings(configDir string, flags *pflag.FlagSet) (settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBaseURL, "http://localhost:8080/api")
	v.SetDefault(cfgKeyRetryMax, 3)
	v.SetDefault(cfgKeyTimeout, 30*time.Second)
	v.SetDefault(cfgKeyCacheExpiry, 5*time.Minute)
	v.SetDefault(cfgKeyLogLevel, "warn")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("base-url"); f != nil {
			if err := v.BindPFlag(cfgKeyBaseURL, f); err != nil {
				return settings{}, err
			}
		}
		if f := flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag(cfgKeyLogLevel, f); err != nil {
				return settings{}, err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, userErrorf("read config: %w", err)
		}
	}

	s := settings{
		BaseURL:     v.GetString(cfgKeyBaseURL),
		Token:       v.GetString(cfgKeyToken),
		RetryMax:    v.GetInt(cfgKeyRetryMax),
		Timeout:     v.GetDuration(cfgKeyTimeout),
		CacheExpiry: v.GetDuration(cfgKeyCacheExpiry),
		LogLevel:    v.GetString(cfgKeyLogLevel),
	}
	if s.RetryMax < 0 {
		return settings{}, userErrorf("%s must not be negative", cfgKeyRetryMax)
	}
	if s.CacheExpiry <= 0 {
		return settings{}, userErrorf("%s must be positive", cfgKeyCacheExpiry)
	}
	return s, nil
}

func (s settings) requireToken() error {
	if s.Token == "" {
		return userErrorf("no session token: set %s in %s.%s or %s_TOKEN", cfgKeyToken, configFileName, configFileType, envPrefix)
	}
	return nil
}

func (s settings) String() string {
	return fmt.Sprintf("base_url=%s retry_max=%d timeout=%s cache_expiry=%s log_level=%s",
		s.BaseURL, s.RetryMax, s.Timeout, s.CacheExpiry, s.LogLevel)
}
