// Package config resolves CLI settings from a rescue.toml file, RESCUE_*
// environment variables, and built-in defaults, in ascending precedence of
// defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName = "rescue"
	configType = "toml"
	configDir  = ".rescue"
	envPrefix  = "RESCUE"

	starterFileMode = 0o600
	configDirMode   = 0o700
)

type Config struct {
	Project     string `mapstructure:"project"`
	Environment string `mapstructure:"environment"`

	APIBaseURL string `mapstructure:"api_base_url"`
	Subdomain  string `mapstructure:"subdomain"`

	PageSize           int `mapstructure:"page_size"`
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffBase        int `mapstructure:"backoff_base"`
	BackoffMaxSeconds  int `mapstructure:"backoff_max_seconds"`
	RateLimitThreshold int `mapstructure:"rate_limit_threshold"`
	RequestTimeoutSecs int `mapstructure:"request_timeout_seconds"`

	StateDir   string `mapstructure:"state_dir"`
	SecretsDir string `mapstructure:"secrets_dir"`
	LogLevel   string `mapstructure:"log_level"`
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func (c Config) Validate() error {
	if c.PageSize < 1 || c.PageSize > 200 {
		return errors.New("page_size must be between 1 and 200")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if c.BackoffBase < 1 {
		return errors.New("backoff_base must be at least 1")
	}
	if c.BackoffMaxSeconds < 1 {
		return errors.New("backoff_max_seconds must be at least 1")
	}
	if c.RequestTimeoutSecs < 1 {
		return errors.New("request_timeout_seconds must be at least 1")
	}
	return nil
}

// Load reads configuration through the supplied viper instance. Passing nil
// creates a fresh one rooted at ~/.rescue and the working directory.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()

		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, configDir))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a registered default, or AutomaticEnv values are
	// invisible to Unmarshal.
	v.SetDefault("project", "")
	v.SetDefault("subdomain", "")
	v.SetDefault("environment", "sandbox")
	v.SetDefault("api_base_url", "https://v3.recurly.com")
	v.SetDefault("page_size", 50)
	v.SetDefault("max_retries", 3)
	v.SetDefault("backoff_base", 2)
	v.SetDefault("backoff_max_seconds", 30)
	v.SetDefault("rate_limit_threshold", 10)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("state_dir", ".")
	v.SetDefault("log_level", "info")

	if homeDir, err := os.UserHomeDir(); err == nil {
		v.SetDefault("secrets_dir", filepath.Join(homeDir, configDir, "secrets"))
	} else {
		v.SetDefault("secrets_dir", filepath.Join(".", configDir, "secrets"))
	}
}

// starterFile is the TOML shape written by `rescue config init`. Comments are
// not round-tripped, so the starter keeps a flat, self-describing layout.
type starterFile struct {
	Project     string `toml:"project"`
	Environment string `toml:"environment"`

	APIBaseURL string `toml:"api_base_url"`
	Subdomain  string `toml:"subdomain"`

	PageSize           int `toml:"page_size"`
	MaxRetries         int `toml:"max_retries"`
	BackoffBase        int `toml:"backoff_base"`
	BackoffMaxSeconds  int `toml:"backoff_max_seconds"`
	RateLimitThreshold int `toml:"rate_limit_threshold"`
	RequestTimeoutSecs int `toml:"request_timeout_seconds"`

	StateDir string `toml:"state_dir"`
	LogLevel string `toml:"log_level"`
}

// WriteStarter creates a rescue.toml populated with defaults at path. An
// existing file is never overwritten.
func WriteStarter(path, project string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check config file: %w", err)
	}

	starter := starterFile{
		Project:            project,
		Environment:        "sandbox",
		APIBaseURL:         "https://v3.recurly.com",
		PageSize:           50,
		MaxRetries:         3,
		BackoffBase:        2,
		BackoffMaxSeconds:  30,
		RateLimitThreshold: 10,
		RequestTimeoutSecs: 30,
		StateDir:           ".",
		LogLevel:           "info",
	}

	data, err := toml.Marshal(starter)
	if err != nil {
		return fmt.Errorf("encode starter config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, starterFileMode); err != nil {
		return fmt.Errorf("write starter config: %w", err)
	}

	return nil
}
