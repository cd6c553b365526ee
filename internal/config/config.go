package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env     string        `yaml:"env" env:"REEFER_ENV" env-default:"prod"`
	Backend BackendConfig `yaml:"backend"`
	Monitor MonitorConfig `yaml:"monitor"`
	Health  HealthConfig  `yaml:"health"`
	Log     LogConfig     `yaml:"log"`
}

type BackendConfig struct {
	URL     string        `yaml:"url" env:"REEFER_BACKEND_URL"`
	APIKey  string        `yaml:"api_key" env:"REEFER_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"REEFER_BACKEND_TIMEOUT" env-default:"10s"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval" env:"REEFER_MONITOR_INTERVAL" env-default:"5s"`
}

// HealthConfig enables the health endpoint in monitor mode. Empty address
// disables it.
type HealthConfig struct {
	Address string `yaml:"address" env:"REEFER_HEALTH_ADDRESS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"REEFER_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"REEFER_LOG_FORMAT" env-default:"text"`
}

var (
	ErrMissingURL = errors.New("backend url is required")
	ErrMissingKey = errors.New("backend api key is required")
)

// Load reads the config file named by configPath, then CONFIG_PATH, then the
// default location. When no file is named and the default is absent, the
// configuration comes from the environment alone.
func Load(configPath string) (*Config, error) {
	explicit := true
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = defaultConfigPath
		explicit = false
	}

	var cfg Config

	if _, err := os.Stat(configPath); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values that have no sensible default.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return ErrMissingURL
	}
	if c.Backend.APIKey == "" {
		return ErrMissingKey
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.Monitor.Interval)
	}
	return nil
}
