package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"agegate/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/agegate"
	configFileName = "config.yaml"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvClientID       = "AGEGATE_CLIENT_ID"
	EnvStorageBackend = "AGEGATE_STORAGE_BACKEND"
	EnvRedisURL       = "AGEGATE_REDIS_URL"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults. A
// missing file is not an error. Relative storage paths are resolved against
// configPath.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			config.resolvePaths(configPath)
			return config, nil
		}
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeIO,
			"failed to read configuration", err.Error(),
			"Check that the file is readable by the current user")
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeParse,
			"malformed configuration", err.Error(),
			"Durations use Go syntax, for example 90s or 2m")
	}

	config.resolvePaths(configPath)
	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// ApplyEnv overlays values from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvClientID); v != "" {
		c.ClientID = v
	}
	if v := getenv(EnvStorageBackend); v != "" {
		c.Storage.Backend = StorageBackend(v)
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Storage.RedisURL = v
	}
}

func (c *Config) resolvePaths(configPath string) {
	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(configPath, storeDirName)
	} else if !filepath.IsAbs(c.Storage.Dir) {
		c.Storage.Dir = filepath.Join(configPath, c.Storage.Dir)
	}
	if c.Storage.CookieFile == "" {
		c.Storage.CookieFile = filepath.Join(configPath, cookieFileName)
	} else if !filepath.IsAbs(c.Storage.CookieFile) {
		c.Storage.CookieFile = filepath.Join(configPath, c.Storage.CookieFile)
	}
}
