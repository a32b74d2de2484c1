package config

import (
	"fmt"
	"time"
)

// Config is the agegate configuration.
type Config struct {
	ClientID      string         `yaml:"clientId"`
	Text          TextConfig     `yaml:"text"`
	Logo          string         `yaml:"logo,omitempty"`
	CSS           string         `yaml:"css,omitempty"`
	ExpiryMinutes int            `yaml:"expiryMinutes"`
	Provider      ProviderConfig `yaml:"provider"`
	Storage       StorageConfig  `yaml:"storage"`
	Callback      CallbackConfig `yaml:"callback"`
	Signal        SignalConfig   `yaml:"signal"`
}

// TextConfig customizes the consent prompt.
type TextConfig struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	YesLabel     string `yaml:"yesLabel"`
	NoLabel      string `yaml:"noLabel"`
	ErrorMessage string `yaml:"errorMessage"`
}

// ProviderConfig overrides the identity provider endpoints.
type ProviderConfig struct {
	AuthorizeURL string `yaml:"authorizeUrl"`
	TokenURL     string `yaml:"tokenUrl"`
	UserinfoURL  string `yaml:"userinfoUrl"`
}

// StorageBackend selects the shared key/value store.
type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendRedis  StorageBackend = "redis"
	StorageBackendMemory StorageBackend = "memory"
)

// StorageConfig configures the shared store and the cookie jar.
type StorageConfig struct {
	Backend    StorageBackend `yaml:"backend"`
	Dir        string         `yaml:"dir,omitempty"`
	RedisURL   string         `yaml:"redisUrl,omitempty"`
	KeyPrefix  string         `yaml:"keyPrefix,omitempty"`
	CookieFile string         `yaml:"cookieFile,omitempty"`
}

// CallbackConfig configures the local callback receiver.
type CallbackConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SignalConfig tunes the signal channel.
type SignalConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// SessionTTL returns the session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

// RedirectURI is the callback receiver's origin, without a trailing slash.
func (c Config) RedirectURI() string {
	return fmt.Sprintf("http://%s:%d", c.Callback.Host, c.Callback.Port)
}

// SignalURL is where the callback receiver accepts direct signals.
func (c Config) SignalURL() string {
	return c.RedirectURI() + SignalPath
}
