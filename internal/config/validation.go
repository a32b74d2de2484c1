package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration and reports every problem in a single
// ConfigurationError.
func (c Config) Validate() error {
	var errs ValidationErrors
	var suggestions []string

	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("clientId", "is required")
		suggestions = append(suggestions, fmt.Sprintf("Set clientId in config.yaml or export %s", EnvClientID))
	}
	if c.ExpiryMinutes <= 0 {
		errs.Add("expiryMinutes", "must be positive", c.ExpiryMinutes)
	}

	validateEndpoint(&errs, "provider.authorizeUrl", c.Provider.AuthorizeURL)
	validateEndpoint(&errs, "provider.tokenUrl", c.Provider.TokenURL)
	validateEndpoint(&errs, "provider.userinfoUrl", c.Provider.UserinfoURL)

	switch c.Storage.Backend {
	case StorageBackendFile:
		if c.Storage.Dir == "" {
			errs.Add("storage.dir", "is required for the file backend")
		}
	case StorageBackendRedis:
		if c.Storage.RedisURL == "" {
			errs.Add("storage.redisUrl", "is required for the redis backend")
			suggestions = append(suggestions, fmt.Sprintf("Set storage.redisUrl or export %s", EnvRedisURL))
		}
	case StorageBackendMemory:
	default:
		errs.Add("storage.backend", "must be one of file, redis, memory", c.Storage.Backend)
	}

	if c.Callback.Host == "" {
		errs.Add("callback.host", "is required")
	}
	if c.Callback.Port < 1 || c.Callback.Port > 65535 {
		errs.Add("callback.port", "must be between 1 and 65535", c.Callback.Port)
	}

	if c.Signal.Timeout <= 0 {
		errs.Add("signal.timeout", "must be positive", c.Signal.Timeout)
	}
	if c.Signal.PollInterval <= 0 || c.Signal.PollInterval > DefaultPollInterval {
		errs.Add("signal.pollInterval", fmt.Sprintf("must be positive and at most %s", DefaultPollInterval), c.Signal.PollInterval)
	}

	if !errs.HasErrors() {
		return nil
	}
	return NewConfigurationError("", ErrorTypeValidation, "invalid configuration", errs.Error(), suggestions...)
}

func validateEndpoint(errs *ValidationErrors, field, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add(field, "must be an absolute URL", raw)
	}
}
