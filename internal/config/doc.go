// Package config loads the agegate configuration.
//
// Configuration lives in a single directory, ~/.config/agegate by default,
// overridable with the --config-path flag. The directory holds config.yaml
// and, for the file storage backend, the shared store and cookie jar.
//
// Loading starts from defaults, overlays config.yaml when present, then the
// environment (AGEGATE_CLIENT_ID, AGEGATE_STORAGE_BACKEND, AGEGATE_REDIS_URL)
// and finally command-line flags. Validate runs last and reports every
// problem at once as a ConfigurationError.
//
// # Example
//
//	clientId: abc123
//	expiryMinutes: 60
//	text:
//	  title: Members only
//	storage:
//	  backend: redis
//	  redisUrl: redis://localhost:6379/0
//	signal:
//	  timeout: 2m
package config
