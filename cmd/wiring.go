package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"agegate/internal/cli"
	"agegate/internal/config"
	"agegate/internal/cookie"
	"agegate/internal/session"
	"agegate/internal/storage"
	"agegate/pkg/logging"
)

// loadConfig builds the effective configuration: config.yaml, then the
// environment, then command line flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}

	cfg.ApplyEnv(os.Getenv)
	applyFlags(&cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if clientIDFlag != "" {
		cfg.ClientID = clientIDFlag
	}
	if storageFlag != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(storageFlag))
	}
	if redisURLFlag != "" {
		cfg.Storage.RedisURL = redisURLFlag
	}
	if callbackPortArg != 0 {
		cfg.Callback.Port = callbackPortArg
	}
}

// backend bundles the stores every command works against.
type backend struct {
	store    storage.Store
	cookies  *cookie.Jar
	sessions *session.Store
	location string
}

func (b *backend) Close() {
	if err := b.store.Close(); err != nil {
		logging.Debug("Storage", "Failed to close store: %v", err)
	}
}

// openBackend opens the shared store and the cookie jar for cfg.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	store, location, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jar, err := cookie.NewJar(cfg.Storage.CookieFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &backend{
		store:    store,
		cookies:  jar,
		sessions: session.NewStore(cfg.ClientID, store, jar),
		location: location,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, string, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendRedis:
		endpoint := redactURL(cfg.Storage.RedisURL)
		store, err := storage.NewRedisStore(ctx, cfg.Storage.RedisURL, cfg.Storage.KeyPrefix)
		if err != nil {
			return nil, "", cli.ClassifyConnectionError(err, endpoint)
		}
		logging.Debug("Storage", "Using redis store at %s", endpoint)
		return store, endpoint, nil

	case config.StorageBackendMemory:
		logging.Debug("Storage", "Using in-memory store")
		return storage.NewMemoryStore(), "", nil

	case config.StorageBackendFile:
		store, err := storage.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, "", err
		}
		logging.Debug("Storage", "Using file store at %s", store.Dir())
		return store, store.Dir(), nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// redactURL drops the password from a URL so it can be shown to the user.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid URL>"
	}
	return u.Redacted()
}
