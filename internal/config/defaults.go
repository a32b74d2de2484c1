package config

import (
	"time"

	"agegate/internal/provider"
)

const (
	DefaultExpiryMinutes = 1440
	DefaultCallbackHost  = "localhost"
	DefaultCallbackPort  = 3000
	DefaultSignalTimeout = 120 * time.Second
	DefaultPollInterval  = time.Second

	// SignalPath is the callback receiver's direct signal endpoint.
	SignalPath = "/signal"

	storeDirName   = "store"
	cookieFileName = "cookies.txt"
)

// GetDefaultConfig returns the configuration used before any file, env or
// flag is applied.
func GetDefaultConfig() Config {
	return Config{
		Text: TextConfig{
			Title:        "Age Verification",
			Description:  "You must verify your age to view this content.",
			YesLabel:     "Verify with AgeWallet",
			NoLabel:      "I Disagree",
			ErrorMessage: "Sorry, you do not meet the minimum requirements.",
		},
		ExpiryMinutes: DefaultExpiryMinutes,
		Provider: ProviderConfig{
			AuthorizeURL: provider.DefaultAuthorizeURL,
			TokenURL:     provider.DefaultTokenURL,
			UserinfoURL:  provider.DefaultUserinfoURL,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
		},
		Callback: CallbackConfig{
			Host: DefaultCallbackHost,
			Port: DefaultCallbackPort,
		},
		Signal: SignalConfig{
			Timeout:      DefaultSignalTimeout,
			PollInterval: DefaultPollInterval,
		},
	}
}
