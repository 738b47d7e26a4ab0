package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Kroger  KrogerConfig
	Auth    AuthConfig
	Storage StorageConfig
}

// KrogerConfig contains credentials and options for the Kroger Public API.
type KrogerConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// AuthConfig holds options for the interactive authorization-code flow.
type AuthConfig struct {
	RedirectURI  string
	CallbackPort string
}

// StorageConfig holds the local data directory for staples, tokens,
// proposals and the sent-items ledger.
type StorageConfig struct {
	DataDir string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	dataDir := os.Getenv("KROGET_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kroget")
	}

	callbackPort := getenvWithDefault("KROGET_CALLBACK_PORT", "8400")

	cfg := &Config{
		Kroger: KrogerConfig{
			ClientID:     os.Getenv("KROGET_CLIENT_ID"),
			ClientSecret: os.Getenv("KROGET_CLIENT_SECRET"),
			BaseURL:      getenvWithDefault("KROGET_BASE_URL", "https://api.kroger.com"),
		},
		Auth: AuthConfig{
			RedirectURI:  getenvWithDefault("KROGET_REDIRECT_URI", "http://localhost:"+callbackPort+"/callback"),
			CallbackPort: callbackPort,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.Kroger.ClientID == "":
		return errors.New("KROGET_CLIENT_ID must be provided")
	case c.Kroger.ClientSecret == "":
		return errors.New("KROGET_CLIENT_SECRET must be provided")
	}

	if c.Kroger.BaseURL == "" {
		return errors.New("KROGET_BASE_URL must not be empty")
	}

	if c.Storage.DataDir == "" {
		return errors.New("KROGET_DATA_DIR must not be empty")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
