package app

import (
	"errors"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime wiring options.
type Config struct {
	// Home is the local state directory, e.g. $HOME/.cgraph.
	Home string `yaml:"home"`

	// DirectoryURL is the key directory base URL.
	DirectoryURL string `yaml:"directory_url"`

	// UserID is the local account id.
	UserID string `yaml:"user_id"`

	// BundleTTL bounds recipient-bundle cache reuse.
	BundleTTL time.Duration `yaml:"bundle_ttl"`

	// Replenishment watermarks and cadence.
	PreKeyLowWater  int           `yaml:"prekey_low_water"`
	PreKeyHighWater int           `yaml:"prekey_high_water"`
	ReplenishEvery  time.Duration `yaml:"replenish_every"`

	// HTTP overrides the outbound client; nil means http.DefaultClient.
	HTTP *http.Client `yaml:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DirectoryURL:    "http://127.0.0.1:8080",
		BundleTTL:       5 * time.Minute,
		PreKeyLowWater:  20,
		PreKeyHighWater: 100,
		ReplenishEvery:  5 * time.Minute,
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file
// just yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
