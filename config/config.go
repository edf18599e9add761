package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Listen string `yaml:"listen" default:":8080" validate:"required"`
	Redis  Redis  `yaml:"redis"`

	// EncryptionKey is the base64-encoded 32-byte AES key credentials are
	// sealed with.
	EncryptionKey string `yaml:"encryptionKey" validate:"required"`

	SessionTTL          Duration `yaml:"sessionTTL"`
	CredentialsCacheTTL Duration `yaml:"credentialsCacheTTL"`
}

// Duration unmarshals from YAML strings like "48h" or "90s". Only positive
// durations are accepted: the zero value is reserved for "unset", which gets
// the default, so an explicit zero must be rejected rather than silently
// replaced.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("duration %q must be positive", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" default:"0" validate:"gte=0,lte=15"`
}

// Load reads the YAML config file, fills defaults for unset fields and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = Duration(48 * time.Hour)
	}
	if cfg.CredentialsCacheTTL == 0 {
		cfg.CredentialsCacheTTL = Duration(5 * time.Minute)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Key decodes the encryption key and checks it is AES-256 sized.
func (c *Config) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("error decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
