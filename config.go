package sieve

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds the per-world settings. Everything but Logger can be loaded
// from a TOML or YAML file.
type Config struct {
	Versioning      bool          `toml:"versioning" yaml:"versioning"`
	VersionBits     uint          `toml:"version_bits" yaml:"version_bits"`
	InitialCapacity int           `toml:"initial_capacity" yaml:"initial_capacity"`
	Logging         LoggingConfig `toml:"logging" yaml:"logging"`

	Logger *zap.Logger `toml:"-" yaml:"-"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

func DefaultConfig() Config {
	return Config{
		Versioning:      false,
		VersionBits:     DefaultVersionBits,
		InitialCapacity: 1024,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig decodes path over DefaultConfig. The decoder is picked by
// extension: .toml, .yaml or .yml.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "read config %s", path)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, ConfigError{Field: "path", Reason: "unsupported extension " + ext}
	}
	if err != nil {
		return Config{}, eris.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, eris.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Versioning && (c.VersionBits < 1 || c.VersionBits > 16) {
		return ConfigError{Field: "version_bits", Reason: "must be between 1 and 16"}
	}
	if c.InitialCapacity < 0 {
		return ConfigError{Field: "initial_capacity", Reason: "must not be negative"}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return ConfigError{Field: "logging.format", Reason: "must be json or console"}
	}
	return nil
}
