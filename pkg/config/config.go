// Package config handles boxd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nyxlab/boxd/pkg/errors"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Hardware HardwareConfig `yaml:"hardware"`
	Random   RandomConfig   `yaml:"random"`
	Logging  LoggingConfig  `yaml:"logging"`
	Console  ConsoleConfig  `yaml:"console"`
}

// ServerConfig holds WebSocket server settings.
type ServerConfig struct {
	// Listen is the address the control server binds, e.g. ":8765".
	Listen string `yaml:"listen"`
}

// DataConfig holds session recording settings.
type DataConfig struct {
	// Dir is the directory session JSON files are written to.
	Dir string `yaml:"dir"`
}

// HardwareConfig holds GPIO and I2C settings.
type HardwareConfig struct {
	// Enabled drives real GPIO and I2C when true. When false, or when
	// hardware initialization fails, the device runs simulated IO.
	Enabled bool `yaml:"enabled"`

	// I2CBus selects the I2C bus for the displays. Empty uses the first
	// available bus.
	I2CBus string `yaml:"i2c_bus"`
}

// RandomConfig holds randomness settings.
type RandomConfig struct {
	// Seed seeds the trial randomness source. Zero derives a seed from
	// the clock at startup; any other value gives reproducible sessions.
	Seed int64 `yaml:"seed"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ConsoleConfig holds the interactive simulation console settings.
type ConsoleConfig struct {
	// Enabled starts the readline console for driving simulated inputs.
	Enabled bool `yaml:"enabled"`

	// HistoryFile is the readline history path. Empty uses a file in the
	// system temp directory.
	HistoryFile string `yaml:"history_file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8765",
		},
		Data: DataConfig{
			Dir: "data",
		},
		Hardware: HardwareConfig{
			Enabled: true,
		},
		Random: RandomConfig{
			Seed: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Console: ConsoleConfig{
			Enabled: false,
		},
	}
}

// Load loads configuration from a file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.ConfigWrap(err, errors.ErrConfigReadFailed, "failed to read config").
			WithContext("path", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		perr := errors.ConfigParseError(path, err)
		if line, col := extractYAMLErrorLocation(err.Error()); line > 0 {
			perr.WithContext("line", strconv.Itoa(line))
			if col > 0 {
				perr.WithContext("column", strconv.Itoa(col))
			}
		}
		if typ := extractExpectedType(err.Error()); typ != "" {
			perr.WithContext("expected_type", typ)
		}
		return nil, perr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Validate checks configuration values against their allowed ranges.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.Config(errors.ErrConfigInvalid, "server.listen must not be empty").
			WithContext("field", "server.listen")
	}

	if c.Data.Dir == "" {
		return errors.Config(errors.ErrConfigInvalid, "data.dir must not be empty").
			WithContext("field", "data.dir")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !isValidOption(c.Logging.Level, validLevels) {
		return errors.Configf(errors.ErrConfigInvalid, "logging.level must be one of %s", strings.Join(validLevels, ", ")).
			WithContext("field", "logging.level").
			WithContext("value", c.Logging.Level).
			WithContext("valid_options", strings.Join(validLevels, ", "))
	}

	validFormats := []string{"console", "json"}
	if !isValidOption(c.Logging.Format, validFormats) {
		return errors.Configf(errors.ErrConfigInvalid, "logging.format must be one of %s", strings.Join(validFormats, ", ")).
			WithContext("field", "logging.format").
			WithContext("value", c.Logging.Format).
			WithContext("valid_options", strings.Join(validFormats, ", "))
	}

	return nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.ConfigWrap(err, errors.ErrConfigInitFailed, "failed to create config directory").
			WithContext("dir", dir)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.ConfigWrap(err, errors.ErrConfigWriteFailed, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.ConfigWrap(err, errors.ErrConfigWriteFailed, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// First check for config in current working directory
	if _, err := os.Stat("boxd.yaml"); err == nil {
		return "boxd.yaml"
	}
	// Then check the system location used on deployed devices
	if _, err := os.Stat("/etc/boxd/config.yaml"); err == nil {
		return "/etc/boxd/config.yaml"
	}
	// Default to boxd.yaml in current directory
	return "boxd.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Already exists
	}

	cfg := Default()
	return cfg.Save(path)
}

// -----------------------------------------------------------------------------
// YAML Error Helpers
// -----------------------------------------------------------------------------

var (
	yamlLocationRe = regexp.MustCompile(`line (\d+)(?::(\d+))?`)
	yamlTypeRe     = regexp.MustCompile(`into \*?([A-Za-z0-9_.\[\]]+)`)
)

// extractYAMLErrorLocation pulls line and column numbers out of a yaml.v3
// error string. Returns zeros when the error carries no location.
func extractYAMLErrorLocation(errStr string) (line, col int) {
	m := yamlLocationRe.FindStringSubmatch(errStr)
	if m == nil {
		return 0, 0
	}
	line, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		col, _ = strconv.Atoi(m[2])
	}
	return line, col
}

// extractExpectedType pulls the Go type out of a yaml unmarshal type error.
func extractExpectedType(errStr string) string {
	m := yamlTypeRe.FindStringSubmatch(errStr)
	if m == nil {
		return ""
	}
	return m[1]
}

// isValidOption reports whether value is one of the allowed options.
func isValidOption(value string, options []string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
}

// String renders the config for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s data=%s hardware=%t seed=%d",
		c.Server.Listen, c.Data.Dir, c.Hardware.Enabled, c.Random.Seed)
}
