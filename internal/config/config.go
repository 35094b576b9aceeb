// Package config loads server configuration from YAML with environment
// variable expansion, so deployments can inject secrets and ports without
// editing the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML strings like "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full server configuration.
type Config struct {
	Listen string `yaml:"listen"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Bridge struct {
		// CallTimeout bounds one round trip to a page.
		CallTimeout Duration `yaml:"callTimeout"`
		// ConsoleCapacity sizes each client's log ring.
		ConsoleCapacity int `yaml:"consoleCapacity"`
	} `yaml:"bridge"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var c Config
	c.Listen = ":4330"
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Bridge.CallTimeout = Duration(30 * time.Second)
	c.Bridge.ConsoleCapacity = 1000
	return c
}

// Load reads the YAML file at path. A missing file yields the defaults; any
// other read or parse failure is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML configuration with ${VAR} expansion. Unset fields
// keep their defaults.
func LoadFromBytes(data []byte) (Config, error) {
	c := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Bridge.CallTimeout <= 0 {
		return fmt.Errorf("bridge call timeout must be positive")
	}
	if c.Bridge.ConsoleCapacity <= 0 {
		return fmt.Errorf("console capacity must be positive")
	}
	return nil
}
