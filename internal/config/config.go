package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the run command looks for a config file
const DefaultPath = "walkthrough.yml"

// DefaultDumpDepth applies when dump_depth is absent
const DefaultDumpDepth = 2

// Config represents the walkthrough.yml configuration
type Config struct {
	Version   int      `yaml:"version"`
	Settings  Settings `yaml:"settings"`
	Server    Server   `yaml:"server"`
	Scenarios []string `yaml:"scenarios"`
}

type Settings struct {
	// Pause before every step and wait for operator input
	Step bool `yaml:"step"`
	// Output format: pretty or events
	Output string `yaml:"output"`
	// Diagnostic log level (zerolog level names)
	LogLevel string `yaml:"log_level"`
	// How many nested levels bullet dumps print; 0 prints top level keys only
	DumpDepth *int `yaml:"dump_depth"`
	// Keep a run directory with the event and debug logs
	Record bool `yaml:"record"`
	// Upper bound for the whole run, zero means none
	Timeout time.Duration `yaml:"timeout"`
}

// Depth returns the bullet dump depth, the default when none is set
func (s Settings) Depth() int {
	if s.DumpDepth == nil {
		return DefaultDumpDepth
	}
	return *s.DumpDepth
}

// Server configures the demo system under test
type Server struct {
	Addr string `yaml:"addr"`
	Auth Auth   `yaml:"auth"`
}

// Auth holds the credentials the custom auth scheme hands out
type Auth struct {
	Name  string   `yaml:"name"`
	Scope []string `yaml:"scope"`
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the walkthrough.yml configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Settings.Output == "" {
		c.Settings.Output = "pretty"
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "warn"
	}
	if c.Settings.DumpDepth == nil {
		depth := DefaultDumpDepth
		c.Settings.DumpDepth = &depth
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:3000"
	}
	if c.Server.Auth.Name == "" {
		c.Server.Auth.Name = "john"
	}
	if c.Server.Auth.Scope == nil {
		c.Server.Auth.Scope = []string{"admin"}
	}
}

// Validate checks the config after command line overrides are applied
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	validOutputs := []string{"pretty", "events"}
	if !slices.Contains(validOutputs, c.Settings.Output) {
		return fmt.Errorf("invalid output format: %s", c.Settings.Output)
	}

	if _, err := zerolog.ParseLevel(c.Settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Settings.LogLevel)
	}

	if c.Settings.Depth() < 0 {
		return fmt.Errorf("dump_depth must not be negative: %d", c.Settings.Depth())
	}

	if c.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Settings.Timeout)
	}

	return nil
}

// RunAll reports whether the scenario selection asks for every scenario
func (c *Config) RunAll() bool {
	return slices.Contains(c.Scenarios, "all") || slices.Contains(c.Scenarios, "*")
}

const fileHeader = `# walkthrough configuration
# Scenario names come from "walkthrough list"; use "all" to run every scenario.
`

// Write stores cfg at path as YAML
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
