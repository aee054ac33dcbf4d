package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quran-tui/internal/api"
	"quran-tui/internal/theme"
)

const appName = "quran-tui"

// Config holds all quran-tui configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the remote text and audio sources.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	AudioBaseURL string `yaml:"audio_base_url"`
	Reciter      string `yaml:"reciter"` // edition identifier, e.g. ar.alafasy
	Timeout      string `yaml:"timeout"`
}

// UIConfig configures the terminal front-end.
type UIConfig struct {
	Theme string `yaml:"theme"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // path, "stderr", or "off"; empty means the state dir
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:      api.DefaultBaseURL,
			AudioBaseURL: api.DefaultAudioBaseURL,
			Reciter:      api.DefaultReciter,
			Timeout:      api.DefaultTimeout.String(),
		},
		UI: UIConfig{
			Theme: theme.DefaultName,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/quran-tui/config.yaml (or the
// platform equivalent).
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, "config.yaml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QURAN_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("QURAN_AUDIO_URL"); v != "" {
		c.API.AudioBaseURL = v
	}
	if v := os.Getenv("QURAN_RECITER"); v != "" {
		c.API.Reciter = v
	}
	if v := os.Getenv("QURAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"api.base_url":       c.API.BaseURL,
		"api.audio_base_url": c.API.AudioBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid URL %q", name, raw)
		}
	}
	if c.API.Reciter == "" {
		return fmt.Errorf("api.reciter is required")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if c.UI.Theme != "" && !slices.Contains(theme.Names(), c.UI.Theme) {
		return fmt.Errorf("ui.theme: unknown theme %q (available: %s)", c.UI.Theme, strings.Join(theme.Names(), ", "))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// Timeout parses api.timeout, falling back to the client default when unset.
func (c *Config) Timeout() (time.Duration, error) {
	if c.API.Timeout == "" {
		return api.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("api.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api.timeout must be positive, got %s", d)
	}
	return d, nil
}
