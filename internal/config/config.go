package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete nvopen configuration
type Config struct {
	Editor     EditorConfig     `mapstructure:"editor"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Popup      PopupConfig      `mapstructure:"popup"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// EditorConfig controls how the editor is launched and reached
type EditorConfig struct {
	// Command is the editor binary to launch when no address is known
	Command string `mapstructure:"command"`
	// Args are extra arguments passed to the launched editor
	Args []string `mapstructure:"args"`
	// Config is a config file handed to the launched editor via -u (optional)
	Config string `mapstructure:"config"`
	// StartupTimeoutMs is how long to wait for the launched editor's socket
	// to appear before giving up (in milliseconds)
	StartupTimeoutMs int `mapstructure:"startup_timeout_ms"`
}

// ClassifierConfig controls the content-type probe used to skip non-text files
type ClassifierConfig struct {
	// Mode selects the probe: "mime" (built-in detection) or "file"
	// (run the external file(1)-style command and require "ASCII text")
	Mode string `mapstructure:"mode"`
	// Command is the external probe binary for mode "file"
	Command string `mapstructure:"command"`
}

// PopupConfig controls floating-window appearance
type PopupConfig struct {
	// Winblend is the pseudo-transparency applied to popup windows (0-100)
	Winblend int `mapstructure:"winblend"`
}

// LoggingConfig controls the per-run debug log
type LoggingConfig struct {
	// Level is the minimum level written: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
}

// Classifier modes accepted by ClassifierConfig.Mode.
const (
	ClassifierModeMIME = "mime"
	ClassifierModeFile = "file"
)

// StartupTimeout returns the socket-wait timeout as a duration.
func (e *EditorConfig) StartupTimeout() time.Duration {
	return time.Duration(e.StartupTimeoutMs) * time.Millisecond
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			Command:          "nvim",
			Args:             nil,
			Config:           "",
			StartupTimeoutMs: 5000,
		},
		Classifier: ClassifierConfig{
			Mode:    ClassifierModeMIME,
			Command: "file",
		},
		Popup: PopupConfig{
			Winblend: 25,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// SetDefaults registers all defaults with viper so they apply even without a
// config file.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("editor.command", defaults.Editor.Command)
	viper.SetDefault("editor.args", defaults.Editor.Args)
	viper.SetDefault("editor.config", defaults.Editor.Config)
	viper.SetDefault("editor.startup_timeout_ms", defaults.Editor.StartupTimeoutMs)

	viper.SetDefault("classifier.mode", defaults.Classifier.Mode)
	viper.SetDefault("classifier.command", defaults.Classifier.Command)

	viper.SetDefault("popup.winblend", defaults.Popup.Winblend)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Editor.Command == "" {
		return fmt.Errorf("editor.command must not be empty")
	}
	if c.Classifier.Mode != ClassifierModeMIME && c.Classifier.Mode != ClassifierModeFile {
		return fmt.Errorf("classifier.mode must be %q or %q, got %q",
			ClassifierModeMIME, ClassifierModeFile, c.Classifier.Mode)
	}
	if c.Classifier.Mode == ClassifierModeFile && c.Classifier.Command == "" {
		return fmt.Errorf("classifier.command must not be empty in %q mode", ClassifierModeFile)
	}
	if c.Popup.Winblend < 0 || c.Popup.Winblend > 100 {
		return fmt.Errorf("popup.winblend must be between 0 and 100, got %d", c.Popup.Winblend)
	}
	if c.Editor.StartupTimeoutMs <= 0 {
		return fmt.Errorf("editor.startup_timeout_ms must be positive, got %d", c.Editor.StartupTimeoutMs)
	}
	return nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nvopen")
	}
	// Fall back to ~/.config/nvopen
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nvopen"
	}
	return filepath.Join(home, ".config", "nvopen")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
