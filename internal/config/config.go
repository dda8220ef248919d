// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/haven-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete haven configuration.
type Config struct {
	Version string `toml:"version"`

	Server ServerConfig `toml:"server"`
	User   UserConfig   `toml:"user"`
	Chat   ChatConfig   `toml:"chat"`
	Sync   SyncConfig   `toml:"sync"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig contains backend connection settings.
type ServerConfig struct {
	// BaseURL is the backend API base URL
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the timeout for non-streaming requests
	TimeoutSecs int `toml:"timeout_secs"`
}

// UserConfig identifies the active user. Provisioning is external; haven
// only consumes the identifier.
type UserConfig struct {
	ID string `toml:"id"`
}

// ChatConfig contains defaults for new chat requests.
type ChatConfig struct {
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	SystemPrompt      string  `toml:"system_prompt"`
	DefaultSearchMode string  `toml:"default_search_mode"`
	UseMemory         bool    `toml:"use_memory"`
}

// SyncConfig controls the background sync engine.
type SyncConfig struct {
	// Mode is "auto" (interval sync) or "manual" (explicit triggers only)
	Mode string `toml:"mode"`
	// IntervalSecs between automatic pulls
	IntervalSecs int `toml:"interval_secs"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto" (detect terminal background)
	Theme string `toml:"theme"`
	// Markdown enables glamour rendering of assistant messages
	Markdown bool `toml:"markdown"`
	// ShowThinking renders extracted reasoning blocks above answers
	ShowThinking bool `toml:"show_thinking"`
}

// LogConfig controls the file-backed logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1:8000",
			TimeoutSecs: 30,
		},
		Chat: ChatConfig{
			Temperature:       0.7,
			MaxTokens:         2048,
			DefaultSearchMode: "normal",
			UseMemory:         true,
		},
		Sync: SyncConfig{
			Mode:         "auto",
			IntervalSecs: 60,
		},
		UI: UIConfig{
			Theme:        "auto",
			Markdown:     true,
			ShowThinking: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// AppDir returns the haven application directory (~/.haven).
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".haven"), nil
}

// Path returns the config file path (~/.haven/config.toml).
func Path() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath returns the conversation database path.
func DatabasePath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "haven.db"), nil
}

// LogPath returns the log file path.
func LogPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "haven.log"), nil
}

// EnsureAppDir creates the application directory if needed.
func EnsureAppDir() error {
	dir, err := AppDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file, fills defaults, and applies environment
// overrides. A missing file is not an error; defaults are used.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load against an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults replaces zero values left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = def.Server.BaseURL
	}
	if c.Server.TimeoutSecs <= 0 {
		c.Server.TimeoutSecs = def.Server.TimeoutSecs
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = def.Chat.Temperature
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = def.Chat.MaxTokens
	}
	if c.Chat.DefaultSearchMode == "" {
		c.Chat.DefaultSearchMode = def.Chat.DefaultSearchMode
	}
	if c.Sync.Mode == "" {
		c.Sync.Mode = def.Sync.Mode
	}
	if c.Sync.IntervalSecs <= 0 {
		c.Sync.IntervalSecs = def.Sync.IntervalSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// ApplyEnvOverrides applies environment variable overrides. Environment
// takes precedence over the file.
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("HAVEN_SERVER_URL"); serverURL != "" {
		c.Server.BaseURL = serverURL
	}
	if user := os.Getenv("HAVEN_USER"); user != "" {
		c.User.ID = user
	}
	if mode := os.Getenv("HAVEN_SYNC_MODE"); mode != "" {
		c.Sync.Mode = mode
	}
	if level := os.Getenv("HAVEN_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks field values, clamping where a bad value has an obvious
// safe substitute.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid server base_url %q: %w", c.Server.BaseURL, err)
	}

	switch c.Sync.Mode {
	case "auto", "manual":
	default:
		return fmt.Errorf("sync mode must be auto or manual, got %q", c.Sync.Mode)
	}

	switch c.Chat.DefaultSearchMode {
	case "normal", "embeddings", "all":
	default:
		return fmt.Errorf("default_search_mode must be normal, embeddings, or all, got %q", c.Chat.DefaultSearchMode)
	}

	if c.Chat.Temperature < 0 {
		c.Chat.Temperature = 0
	}
	if c.Chat.Temperature > 2 {
		c.Chat.Temperature = 2
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default config file atomically.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to an explicit path atomically.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
