// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete twin configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Client   ClientConfig   `toml:"client"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains the proxy HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8787".
	Addr string `toml:"addr"`
	// AllowedOrigins lists the browser origins allowed by CORS ("*" allows all).
	AllowedOrigins []string `toml:"allowed_origins"`
	// RateLimitPerMinute is the sustained per-IP request rate (0 disables limiting).
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	// RateLimitBurst is the per-IP burst size.
	RateLimitBurst int `toml:"rate_limit_burst"`
}

// ProviderConfig contains the completion provider settings.
type ProviderConfig struct {
	// BaseURL is the OpenAI-compatible API root (without /chat/completions).
	BaseURL string `toml:"base_url"`
	// Model is the provider model identifier.
	Model string `toml:"model"`
	// Temperature is the sampling temperature. Kept low for a factual persona.
	Temperature float64 `toml:"temperature"`
	// MaxTokens bounds the reply length.
	MaxTokens int `toml:"max_tokens"`
	// TimeoutSecs bounds one provider call.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxMessages is how many sanitized messages are forwarded (most recent first kept).
	MaxMessages int `toml:"max_messages"`
	// APIKeyEnv is the environment variable and .env key holding the credential.
	APIKeyEnv string `toml:"api_key_env"`
	// EnvFile is the fallback credential file, relative to the working directory.
	EnvFile string `toml:"env_file"`
}

// Timeout returns the provider timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// ClientConfig contains settings for the chat and ask commands.
type ClientConfig struct {
	// ProxyURL is the full URL of the proxy chat endpoint.
	ProxyURL string `toml:"proxy_url"`
	// TimeoutSecs bounds one proxy round trip from the client side.
	TimeoutSecs int `toml:"timeout_secs"`
}

// Timeout returns the client timeout as a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// JSON forces JSON output even on a terminal.
	JSON bool `toml:"json"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	// DefaultMaxMessages is the sanitized history bound.
	DefaultMaxMessages = 12

	// DefaultAPIKeyEnv is the credential variable name.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			RateLimitPerMinute: 20,
			RateLimitBurst:     5,
		},
		Provider: ProviderConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   500,
			TimeoutSecs: 30,
			MaxMessages: DefaultMaxMessages,
			APIKeyEnv:   DefaultAPIKeyEnv,
			EnvFile:     filepath.Join("..", ".env"),
		},
		Client: ClientConfig{
			ProxyURL:    "http://127.0.0.1:8787/api/chat",
			TimeoutSecs: 45,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the twin configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".twin"), nil
}

// ConfigPath returns the default path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from path, or from the default location when path
// is empty. A missing default file is not an error; a missing explicit path is.
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, statErr)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep their
// current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Save writes cfg as TOML to path with owner-only permissions.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS, ENV OVERRIDES AND VALIDATION
// =============================================================================

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimitBurst == 0 && c.Server.RateLimitPerMinute > 0 {
		c.Server.RateLimitBurst = d.Server.RateLimitBurst
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = d.Provider.BaseURL
	}
	c.Provider.BaseURL = strings.TrimSuffix(c.Provider.BaseURL, "/")
	if c.Provider.Model == "" {
		c.Provider.Model = d.Provider.Model
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = d.Provider.MaxTokens
	}
	if c.Provider.TimeoutSecs == 0 {
		c.Provider.TimeoutSecs = d.Provider.TimeoutSecs
	}
	if c.Provider.MaxMessages == 0 {
		c.Provider.MaxMessages = d.Provider.MaxMessages
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = d.Provider.APIKeyEnv
	}
	if c.Provider.EnvFile == "" {
		c.Provider.EnvFile = d.Provider.EnvFile
	}
	if c.Client.ProxyURL == "" {
		c.Client.ProxyURL = d.Client.ProxyURL
	}
	if c.Client.TimeoutSecs == 0 {
		c.Client.TimeoutSecs = d.Client.TimeoutSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - TWIN_ADDR: overrides server.addr
//   - TWIN_ALLOWED_ORIGINS: comma-separated, overrides server.allowed_origins
//   - TWIN_PROVIDER_URL: overrides provider.base_url
//   - TWIN_MODEL: overrides provider.model
//   - TWIN_TIMEOUT_SECS: overrides provider.timeout_secs
//   - TWIN_PROXY_URL: overrides client.proxy_url
//   - TWIN_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("TWIN_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if origins := os.Getenv("TWIN_ALLOWED_ORIGINS"); origins != "" {
		var list []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		c.Server.AllowedOrigins = list
	}

	if u := os.Getenv("TWIN_PROVIDER_URL"); u != "" {
		c.Provider.BaseURL = u
	}

	if model := os.Getenv("TWIN_MODEL"); model != "" {
		c.Provider.Model = model
	}

	if secs := os.Getenv("TWIN_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			c.Provider.TimeoutSecs = n
		}
	}

	if u := os.Getenv("TWIN_PROXY_URL"); u != "" {
		c.Client.ProxyURL = u
	}

	if level := os.Getenv("TWIN_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, ValidationError{"server.rate_limit_per_minute", "must not be negative"})
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, ValidationError{"server.rate_limit_burst", "must not be negative"})
	}

	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{"provider.base_url", fmt.Sprintf("invalid URL '%s'", c.Provider.BaseURL)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"provider.base_url", "scheme must be http or https"})
	}

	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, ValidationError{"provider.temperature", "must be between 0.0 and 2.0"})
	}
	if c.Provider.MaxTokens < 1 || c.Provider.MaxTokens > 128000 {
		errs = append(errs, ValidationError{"provider.max_tokens", "must be between 1 and 128000"})
	}
	if c.Provider.TimeoutSecs < 1 || c.Provider.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{"provider.timeout_secs", "must be between 1 and 600"})
	}
	if c.Provider.MaxMessages < 1 {
		errs = append(errs, ValidationError{"provider.max_messages", "must be at least 1"})
	}

	if u, err := url.Parse(c.Client.ProxyURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{"client.proxy_url", fmt.Sprintf("invalid URL '%s'", c.Client.ProxyURL)})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance. When nothing was set
// with SetGlobal, the default file is loaded on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.RLock()
		set := globalConfig != nil
		globalConfigMu.RUnlock()
		if set {
			return
		}

		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
