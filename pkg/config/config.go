// Package config loads decipher settings from an optional TOML file, an
// optional .env file and DECIPHER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is read when no file is named explicitly.
const DefaultPath = "decipher.toml"

// Config holds the complete configuration
type Config struct {
	Interpreter InterpreterConfig `toml:"interpreter"`
	Log         LogConfig         `toml:"log"`
	Playground  PlaygroundConfig  `toml:"playground"`
}

type InterpreterConfig struct {
	Scoping      string `toml:"scoping"`
	MaxCallDepth int    `toml:"max_call_depth"`
	ReadPrompt   string `toml:"read_prompt"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	NoColor bool   `toml:"no_color"`
}

// PlaygroundConfig holds the websocket playground settings. An empty
// JWTSecret disables authentication. A zero CacheSize means the default of
// 128; a negative one disables the analyzed-program cache.
type PlaygroundConfig struct {
	Addr         string   `toml:"addr"`
	JWTSecret    string   `toml:"jwt_secret"`
	PasswordHash string   `toml:"password_hash"`
	TokenTTL     Duration `toml:"token_ttl"`
	RunTimeout   Duration `toml:"run_timeout"`
	CacheSize    int      `toml:"cache_size"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load builds the configuration: defaults, then the TOML file, then the
// environment (after loading .env when present). An empty path falls back
// to DefaultPath, which may be missing; a named file must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Interpreter.Scoping == "" {
		c.Interpreter.Scoping = "copy"
	}
	if c.Interpreter.MaxCallDepth == 0 {
		c.Interpreter.MaxCallDepth = 1000
	}
	if c.Interpreter.ReadPrompt == "" {
		c.Interpreter.ReadPrompt = "? "
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Playground.Addr == "" {
		c.Playground.Addr = ":8080"
	}
	if c.Playground.TokenTTL.Duration == 0 {
		c.Playground.TokenTTL.Duration = time.Hour
	}
	if c.Playground.RunTimeout.Duration == 0 {
		c.Playground.RunTimeout.Duration = 5 * time.Second
	}
	if c.Playground.CacheSize == 0 {
		c.Playground.CacheSize = 128
	}
}

// expandEnvVars expands environment variables in secret values
func (c *Config) expandEnvVars() {
	c.Playground.JWTSecret = os.ExpandEnv(c.Playground.JWTSecret)
	c.Playground.PasswordHash = os.ExpandEnv(c.Playground.PasswordHash)
}

// applyEnv overrides file values with DECIPHER_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("DECIPHER_SCOPING"); v != "" {
		c.Interpreter.Scoping = v
	}
	if v := os.Getenv("DECIPHER_MAX_CALL_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DECIPHER_MAX_CALL_DEPTH: %w", err)
		}
		c.Interpreter.MaxCallDepth = n
	}
	if v := os.Getenv("DECIPHER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DECIPHER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("DECIPHER_NO_COLOR"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DECIPHER_NO_COLOR: %w", err)
		}
		c.Log.NoColor = b
	}
	if v := os.Getenv("DECIPHER_ADDR"); v != "" {
		c.Playground.Addr = v
	}
	if v := os.Getenv("DECIPHER_JWT_SECRET"); v != "" {
		c.Playground.JWTSecret = v
	}
	if v := os.Getenv("DECIPHER_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DECIPHER_RUN_TIMEOUT: %w", err)
		}
		c.Playground.RunTimeout.Duration = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Interpreter.Scoping) {
	case "copy", "lexical":
	default:
		return fmt.Errorf("interpreter.scoping: unknown mode %q (want copy or lexical)", c.Interpreter.Scoping)
	}
	if c.Interpreter.MaxCallDepth <= 0 {
		return fmt.Errorf("interpreter.max_call_depth must be positive, got %d", c.Interpreter.MaxCallDepth)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", c.Log.Format)
	}
	if c.Playground.RunTimeout.Duration < 0 || c.Playground.TokenTTL.Duration < 0 {
		return fmt.Errorf("playground durations must not be negative")
	}
	if c.Playground.PasswordHash != "" && c.Playground.JWTSecret == "" {
		return fmt.Errorf("playground.password_hash requires playground.jwt_secret")
	}
	return nil
}
