/*
Package config loads service configuration.

PURPOSE:
  One TOML file drives the whole service: HTTP binding, database path,
  logging, and the Ink spending rules. Defaults cover local development,
  so a missing file is not an error. Environment variables override the
  file for container deployments.

PRECEDENCE (lowest to highest):
  1. Defaults()
  2. TOML file (path from the -config flag)
  3. INK_* environment variables

EXAMPLE (ink.toml):
  [server]
  host = "0.0.0.0"
  port = 8080

  [database]
  path = "./data/ink.db"

  [ink]
  welcome_bonus = 100
  daily_free_cap = 5
  monthly_free_cap = 50

  [log]
  level = "info"
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Ink      InkConfig      `toml:"ink"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database path. ":memory:" for ephemeral runs.
	Path string `toml:"path"`
}

type InkConfig struct {
	WelcomeBonus   int64 `toml:"welcome_bonus"`
	DailyFreeCap   int   `toml:"daily_free_cap"`
	MonthlyFreeCap int   `toml:"monthly_free_cap"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Defaults returns the local-development configuration.
func Defaults() Config {
	return Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Path: "ink.db"},
		Ink:      InkConfig{WelcomeBonus: 100, DailyFreeCap: 5, MonthlyFreeCap: 50},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path over Defaults, then applies environment
// overrides. An empty path or a missing file yields defaults + env.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Ink.WelcomeBonus < 0 {
		return fmt.Errorf("config: welcome_bonus must not be negative")
	}
	if c.Ink.DailyFreeCap < 0 || c.Ink.MonthlyFreeCap < 0 {
		return fmt.Errorf("config: free caps must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("INK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INK_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("INK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INK_WELCOME_BONUS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ink.WelcomeBonus = n
		}
	}
	if v := os.Getenv("INK_DAILY_FREE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ink.DailyFreeCap = n
		}
	}
	if v := os.Getenv("INK_MONTHLY_FREE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ink.MonthlyFreeCap = n
		}
	}
}
