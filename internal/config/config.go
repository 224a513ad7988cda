// Package config loads gravel configuration from a YAML file with
// environment variable overrides for database credentials.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/marshallshelly/gravel/internal/catalog"
	"github.com/marshallshelly/gravel/internal/database"
)

// Config holds all gravel configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Entities []EntityConfig `yaml:"entities"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// EntityConfig configures one watched entity.
type EntityConfig struct {
	Name      string   `yaml:"name"`
	WatchDir  string   `yaml:"watch_dir"`
	Patterns  []string `yaml:"patterns"`
	Recursive bool     `yaml:"recursive"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration matching the compose file, with all
// three entities watching subdirectories of ./data.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "gravel",
			User:     "gravel",
			Password: "gravel",
			SSLMode:  "disable",
			MaxConns: 5,
			MinConns: 1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
	for _, name := range catalog.Names() {
		cfg.Entities = append(cfg.Entities, EntityConfig{
			Name:     name,
			WatchDir: "./data/" + name,
			Patterns: []string{"*.csv"},
		})
	}
	return cfg
}

// Load reads configuration from a YAML file, applies environment
// overrides, and validates the result. An empty path loads defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Reset the default entity list; a file that names entities
		// owns the whole list.
		fromFile := &Config{}
		if err := yaml.Unmarshal(data, fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		merge(cfg, fromFile)
	}

	cfg.applyEnv()

	// An entity without patterns watches for CSV drops.
	for i := range cfg.Entities {
		if len(cfg.Entities[i].Patterns) == 0 {
			cfg.Entities[i].Patterns = []string{"*.csv"}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func merge(dst, src *Config) {
	if src.Database.Host != "" {
		dst.Database.Host = src.Database.Host
	}
	if src.Database.Port != 0 {
		dst.Database.Port = src.Database.Port
	}
	if src.Database.Database != "" {
		dst.Database.Database = src.Database.Database
	}
	if src.Database.User != "" {
		dst.Database.User = src.Database.User
	}
	if src.Database.Password != "" {
		dst.Database.Password = src.Database.Password
	}
	if src.Database.SSLMode != "" {
		dst.Database.SSLMode = src.Database.SSLMode
	}
	if src.Database.MaxConns != 0 {
		dst.Database.MaxConns = src.Database.MaxConns
	}
	if src.Database.MinConns != 0 {
		dst.Database.MinConns = src.Database.MinConns
	}
	if len(src.Entities) > 0 {
		dst.Entities = src.Entities
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
}

// applyEnv overrides database settings from the environment. The names
// match the compose file's postgres service.
func (c *Config) applyEnv() {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		c.Database.Database = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}

// Validate checks entity names and watch settings.
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("no entities configured")
	}

	seen := make(map[string]bool)
	for _, e := range c.Entities {
		if _, err := catalog.Lookup(e.Name); err != nil {
			return fmt.Errorf("invalid entity config: %w", err)
		}
		if seen[e.Name] {
			return fmt.Errorf("entity %q configured twice", e.Name)
		}
		seen[e.Name] = true

		if e.WatchDir == "" {
			return fmt.Errorf("entity %q has no watch_dir", e.Name)
		}
		if len(e.Patterns) == 0 {
			return fmt.Errorf("entity %q has no file patterns; nothing would match", e.Name)
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}

	return nil
}

// DatabaseConfig converts the YAML settings into the database package's
// config type.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Database,
		User:     c.Database.User,
		Password: c.Database.Password,
		SSLMode:  c.Database.SSLMode,
		MaxConns: c.Database.MaxConns,
		MinConns: c.Database.MinConns,
	}
}

// Entity returns the configuration for a named entity, if present.
func (c *Config) Entity(name string) (EntityConfig, bool) {
	for _, e := range c.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityConfig{}, false
}
