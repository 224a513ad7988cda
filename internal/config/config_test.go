package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gravel.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Database.Host)
	}
	if len(cfg.Entities) != 3 {
		t.Errorf("Entities = %d, want 3", len(cfg.Entities))
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  database: landing
entities:
  - name: order
    watch_dir: /srv/drops/order
    patterns: ["*.csv"]
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Host = %q", cfg.Database.Host)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Port = %d", cfg.Database.Port)
	}
	// File-provided entity lists replace the defaults entirely
	if len(cfg.Entities) != 1 || cfg.Entities[0].Name != "order" {
		t.Errorf("Entities = %+v", cfg.Entities)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	// Unset fields keep their defaults
	if cfg.Database.User != "gravel" {
		t.Errorf("User = %q, want default", cfg.Database.User)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "pg.example.com")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("POSTGRES_DB", "warehouse")
	t.Setenv("POSTGRES_USER", "loader")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "pg.example.com" {
		t.Errorf("Host = %q", cfg.Database.Host)
	}
	if cfg.Database.Port != 15432 {
		t.Errorf("Port = %d", cfg.Database.Port)
	}
	if cfg.Database.Database != "warehouse" {
		t.Errorf("Database = %q", cfg.Database.Database)
	}
	if cfg.Database.User != "loader" {
		t.Errorf("User = %q", cfg.Database.User)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("Password = %q", cfg.Database.Password)
	}
}

func TestLoad_PatternsDefaultToCSV(t *testing.T) {
	path := writeConfig(t, `
entities:
  - name: order
    watch_dir: /srv/drops/order
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Entities) != 1 {
		t.Fatalf("Entities = %d, want 1", len(cfg.Entities))
	}
	got := cfg.Entities[0].Patterns
	if len(got) != 1 || got[0] != "*.csv" {
		t.Errorf("Patterns = %v, want [*.csv]", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown entity",
			mutate:  func(c *Config) { c.Entities[0].Name = "invoice" },
			wantErr: true,
		},
		{
			name: "duplicate entity",
			mutate: func(c *Config) {
				c.Entities = append(c.Entities, c.Entities[0])
			},
			wantErr: true,
		},
		{
			name:    "missing watch dir",
			mutate:  func(c *Config) { c.Entities[0].WatchDir = "" },
			wantErr: true,
		},
		{
			name:    "no entities",
			mutate:  func(c *Config) { c.Entities = nil },
			wantErr: true,
		},
		{
			name:    "no patterns",
			mutate:  func(c *Config) { c.Entities[0].Patterns = nil },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	cfg := Default()
	url := cfg.DatabaseConfig().URL()
	want := "host=localhost port=5432 user=gravel password=gravel dbname=gravel sslmode=disable"
	if url != want {
		t.Errorf("URL() = %q, want %q", url, want)
	}
}
