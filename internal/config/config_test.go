package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		ListenAddr: ":8080",
		LogFormat:  "json",
		LogLevel:   "info",
		Storage: StorageConfig{
			Driver:      "sqlite",
			TablePrefix: "archive",
			SQLite:      SQLiteConfig{Path: "weewx.sdb"},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid sqlite config", modify: func(*Config) {}},
		{
			name: "valid postgres config",
			modify: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Postgres.DSN = "postgres://localhost/weewx"
			},
		},
		{
			name: "valid mysql config",
			modify: func(c *Config) {
				c.Storage.Driver = "mysql"
				c.Storage.MySQL.DSN = "weewx:weewx@tcp(localhost:3306)/weewx"
			},
		},
		{name: "invalid driver", modify: func(c *Config) { c.Storage.Driver = "oracle" }, wantErr: true},
		{name: "sqlite missing path", modify: func(c *Config) { c.Storage.SQLite.Path = "" }, wantErr: true},
		{name: "postgres missing dsn", modify: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: true},
		{name: "mysql missing dsn", modify: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: true},
		{name: "bad table prefix", modify: func(c *Config) { c.Storage.TablePrefix = "archive; drop" }, wantErr: true},
		{name: "empty table prefix", modify: func(c *Config) { c.Storage.TablePrefix = "" }, wantErr: true},
		{name: "bad log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "chatty" }, wantErr: true},
		{name: "bad listen addr", modify: func(c *Config) { c.ListenAddr = "8080" }, wantErr: true},
		{
			name: "valid obs groups",
			modify: func(c *Config) {
				c.ObsGroups = []ObsGroup{{ObsType: "poolTemp", Group: "group_temperature"}}
			},
		},
		{
			name: "obs group bad type",
			modify: func(c *Config) {
				c.ObsGroups = []ObsGroup{{ObsType: "pool temp", Group: "group_temperature"}}
			},
			wantErr: true,
		},
		{
			name: "obs group bad group",
			modify: func(c *Config) {
				c.ObsGroups = []ObsGroup{{ObsType: "poolTemp", Group: "temperature"}}
			},
			wantErr: true,
		},
		{
			name: "obs group duplicate",
			modify: func(c *Config) {
				c.ObsGroups = []ObsGroup{
					{ObsType: "poolTemp", Group: "group_temperature"},
					{ObsType: "poolTemp", Group: "group_percent"},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
listen_addr: ":9090"
log_format: text
log_level: debug

storage:
  driver: sqlite
  table_prefix: weather
  sqlite:
    path: /var/lib/weewx/weewx.sdb
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.Storage.TablePrefix != "weather" {
		t.Errorf("table_prefix = %q, want weather", cfg.Storage.TablePrefix)
	}
	if cfg.DSN() != "/var/lib/weewx/weewx.sdb" {
		t.Errorf("DSN() = %q", cfg.DSN())
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
}

func TestLoad_ObsGroups(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  driver: sqlite
obs_groups:
  - obs_type: poolTemp
    group: group_temperature
  - obs_type: leafWet1
    group: group_percent
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []ObsGroup{
		{ObsType: "poolTemp", Group: "group_temperature"},
		{ObsType: "leafWet1", Group: "group_percent"},
	}
	if len(cfg.ObsGroups) != len(want) {
		t.Fatalf("ObsGroups = %+v, want %+v", cfg.ObsGroups, want)
	}
	for i := range want {
		if cfg.ObsGroups[i] != want[i] {
			t.Errorf("ObsGroups[%d] = %+v, want %+v", i, cfg.ObsGroups[i], want[i])
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_LeavesValidationToCaller(t *testing.T) {
	cfg, err := Load(writeConfig(t, `log_format: xml
storage:
  driver: sqlite
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject log_format xml")
	}
	cfg.LogFormat = "text"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate after override: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.LogFormat != "json" || cfg.Storage.TablePrefix != "archive" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level() = %v, want info", cfg.Level())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	cfgPath := writeConfig(t, `
storage:
  driver: postgres
  postgres:
    dsn: "postgres://placeholder/weewx"
`)
	t.Setenv("XAGGSD_STORAGE_POSTGRES_DSN", "postgres://secret@db/weewx")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DSN() != "postgres://secret@db/weewx" {
		t.Errorf("DSN() = %q, want env value", cfg.DSN())
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("XAGGSD_STORAGE_MYSQL_DSN=weewx:pw@tcp(db:3306)/weewx\n"), 0600); err != nil {
		t.Fatal(err)
	}
	orig := envFiles
	envFiles = []string{envPath, filepath.Join(dir, "missing.env")}
	t.Cleanup(func() { envFiles = orig })
	// godotenv sets the process environment; restore it afterwards.
	t.Setenv("XAGGSD_STORAGE_MYSQL_DSN", "")
	os.Unsetenv("XAGGSD_STORAGE_MYSQL_DSN")

	cfg, err := Load(writeConfig(t, "storage:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DSN() != "weewx:pw@tcp(db:3306)/weewx" {
		t.Errorf("DSN() = %q, want value from .env", cfg.DSN())
	}
}

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite", "/tmp/test.db"},
		{"postgres", "postgres://localhost/db"},
		{"mysql", "u:p@tcp(localhost:3306)/db"},
		{"oracle", ""},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := Config{Storage: StorageConfig{
				Driver:   tt.driver,
				SQLite:   SQLiteConfig{Path: "/tmp/test.db"},
				Postgres: PostgresConfig{DSN: "postgres://localhost/db"},
				MySQL:    MySQLConfig{DSN: "u:p@tcp(localhost:3306)/db"},
			}}
			if dsn := cfg.DSN(); dsn != tt.want {
				t.Errorf("DSN() = %q, want %q", dsn, tt.want)
			}
		})
	}
}
