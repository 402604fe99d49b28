package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for xaggsd.
type Config struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	LogFormat  string        `mapstructure:"log_format"`
	LogLevel   string        `mapstructure:"log_level"`
	Storage    StorageConfig `mapstructure:"storage"`
	ObsGroups  []ObsGroup    `mapstructure:"obs_groups"`
}

// ObsGroup assigns an observation type the standard tables do not know, or
// override, to a unit group such as "group_temperature".
type ObsGroup struct {
	ObsType string `mapstructure:"obs_type"`
	Group   string `mapstructure:"group"`
}

// StorageConfig defines the database holding the archive and its daily
// summaries.
type StorageConfig struct {
	Driver      string         `mapstructure:"driver"` // "sqlite", "postgres" or "mysql"
	TablePrefix string         `mapstructure:"table_prefix"`
	SQLite      SQLiteConfig   `mapstructure:"sqlite"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	MySQL       MySQLConfig    `mapstructure:"mysql"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MySQLConfig holds MySQL/MariaDB-specific configuration.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// envFiles are loaded into the environment before configuration is read.
// Variables already set are not overridden.
var envFiles = []string{".env"}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $XAGGSD_CONFIG env → ~/.config/xaggsd/config.yaml → /etc/xaggsd/config.yaml
// The result is not validated; callers apply their overrides and then call
// Validate.
func Load(configPath string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults. Keys without a default are invisible to AutomaticEnv.
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.table_prefix", "archive")
	v.SetDefault("storage.sqlite.path", "weewx.sdb")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.mysql.dsn", "")

	// XAGGSD_STORAGE_POSTGRES_DSN and friends.
	v.SetEnvPrefix("XAGGSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("XAGGSD_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "xaggsd"))
		}
		v.AddConfigPath("/etc/xaggsd")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
		// DSNs may carry passwords.
		if info, err := os.Stat(cfgPath); err == nil {
			perm := info.Mode().Perm()
			if perm&0004 != 0 {
				slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	case "mysql":
		if c.Storage.MySQL.DSN == "" {
			return fmt.Errorf("storage.mysql.dsn is required for mysql driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite', 'postgres' or 'mysql', got %q", c.Storage.Driver)
	}

	if !identRe.MatchString(c.Storage.TablePrefix) {
		return fmt.Errorf("storage.table_prefix %q is not a valid table name", c.Storage.TablePrefix)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	seen := make(map[string]bool, len(c.ObsGroups))
	for i, og := range c.ObsGroups {
		if !identRe.MatchString(og.ObsType) {
			return fmt.Errorf("obs_groups[%d]: obs_type %q is not a valid column name", i, og.ObsType)
		}
		if !strings.HasPrefix(og.Group, "group_") {
			return fmt.Errorf("obs_groups[%d]: group %q must start with \"group_\"", i, og.Group)
		}
		if seen[og.ObsType] {
			return fmt.Errorf("obs_groups[%d]: obs_type %q listed twice", i, og.ObsType)
		}
		seen[og.ObsType] = true
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	case "mysql":
		return c.Storage.MySQL.DSN
	default:
		return ""
	}
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
