package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mangashelf/pkg/database"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type SyncConfig struct {
	TCPAddr string `mapstructure:"tcp_addr"`
}

type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// bcrypt hash of the owner password; see `shelf auth hash-password`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer"`
	JWTDuration  time.Duration `mapstructure:"jwt_duration"`
}

type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	// HH:MM in local time
	Times []string `mapstructure:"times"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DB returns the database config for the loaded settings.
func (c *Config) DB() database.Config {
	return database.Config{Path: c.Database.Path}
}

// Load reads configFile (or mangashelf.yaml from the usual places) and
// applies defaults and MANGASHELF_* environment overrides.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mangashelf")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mangashelf")
	}

	dbDefault := database.DefaultConfig()
	v.SetDefault("database.path", dbDefault.Path)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("sync.tcp_addr", ":7070")
	v.SetDefault("auth.enabled", false)
	// dev default (change for real use)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "mangashelf")
	v.SetDefault("auth.jwt_duration", 24*time.Hour)
	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.dir", filepath.Join(filepath.Dir(dbDefault.Path), "backups"))
	v.SetDefault("backup.times", []string{"00:00", "12:00"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("MANGASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// historical names kept for docker-compose setups
	if err := v.BindEnv("database.path", "MANGASHELF_DB_PATH", "MANGASHELF_DATABASE_PATH"); err != nil {
		return nil, fmt.Errorf("bind MANGASHELF_DB_PATH: %w", err)
	}
	if err := v.BindEnv("auth.jwt_secret", "MANGASHELF_JWT_SECRET", "MANGASHELF_AUTH_JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("bind MANGASHELF_JWT_SECRET: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	return &cfg, nil
}
