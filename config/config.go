// Package config loads and persists waops configuration using Viper.
//
// Configuration lives in a single waops.toml file. The email and server
// sections are mutable at runtime through the HTTP settings endpoints
// and are written back to the same file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/klchiu/waops/errors"
)

// Config is the full waops configuration tree.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Session  SessionConfig `mapstructure:"session"`
	Email    EmailConfig   `mapstructure:"email"`
	DataDir  string        `mapstructure:"data_dir"`
	Timezone string        `mapstructure:"timezone"`
}

// ServerConfig configures the HTTP dashboard surface.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// SessionConfig configures the messaging-session bridge.
type SessionConfig struct {
	BridgeURL string `mapstructure:"bridge_url"`
}

// EmailConfig configures outbound alert email.
type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled" json:"enabled"`
	Address string     `mapstructure:"address" json:"email"`
	SMTP    SMTPConfig `mapstructure:"smtp" json:"smtp"`
}

// SMTPConfig holds SMTP transport settings for alert email.
type SMTPConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}

// Location resolves the configured timezone. Falls back to UTC when the
// zone cannot be loaded so scheduling still works.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "http://localhost:3001")
	v.SetDefault("server.port", 3001)
	v.SetDefault("data_dir", ".")
	v.SetDefault("timezone", "Asia/Hong_Kong")

	v.SetDefault("session.bridge_url", "http://localhost:3002")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.address", "")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
}

// NewViper builds a Viper instance bound to the given config file path
// (created on first save if missing), with environment overrides under
// the WAOPS_ prefix.
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.SetEnvPrefix("WAOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// Load reads configuration from the given file. A missing file is not an
// error: defaults apply and the file is created on first persisted change.
func Load(configPath string) (*Config, *viper.Viper, error) {
	v := NewViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, v, nil
}

// Persist writes the current Viper state back to its config file,
// creating the parent directory when needed.
func Persist(v *viper.Viper) error {
	path := v.ConfigFileUsed()
	if path == "" {
		return errors.New("no config file bound")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// SetEmail updates the email section in Viper and persists it.
func SetEmail(v *viper.Viper, email EmailConfig) error {
	v.Set("email.enabled", email.Enabled)
	v.Set("email.address", email.Address)
	v.Set("email.smtp.host", email.SMTP.Host)
	v.Set("email.smtp.port", email.SMTP.Port)
	v.Set("email.smtp.username", email.SMTP.Username)
	v.Set("email.smtp.password", email.SMTP.Password)
	return Persist(v)
}

// SetServerHost updates the dashboard host setting and persists it.
func SetServerHost(v *viper.Viper, host string) error {
	v.Set("server.host", host)
	return Persist(v)
}
