package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pastebox/internal/perm"

	"github.com/spf13/viper"
)

const (
	DefaultAddr        = "127.0.0.1:5000"
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB
	DefaultImageWidth  = 800
	DefaultStyle       = "friendly"
)

// Config is the pastebox configuration (config.toml + PASTEBOX_* env vars).
type Config struct {
	Dir                string            `mapstructure:"dir"`
	Addr               string            `mapstructure:"addr"`
	BaseURL            string            `mapstructure:"base_url"`
	SiteName           string            `mapstructure:"site_name"`
	Motd               string            `mapstructure:"motd"`
	MaxBodySize        int64             `mapstructure:"max_body_size"`
	DefaultPermissions string            `mapstructure:"default_permissions"`
	Permissions        []PermissionGrant `mapstructure:"permissions"`
	HighlightStyle     string            `mapstructure:"highlight_style"`
	ImageWidth         int               `mapstructure:"image_width"`
	LogFile            string            `mapstructure:"log_file"`
}

// PermissionGrant is one [[permissions]] table. Secrets live in a list rather
// than a map because viper lower-cases map keys.
type PermissionGrant struct {
	Secret string `mapstructure:"secret"`
	Grants string `mapstructure:"grants"`
}

// Dir returns the pastebox config directory.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); v != "" {
		return filepath.Join(v, "pastebox"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pastebox"), nil
}

// DefaultDataDir is where items are stored when no dir is configured.
func DefaultDataDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); v != "" {
		return filepath.Join(v, "pastebox"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "pastebox"), nil
}

// Load reads configuration from path (or the default location when empty) and
// the environment. A missing config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("dir", "")
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("base_url", "")
	v.SetDefault("site_name", "pastebox")
	v.SetDefault("motd", "")
	v.SetDefault("max_body_size", DefaultMaxBodySize)
	v.SetDefault("default_permissions", string(perm.Read))
	v.SetDefault("highlight_style", DefaultStyle)
	v.SetDefault("image_width", DefaultImageWidth)
	v.SetDefault("log_file", "")

	v.SetConfigType("toml")

	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PASTEBOX_CONFIG"))
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return Config{}, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PASTEBOX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Only the default location may be absent.
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.normalize()
	return c, nil
}

func (c *Config) normalize() {
	c.Dir = strings.TrimSpace(c.Dir)
	c.Addr = strings.TrimSpace(c.Addr)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.ImageWidth <= 0 {
		c.ImageWidth = DefaultImageWidth
	}
	if strings.TrimSpace(c.HighlightStyle) == "" {
		c.HighlightStyle = DefaultStyle
	}
}

// DataDir returns the configured storage directory or the default one.
func (c Config) DataDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	return DefaultDataDir()
}

// Policy builds the permission policy described by the config.
func (c Config) Policy() perm.Policy {
	grants := make([]perm.Grant, 0, len(c.Permissions))
	for _, g := range c.Permissions {
		grants = append(grants, perm.Grant{Secret: g.Secret, Grants: g.Grants})
	}
	return perm.NewPolicy(c.DefaultPermissions, grants)
}
