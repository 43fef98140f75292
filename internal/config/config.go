// Package config loads the unibox configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GmailAccount configures one Gmail account. CredentialsDir must hold the
// credentials.json / token.json pair.
type GmailAccount struct {
	// Name distinguishes multiple Gmail accounts; empty for a single one.
	Name           string `mapstructure:"name" yaml:"name"`
	CredentialsDir string `mapstructure:"credentials_dir" yaml:"credentials_dir"`
}

// AccountID returns the provider account string for this entry.
func (g GmailAccount) AccountID() string {
	if g.Name == "" {
		return "gmail"
	}
	return "gmail:" + g.Name
}

// OutlookAccount configures the Outlook/Graph account.
type OutlookAccount struct {
	ClientID  string `mapstructure:"client_id" yaml:"client_id"`
	Tenant    string `mapstructure:"tenant" yaml:"tenant"`
	TokenPath string `mapstructure:"token_path" yaml:"token_path"`
}

// IMAPAccount configures one IMAP account.
type IMAPAccount struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// AccountID returns the provider account string for this entry.
func (i IMAPAccount) AccountID() string {
	return "imap:" + i.Username
}

// Config is the top-level unibox configuration.
type Config struct {
	DBPath  string          `mapstructure:"db" yaml:"db"`
	Listen  string          `mapstructure:"listen" yaml:"listen"`
	Gmail   []GmailAccount  `mapstructure:"gmail" yaml:"gmail"`
	Outlook *OutlookAccount `mapstructure:"outlook" yaml:"outlook"`
	IMAP    []IMAPAccount   `mapstructure:"imap" yaml:"imap"`
}

// DefaultPath returns ~/.config/unibox/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "unibox", "config.yaml")
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	dataDir := "."
	if err == nil {
		dataDir = filepath.Join(home, ".local", "share", "unibox")
	}
	return &Config{
		DBPath: filepath.Join(dataDir, "unibox.db"),
		Listen: "127.0.0.1:5002",
	}
}

// Load reads the configuration from path. A missing file yields the
// default configuration rather than an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultConfig()
	v.SetDefault("db", defaults.DBPath)
	v.SetDefault("listen", defaults.Listen)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.IMAP {
		if cfg.IMAP[i].Port == "" {
			cfg.IMAP[i].Port = "993"
		}
	}
	if cfg.Outlook != nil && cfg.Outlook.Tenant == "" {
		cfg.Outlook.Tenant = "consumers"
	}

	return cfg, nil
}

// AccountIDs enumerates the provider account strings of every configured
// account, in gmail, outlook, imap order.
func (c *Config) AccountIDs() []string {
	var ids []string
	for _, g := range c.Gmail {
		ids = append(ids, g.AccountID())
	}
	if c.Outlook != nil {
		ids = append(ids, "outlook")
	}
	for _, i := range c.IMAP {
		ids = append(ids, i.AccountID())
	}
	return ids
}
