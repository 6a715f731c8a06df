package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/open-xchange/drivesync/internal/server/drive"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "600-M"
	DefaultDBPath    = "drivesync.db"
)

type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	DB     DBConfig     `mapstructure:"db"`
	Links  LinksConfig  `mapstructure:"links"`
	Sync   drive.Config `mapstructure:"sync"`
	LogDir string       `mapstructure:"log_dir"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CertFile    string   `mapstructure:"cert_file"`
	KeyFile     string   `mapstructure:"key_file"`
	RateLimit   string   `mapstructure:"rate_limit"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TrustedProxies are the addresses or CIDRs allowed to set X-Forwarded-For.
	// None are trusted by default.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TLS reports whether the server terminates TLS itself.
func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LinksConfig struct {
	// BaseURL is the public URL files are linked from. Empty disables links.
	BaseURL string `mapstructure:"base_url"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:      DefaultAddr,
			RateLimit: DefaultRateLimit,
		},
		DB:   DBConfig{Path: DefaultDBPath},
		Sync: drive.DefaultConfig(),
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http `addr` is required")
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http `cert_file` and `key_file` must be set together")
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("http trusted proxy %q is neither an ip nor a cidr", proxy)
			}
		}
	}
	if c.DB.Path == "" {
		return errors.New("db `path` is required")
	}
	if c.Links.BaseURL != "" {
		u, err := url.Parse(c.Links.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("links `base_url` %q must be an absolute url", c.Links.BaseURL)
		}
	}
	return c.Sync.Validate()
}
