// Package config provides configuration management for the email verifier.
package config

import (
	"errors"
	"fmt"
	"time"
)

// FileConfig is the top-level wrapper for the configuration file.
// Keeping the verifier under its own table allows the file to be shared
// with other services.
type FileConfig struct {
	Everify Config `toml:"everify"`
}

// Config holds the complete verifier configuration.
type Config struct {
	Hostname string `toml:"hostname"`
	LogLevel string `toml:"log_level"`

	// HeloName is the hostname sent in the EHLO command.
	HeloName string `toml:"helo_name"`
	// MailFrom is the envelope sender used in the MAIL FROM command.
	MailFrom string `toml:"mail_from"`

	SMTP    SMTPConfig    `toml:"smtp"`
	DNS     DNSConfig     `toml:"dns"`
	Cache   CacheConfig   `toml:"cache"`
	Refresh RefreshConfig `toml:"refresh"`
	HTTP    HTTPConfig    `toml:"http"`
	Metrics MetricsConfig `toml:"metrics"`
	Lists   ListsConfig   `toml:"lists"`
}

// SMTPConfig controls the probe sessions.
type SMTPConfig struct {
	// Timeout bounds every connect, read and write on a probe socket.
	Timeout string `toml:"timeout"`
	// Ports are the candidate ports raced for each probe.
	Ports []int `toml:"ports"`
}

// DNSConfig controls MX resolution.
type DNSConfig struct {
	// Server is the DNS server address ("host:port"). Empty means the
	// first server from /etc/resolv.conf.
	Server  string `toml:"server"`
	Timeout string `toml:"timeout"`
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	// TTL is how long a cached verdict is served before re-probing.
	TTL           string `toml:"ttl"`
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	RedisPassword string `toml:"redis_password"`
}

// RefreshConfig controls the background refresh driver.
type RefreshConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// HTTPConfig controls the HTTP API server.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	// BatchWorkers bounds the worker pool used by the async batch endpoint.
	BatchWorkers int `toml:"batch_workers"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// ListsConfig holds the three domain lists. Each list may be given inline
// and/or as a file with one domain per line ('#' starts a comment).
type ListsConfig struct {
	Whitelist      []string `toml:"whitelist"`
	Disposable     []string `toml:"disposable"`
	Blacklist      []string `toml:"blacklist"`
	WhitelistFile  string   `toml:"whitelist_file"`
	DisposableFile string   `toml:"disposable_file"`
	BlacklistFile  string   `toml:"blacklist_file"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		LogLevel: "info",
		HeloName: "validator.com",
		MailFrom: "validator@validator.com",
		SMTP: SMTPConfig{
			Timeout: "15s",
			Ports:   []int{25, 587, 465},
		},
		DNS: DNSConfig{
			Timeout: "5s",
		},
		Cache: CacheConfig{
			TTL:       "720h", // 30 days
			RedisAddr: "localhost:6379",
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: "60s",
		},
		HTTP: HTTPConfig{
			Enabled:      true,
			Address:      ":8025",
			BatchWorkers: 10,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if c.HeloName == "" {
		return errors.New("helo_name is required")
	}

	if c.MailFrom == "" {
		return errors.New("mail_from is required")
	}

	if len(c.SMTP.Ports) == 0 {
		return errors.New("at least one SMTP port is required")
	}
	for _, p := range c.SMTP.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid SMTP port %d", p)
		}
	}

	if c.SMTP.Timeout != "" {
		if _, err := time.ParseDuration(c.SMTP.Timeout); err != nil {
			return fmt.Errorf("invalid smtp timeout: %w", err)
		}
	}

	if c.DNS.Timeout != "" {
		if _, err := time.ParseDuration(c.DNS.Timeout); err != nil {
			return fmt.Errorf("invalid dns timeout: %w", err)
		}
	}

	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl: %w", err)
		}
	}

	if c.Refresh.Interval != "" {
		if _, err := time.ParseDuration(c.Refresh.Interval); err != nil {
			return fmt.Errorf("invalid refresh interval: %w", err)
		}
	}

	if c.HTTP.Enabled {
		if c.HTTP.Address == "" {
			return errors.New("http address is required when the HTTP API is enabled")
		}
		if c.HTTP.BatchWorkers <= 0 {
			return errors.New("batch_workers must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// SMTPTimeout returns the probe socket timeout as a time.Duration.
// Returns 15 seconds if not configured or invalid.
func (c *SMTPConfig) SMTPTimeout() time.Duration {
	if c.Timeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// DNSTimeout returns the DNS exchange timeout as a time.Duration.
// Returns 5 seconds if not configured or invalid.
func (c *DNSConfig) DNSTimeout() time.Duration {
	if c.Timeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// CacheTTL returns the verdict cache TTL as a time.Duration.
// Returns 30 days if not configured or invalid.
func (c *CacheConfig) CacheTTL() time.Duration {
	if c.TTL == "" {
		return 30 * 24 * time.Hour
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return d
}

// RefreshInterval returns the refresh driver cadence as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *RefreshConfig) RefreshInterval() time.Duration {
	if c.Interval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return time.Minute
	}
	return d
}
