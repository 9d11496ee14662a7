package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	Hostname   string
	LogLevel   string
	HeloName   string
	MailFrom   string
	HTTPListen string
	RedisAddr  string
	Timeout    string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./everify.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Server hostname")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.HeloName, "helo-name", "", "Hostname sent in EHLO")
	flag.StringVar(&f.MailFrom, "mail-from", "", "Envelope sender used in MAIL FROM")
	flag.StringVar(&f.HTTPListen, "listen", "", "HTTP API listen address")
	flag.StringVar(&f.RedisAddr, "redis-addr", "", "Redis address for the verdict cache")
	flag.StringVar(&f.Timeout, "smtp-timeout", "", "Per-socket SMTP timeout (e.g. 15s)")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default values.
	fileConfig := FileConfig{Everify: cfg}
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return fileConfig.Everify, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-empty flag values override config file and environment values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.HeloName != "" {
		cfg.HeloName = f.HeloName
	}

	if f.MailFrom != "" {
		cfg.MailFrom = f.MailFrom
	}

	if f.HTTPListen != "" {
		cfg.HTTP.Address = f.HTTPListen
	}

	if f.RedisAddr != "" {
		cfg.Cache.RedisAddr = f.RedisAddr
	}

	if f.Timeout != "" {
		cfg.SMTP.Timeout = f.Timeout
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies environment and flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}
