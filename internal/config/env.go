package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over the TOML config but are
// overridden by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("EVERIFY_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("EVERIFY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EVERIFY_HELO_NAME"); v != "" {
		cfg.HeloName = v
	}
	if v := os.Getenv("EVERIFY_MAIL_FROM"); v != "" {
		cfg.MailFrom = v
	}
	if v := os.Getenv("EVERIFY_SMTP_TIMEOUT"); v != "" {
		cfg.SMTP.Timeout = v
	}
	if v := os.Getenv("EVERIFY_DNS_SERVER"); v != "" {
		cfg.DNS.Server = v
	}
	if v := os.Getenv("EVERIFY_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("EVERIFY_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("EVERIFY_HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	return cfg
}
