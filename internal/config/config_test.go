package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsMissingHeloName(t *testing.T) {
	cfg := Default()
	cfg.HeloName = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty helo_name")
	}
}

func TestValidateRejectsMissingMailFrom(t *testing.T) {
	cfg := Default()
	cfg.MailFrom = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty mail_from")
	}
}

func TestValidateRejectsEmptyPorts(t *testing.T) {
	cfg := Default()
	cfg.SMTP.Ports = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty port list")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.SMTP.Ports = []int{25, 70000}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"smtp timeout", func(c *Config) { c.SMTP.Timeout = "fifteen" }},
		{"dns timeout", func(c *Config) { c.DNS.Timeout = "soon" }},
		{"cache ttl", func(c *Config) { c.Cache.TTL = "30 days" }},
		{"refresh interval", func(c *Config) { c.Refresh.Interval = "1 minute" }},
	} {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error for invalid duration", tc.name)
		}
	}
}

func TestValidateMetricsRequiresAddress(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for enabled metrics without address")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	if got := cfg.SMTP.SMTPTimeout(); got != 15*time.Second {
		t.Errorf("SMTPTimeout() = %v, want 15s", got)
	}
	if got := cfg.Cache.CacheTTL(); got != 30*24*time.Hour {
		t.Errorf("CacheTTL() = %v, want 720h", got)
	}
	if got := cfg.Refresh.RefreshInterval(); got != time.Minute {
		t.Errorf("RefreshInterval() = %v, want 1m", got)
	}

	// Invalid values fall back to defaults.
	cfg.SMTP.Timeout = "nonsense"
	if got := cfg.SMTP.SMTPTimeout(); got != 15*time.Second {
		t.Errorf("SMTPTimeout() with invalid value = %v, want 15s", got)
	}
}
