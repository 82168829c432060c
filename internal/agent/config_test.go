package agent

import (
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		IMAP: IMAPConfig{
			Host:     "imap.example.com",
			Port:     993,
			Secure:   true,
			User:     "me@example.com",
			Password: "secret",
			Mailbox:  "INBOX",
		},
		SMTP: SMTPConfig{
			Host:     "smtp.example.com",
			Port:     465,
			Secure:   true,
			User:     "me@example.com",
			Password: "secret",
		},
		Options: Options{
			MaxMessages:       50,
			UnsubscribeHTTP:   true,
			UnsubscribeMailto: true,
			ReplyToImportant:  true,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("accepts a complete configuration", func(t *testing.T) {
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})

	t.Run("rejects structural problems with a validation error", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{"empty imap host", func(c *Config) { c.IMAP.Host = "" }},
			{"zero imap port", func(c *Config) { c.IMAP.Port = 0 }},
			{"missing imap user", func(c *Config) { c.IMAP.User = "" }},
			{"missing imap password", func(c *Config) { c.IMAP.Password = "" }},
			{"empty mailbox", func(c *Config) { c.IMAP.Mailbox = "" }},
			{"zero max messages", func(c *Config) { c.Options.MaxMessages = 0 }},
			{"negative max messages", func(c *Config) { c.Options.MaxMessages = -3 }},
			{"excessive max messages", func(c *Config) { c.Options.MaxMessages = 501 }},
			{"missing smtp host", func(c *Config) { c.SMTP.Host = "" }},
			{"missing smtp password", func(c *Config) { c.SMTP.Password = "" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := validConfig()
				tt.mutate(&cfg)

				err := cfg.Validate()
				if err == nil {
					t.Fatal("Expected validation error, got nil")
				}

				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Errorf("Expected *ValidationError, got %T", err)
				}
			})
		}
	})

	t.Run("ignores the send endpoint when no action can send", func(t *testing.T) {
		cfg := validConfig()
		cfg.SMTP = SMTPConfig{}
		cfg.Options.UnsubscribeMailto = false
		cfg.Options.ReplyToImportant = false

		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config without send endpoint, got: %v", err)
		}
	})

	t.Run("ignores the send endpoint in dry-run", func(t *testing.T) {
		cfg := validConfig()
		cfg.SMTP = SMTPConfig{}
		cfg.Options.DryRun = true

		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid dry-run config without send endpoint, got: %v", err)
		}
	})
}
