package agent

// MaxMessagesLimit caps the per-run fetch window.
const MaxMessagesLimit = 500

// IMAPConfig locates and authenticates the retrieval session.
type IMAPConfig struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
	Mailbox  string
}

// SMTPConfig locates and authenticates the send session.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
}

// Options are the behavior toggles and limits for one run.
type Options struct {
	DryRun            bool
	MaxMessages       int
	UnsubscribeHTTP   bool
	UnsubscribeMailto bool
	ReplyToImportant  bool
}

// Config is the validated configuration for a single run. It is immutable
// for the duration of the run and never outlives it; credentials are not
// persisted anywhere.
type Config struct {
	IMAP    IMAPConfig
	SMTP    SMTPConfig
	Options Options
}

// Validate checks the configuration for structural problems. It returns a
// *ValidationError so callers can distinguish bad input from runtime
// failures. The send endpoint is only validated when some enabled action
// could use it.
func (c *Config) Validate() error {
	if c.IMAP.Host == "" {
		return &ValidationError{Field: "imap.host", Reason: "must not be empty"}
	}
	if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
		return &ValidationError{Field: "imap.port", Reason: "must be in 1-65535"}
	}
	if c.IMAP.User == "" {
		return &ValidationError{Field: "imap.user", Reason: "must not be empty"}
	}
	if c.IMAP.Password == "" {
		return &ValidationError{Field: "imap.password", Reason: "must not be empty"}
	}
	if c.IMAP.Mailbox == "" {
		return &ValidationError{Field: "imap.mailbox", Reason: "must not be empty"}
	}

	if c.Options.MaxMessages <= 0 {
		return &ValidationError{Field: "options.maxMessages", Reason: "must be positive"}
	}
	if c.Options.MaxMessages > MaxMessagesLimit {
		return &ValidationError{Field: "options.maxMessages", Reason: "must not exceed 500"}
	}

	if c.needsSendSession() {
		if c.SMTP.Host == "" {
			return &ValidationError{Field: "smtp.host", Reason: "must not be empty"}
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return &ValidationError{Field: "smtp.port", Reason: "must be in 1-65535"}
		}
		if c.SMTP.User == "" {
			return &ValidationError{Field: "smtp.user", Reason: "must not be empty"}
		}
		if c.SMTP.Password == "" {
			return &ValidationError{Field: "smtp.password", Reason: "must not be empty"}
		}
	}

	return nil
}

// needsSendSession reports whether any enabled action could dispatch mail.
// Dry-run suppresses the send session entirely - the send endpoint must not
// observe so much as a connection attempt.
func (c *Config) needsSendSession() bool {
	if c.Options.DryRun {
		return false
	}
	return c.Options.UnsubscribeMailto || c.Options.ReplyToImportant
}
