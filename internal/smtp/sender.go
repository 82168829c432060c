package smtp

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const commandTimeout = 30 * time.Second

// Options are the per-message extras beyond the plain text body.
type Options struct {
	// InReplyTo threads the message under the given Message-ID. References
	// is set alongside it.
	InReplyTo string
}

// Sender holds one authenticated SMTP session. Sends are serialized on the
// session since most servers rate-limit concurrent authenticated
// connections.
type Sender struct {
	mu     sync.Mutex
	client *smtp.Client
	from   string
}

// Dial opens and authenticates a send session.
// secure: true for implicit TLS (port 465), false for plain TCP (tests).
func Dial(host string, port int, secure bool, username, password string) (*Sender, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	var c *smtp.Client
	var err error
	if secure {
		c, err = smtp.DialTLS(addr, nil)
	} else {
		c, err = smtp.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.CommandTimeout = commandTimeout
	c.SubmissionTimeout = commandTimeout

	if err := c.Auth(sasl.NewPlainClient("", username, password)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return &Sender{client: c, from: username}, nil
}

// Send transmits a plain-text message to a single recipient over the held
// session.
func (s *Sender) Send(to, subject, body string, opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Mail(s.from, nil); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := s.client.Rcpt(to, nil); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(buildMessage(s.from, to, subject, body, opts)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return nil
}

// From returns the authenticated sender address.
func (s *Sender) From() string {
	return s.from
}

// Close ends the session. Quit failures fall back to closing the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Quit(); err != nil {
		return s.client.Close()
	}
	return nil
}

// buildMessage assembles a minimal RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string, opts *Options) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	if opts != nil && opts.InReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", opts.InReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", opts.InReplyTo))
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	buf.WriteString("\r\n")

	return buf.Bytes()
}
