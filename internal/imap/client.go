package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

const (
	// dialTimeout bounds the TCP/TLS handshake.
	dialTimeout = 10 * time.Second
	// commandTimeout bounds every IMAP command on the connection so a dead
	// server cannot hang a run.
	commandTimeout = 30 * time.Second
)

// ConnectToIMAP connects to the IMAP server with a dial timeout.
// secure: true for implicit TLS (port 993), false for plain TCP (tests).
func ConnectToIMAP(host string, port int, secure bool) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: dialTimeout,
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	var c *client.Client
	var err error
	if secure {
		c, err = client.DialWithDialerTLS(dialer, addr, nil)
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.Timeout = commandTimeout

	return c, nil
}

// Login authenticates with the IMAP server.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}
