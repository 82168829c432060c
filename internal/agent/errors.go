package agent

import "fmt"

// ValidationError reports a structurally invalid run configuration. It is
// detected before any network I/O, so no partial report exists alongside it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ConnectionError reports a failure opening the retrieval or send session.
// Fatal to the run; nothing was fetched.
type ConnectionError struct {
	Endpoint string // "imap" or "smtp"
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open %s session: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FetchError reports a mailbox selection or listing failure after the
// retrieval session opened. Fatal to the run; sessions are still closed.
type FetchError struct {
	Mailbox string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch from mailbox %q: %v", e.Mailbox, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
