package models

import "time"

// Category is the triage bucket a message lands in. Exactly one per message.
type Category string

const (
	CategoryMarketing Category = "marketing"
	CategoryImportant Category = "important"
	CategoryOther     Category = "other"
)

// Message is a parsed mail message as fetched from the retrieval session.
// Header fields used by classification and unsubscribe target discovery are
// lifted out of the raw header set so downstream code never re-parses MIME.
type Message struct {
	UID                 uint32     `json:"uid"`
	MessageIDHeader     string     `json:"message_id_header"`
	FromAddress         string     `json:"from_address"`
	ToAddresses         []string   `json:"to_addresses"`
	Subject             string     `json:"subject"`
	SentAt              *time.Time `json:"sent_at"`
	ListUnsubscribe     string     `json:"list_unsubscribe,omitempty"`
	ListUnsubscribePost string     `json:"list_unsubscribe_post,omitempty"`
	ListID              string     `json:"list_id,omitempty"`
	Precedence          string     `json:"precedence,omitempty"`
	AutoSubmitted       string     `json:"auto_submitted,omitempty"`
	BodyText            string     `json:"body_text,omitempty"`
	UnsafeBodyHTML      string     `json:"unsafe_body_html,omitempty"`
	// ParseError records a MIME body parse failure. The message degrades to
	// its envelope fields; classification still runs on those.
	ParseError string `json:"parse_error,omitempty"`
}

// ClassifiedMessage pairs a message with its assigned category and the
// evidence that drove the decision. Immutable once created.
type ClassifiedMessage struct {
	Message
	Category Category `json:"category"`
	Evidence []string `json:"evidence"`
}
