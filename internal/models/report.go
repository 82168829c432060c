package models

import "time"

// ActionKind tags an outcome with the action that produced it.
type ActionKind string

const (
	ActionUnsubscribeHTTP   ActionKind = "unsubscribe_http"
	ActionUnsubscribeMailto ActionKind = "unsubscribe_mailto"
	ActionReply             ActionKind = "reply"
)

// OutcomeStatus is the disposition of one attempted action.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
	StatusSkipped OutcomeStatus = "skipped"
)

// Outcome records one attempted (or deliberately skipped) action.
// Counterpart is the sender for unsubscribes and the recipient for replies.
type Outcome struct {
	Kind        ActionKind    `json:"kind"`
	Target      string        `json:"target,omitempty"`
	Subject     string        `json:"subject,omitempty"`
	Counterpart string        `json:"counterpart"`
	Status      OutcomeStatus `json:"status"`
	Detail      string        `json:"detail"`
}

// LogEntry is one run-scoped log line. Entries are append-only and
// chronological; the report preserves their order.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Report is the terminal aggregate of one run. Everything the caller learns
// about the run is in here; nothing survives past its return.
type Report struct {
	RunID        string              `json:"run_id"`
	DryRun       bool                `json:"dry_run"`
	Fetched      int                 `json:"fetched"`
	Unsubscribes []Outcome           `json:"unsubscribes"`
	Replies      []Outcome           `json:"replies"`
	Marketing    []ClassifiedMessage `json:"marketing"`
	Important    []ClassifiedMessage `json:"important"`
	Log          []LogEntry          `json:"log"`
}
