package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/vdavid/inbox-agent/internal/agent"
	"github.com/vdavid/inbox-agent/internal/models"
)

// RunFunc executes one triage run. The production wiring binds it to
// agent.Runner.Run with a hub-backed log sink; tests substitute fakes.
type RunFunc func(ctx context.Context, runID string, cfg agent.Config) (*models.Report, error)

// AgentHandler handles the /api/v1/agent/run endpoint.
type AgentHandler struct {
	environment string
	run         RunFunc
}

// NewAgentHandler creates a new AgentHandler instance.
func NewAgentHandler(environment string, run RunFunc) *AgentHandler {
	return &AgentHandler{
		environment: environment,
		run:         run,
	}
}

// Run coerces the loosely-typed request body into a run configuration,
// executes the run, and returns the report verbatim. Validation failures
// map to 400, fatal runtime failures to 500; per-item failures live inside
// the report and still return 200.
func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("AgentHandler: Panic during run: %v", rec)
			details := map[string]any{"message": "internal panic"}
			if h.environment != "production" {
				details["stack"] = string(debug.Stack())
			}
			WriteJSONError(w, http.StatusInternalServerError, "Agent execution failed", details)
		}
	}()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid JSON body", map[string]any{"message": err.Error()})
		return
	}

	cfg := configFromRequest(body)
	runID := stringFrom(body["runId"], uuid.NewString())

	report, err := h.run(r.Context(), runID, cfg)
	if err != nil {
		var validationErr *agent.ValidationError
		if errors.As(err, &validationErr) {
			WriteJSONError(w, http.StatusBadRequest, "Invalid configuration", map[string]any{"message": validationErr.Error()})
			return
		}

		log.Printf("AgentHandler: Run failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Agent execution failed", map[string]any{"message": err.Error()})
		return
	}

	if !WriteJSONResponse(w, report) {
		return
	}
}

// configFromRequest maps the flat request fields onto the typed run
// configuration, applying the documented defaults: IMAP 993/secure,
// mailbox INBOX, SMTP 465/secure, 50 messages, all action toggles on.
func configFromRequest(body map[string]any) agent.Config {
	return agent.Config{
		IMAP: agent.IMAPConfig{
			Host:     stringFrom(body["imapHost"], ""),
			Port:     numberFrom(body["imapPort"], 993),
			Secure:   booleanFrom(body["imapSecure"], true),
			User:     stringFrom(body["imapUser"], ""),
			Password: stringFrom(body["imapPassword"], ""),
			Mailbox:  stringFrom(body["imapMailbox"], "INBOX"),
		},
		SMTP: agent.SMTPConfig{
			Host:     stringFrom(body["smtpHost"], ""),
			Port:     numberFrom(body["smtpPort"], 465),
			Secure:   booleanFrom(body["smtpSecure"], true),
			User:     stringFrom(body["smtpUser"], ""),
			Password: stringFrom(body["smtpPassword"], ""),
		},
		Options: agent.Options{
			DryRun:            booleanFrom(body["dryRun"], false),
			MaxMessages:       numberFrom(body["maxMessages"], 50),
			UnsubscribeHTTP:   booleanFrom(body["unsubscribeHttp"], true),
			UnsubscribeMailto: booleanFrom(body["unsubscribeMailto"], true),
			ReplyToImportant:  booleanFrom(body["replyToImportant"], true),
		},
	}
}
