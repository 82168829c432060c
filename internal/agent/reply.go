package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vdavid/inbox-agent/internal/models"
	"github.com/vdavid/inbox-agent/internal/smtp"
)

// ReplySender composes and sends formal acknowledgement replies to
// important messages. Composition is template-driven and deterministic so
// the wording is reproducible in tests; no external content generation is
// involved.
type ReplySender struct {
	Sender  MailSender
	From    string
	Enabled bool
	DryRun  bool
	Log     *logrus.Logger
}

// Execute produces exactly one reply outcome for one important message.
func (r *ReplySender) Execute(ctx context.Context, msg *models.Message) models.Outcome {
	recipient := bareAddress(msg.FromAddress)
	subject := replySubject(msg.Subject)

	outcome := models.Outcome{
		Kind:        models.ActionReply,
		Target:      recipient,
		Subject:     subject,
		Counterpart: recipient,
	}

	if !r.Enabled {
		outcome.Status = models.StatusSkipped
		outcome.Detail = "auto-reply disabled"
		return outcome
	}

	if r.DryRun {
		outcome.Status = models.StatusSkipped
		outcome.Detail = "dry run"
		r.Log.WithField("to", recipient).Info("reply skipped: dry run")
		return outcome
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = err.Error()
		return outcome
	}

	body := composeReplyBody(msg, r.From)
	opts := &smtp.Options{InReplyTo: msg.MessageIDHeader}

	if err := r.Sender.Send(recipient, subject, body, opts); err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = err.Error()
		r.Log.WithField("to", recipient).Errorf("reply send failed: %v", err)
		return outcome
	}

	outcome.Status = models.StatusSuccess
	outcome.Detail = "reply sent"
	r.Log.WithField("to", recipient).Info("reply sent")
	return outcome
}

// replySubject threads the acknowledgement under the original subject
// without stacking prefixes.
func replySubject(original string) string {
	trimmed := strings.TrimSpace(original)
	if trimmed == "" {
		return "Re: your message"
	}
	if replyPrefixPattern.MatchString(trimmed) {
		return trimmed
	}
	return "Re: " + trimmed
}

// composeReplyBody renders the fixed acknowledgement template.
func composeReplyBody(msg *models.Message, from string) string {
	name := displayName(msg.FromAddress)
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = "your message"
	} else {
		subject = fmt.Sprintf("%q", subject)
	}

	return fmt.Sprintf(
		"Dear %s,\n\n"+
			"Thank you for your message regarding %s. We have received it and will follow up as soon as possible.\n\n"+
			"Kind regards,\n%s\n",
		name, subject, from,
	)
}

// displayName extracts the personal name from a formatted address, falling
// back to the bare address.
func displayName(formatted string) string {
	if i := strings.Index(formatted, "<"); i > 0 {
		if name := strings.TrimSpace(formatted[:i]); name != "" {
			return name
		}
	}
	return bareAddress(formatted)
}

// bareAddress strips the display-name wrapper, returning mailbox@host.
func bareAddress(formatted string) string {
	if start := strings.LastIndex(formatted, "<"); start >= 0 {
		if end := strings.LastIndex(formatted, ">"); end > start {
			return formatted[start+1 : end]
		}
	}
	return strings.TrimSpace(formatted)
}
