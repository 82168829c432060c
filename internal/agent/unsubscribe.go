package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vdavid/inbox-agent/internal/models"
	"github.com/vdavid/inbox-agent/internal/smtp"
)

const oneClickBody = "List-Unsubscribe=One-Click"

var (
	webUnsubscribePattern  = regexp.MustCompile(`(?i)https?://[^\s"'<>)]*unsubscribe[^\s"'<>)]*`)
	mailtoPattern          = regexp.MustCompile(`(?i)mailto:([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})`)
	unsubscribeHintPattern = regexp.MustCompile(`(?i)unsubscribe|opt[-_]?out`)
)

// UnsubscribeTargets holds what the message actually offers for opting out.
// Either field may be empty.
type UnsubscribeTargets struct {
	WebURL        string
	MailtoAddress string
}

// FindUnsubscribeTargets extracts unsubscribe targets from a message.
// The List-Unsubscribe header takes precedence; the body is scanned only
// for target kinds the header did not provide.
func FindUnsubscribeTargets(msg *models.Message) UnsubscribeTargets {
	targets := parseListUnsubscribe(msg.ListUnsubscribe)

	body := msg.BodyText + "\n" + msg.UnsafeBodyHTML

	if targets.WebURL == "" {
		targets.WebURL = webUnsubscribePattern.FindString(body)
	}

	if targets.MailtoAddress == "" {
		for _, match := range mailtoPattern.FindAllStringSubmatch(body, -1) {
			if unsubscribeHintPattern.MatchString(match[1]) {
				targets.MailtoAddress = match[1]
				break
			}
		}
	}

	return targets
}

// parseListUnsubscribe splits a List-Unsubscribe header value into its web
// and mailto entries. The header holds comma-separated angle-bracketed
// URIs, e.g. <https://example.com/u?id=1>, <mailto:unsub@example.com>.
func parseListUnsubscribe(header string) UnsubscribeTargets {
	var targets UnsubscribeTargets

	for _, entry := range strings.Split(header, ",") {
		entry = strings.TrimSpace(entry)
		entry = strings.TrimPrefix(entry, "<")
		entry = strings.TrimSuffix(entry, ">")

		switch {
		case targets.WebURL == "" && (strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://")):
			targets.WebURL = entry
		case targets.MailtoAddress == "" && strings.HasPrefix(entry, "mailto:"):
			address := strings.TrimPrefix(entry, "mailto:")
			// Drop subject/body hints from the mailto URI.
			if i := strings.Index(address, "?"); i >= 0 {
				address = address[:i]
			}
			targets.MailtoAddress = address
		}
	}

	return targets
}

// MailSender dispatches one message over the send session. Implemented by
// *smtp.Sender; tests substitute recorders.
type MailSender interface {
	Send(to, subject, body string, opts *smtp.Options) error
}

// UnsubscribeExecutor runs the unsubscribe action for marketing messages.
// The web target is preferred when both paths are enabled and available -
// it is synchronous and its result is verifiable. The email-based target is
// only a fallback after a failed web attempt.
type UnsubscribeExecutor struct {
	HTTPClient    *http.Client
	Sender        MailSender
	HTTPEnabled   bool
	MailtoEnabled bool
	DryRun        bool
	Log           *logrus.Logger
}

// Execute attempts the unsubscribe for one marketing message and returns
// exactly one outcome. Failures never propagate; they are captured in the
// outcome so the run continues with the next message.
func (e *UnsubscribeExecutor) Execute(ctx context.Context, msg *models.Message) models.Outcome {
	targets := FindUnsubscribeTargets(msg)

	webViable := e.HTTPEnabled && targets.WebURL != ""
	mailtoViable := e.MailtoEnabled && targets.MailtoAddress != ""

	outcome := models.Outcome{
		Kind:        models.ActionUnsubscribeHTTP,
		Subject:     msg.Subject,
		Counterpart: msg.FromAddress,
	}

	switch {
	case webViable:
		outcome.Target = targets.WebURL
	case mailtoViable:
		outcome.Kind = models.ActionUnsubscribeMailto
		outcome.Target = targets.MailtoAddress
	default:
		outcome.Status = models.StatusSkipped
		outcome.Detail = "no target available"
		e.Log.WithField("from", msg.FromAddress).Info("unsubscribe skipped: no target available")
		return outcome
	}

	// The dry-run gate sits before any network call, not after.
	if e.DryRun {
		outcome.Status = models.StatusSkipped
		outcome.Detail = "dry run"
		e.Log.WithFields(logrus.Fields{
			"from":   msg.FromAddress,
			"target": outcome.Target,
		}).Info("unsubscribe skipped: dry run")
		return outcome
	}

	if webViable {
		webErr := e.executeWeb(ctx, msg, targets.WebURL)
		if webErr == nil {
			outcome.Status = models.StatusSuccess
			outcome.Detail = "web unsubscribe request accepted"
			e.Log.WithField("target", targets.WebURL).Info("web unsubscribe succeeded")
			return outcome
		}

		e.Log.WithField("target", targets.WebURL).Warnf("web unsubscribe failed: %v", webErr)

		if !mailtoViable {
			outcome.Status = models.StatusFailed
			outcome.Detail = webErr.Error()
			return outcome
		}

		// Fall back to the email-based target.
		outcome.Kind = models.ActionUnsubscribeMailto
		outcome.Target = targets.MailtoAddress
		if mailErr := e.executeMailto(ctx, targets.MailtoAddress); mailErr != nil {
			outcome.Status = models.StatusFailed
			outcome.Detail = fmt.Sprintf("web unsubscribe failed (%v); email fallback failed (%v)", webErr, mailErr)
			e.Log.WithField("target", targets.MailtoAddress).Errorf("email unsubscribe fallback failed: %v", mailErr)
			return outcome
		}

		outcome.Status = models.StatusSuccess
		outcome.Detail = fmt.Sprintf("web unsubscribe failed (%v); email-based unsubscribe sent", webErr)
		e.Log.WithField("target", targets.MailtoAddress).Info("email unsubscribe fallback sent")
		return outcome
	}

	if err := e.executeMailto(ctx, targets.MailtoAddress); err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = err.Error()
		e.Log.WithField("target", targets.MailtoAddress).Errorf("email unsubscribe failed: %v", err)
		return outcome
	}

	outcome.Status = models.StatusSuccess
	outcome.Detail = "email-based unsubscribe sent"
	e.Log.WithField("target", targets.MailtoAddress).Info("email unsubscribe sent")
	return outcome
}

// executeWeb issues one request to the unsubscribe URL. Messages carrying a
// List-Unsubscribe-Post header get the RFC 8058 one-click POST; everything
// else gets a plain GET. Any non-2xx response is a failure.
func (e *UnsubscribeExecutor) executeWeb(ctx context.Context, msg *models.Message, url string) error {
	var req *http.Request
	var err error

	if msg.ListUnsubscribePost != "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(oneClickBody))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

// executeMailto sends a minimal opt-out message to the advertised address.
func (e *UnsubscribeExecutor) executeMailto(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := "Please remove this address from your mailing list.\n"
	if err := e.Sender.Send(address, "unsubscribe", body, nil); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	return nil
}
