package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vdavid/inbox-agent/internal/imap"
	"github.com/vdavid/inbox-agent/internal/models"
	"github.com/vdavid/inbox-agent/internal/smtp"
)

const (
	// actionConcurrency bounds parallel web unsubscribe requests so remote
	// servers are not hammered. Mail sends additionally serialize on the
	// single send session.
	actionConcurrency = 4

	httpTimeout = 15 * time.Second
)

// Runner executes triage runs. The zero value is usable; configure LogSink
// to receive log entries live and HTTPClient to override the unsubscribe
// HTTP client (tests).
type Runner struct {
	LogSink    LogSink
	HTTPClient *http.Client
}

// Run executes one triage run: open sessions, fetch, classify, act, report.
//
// Validation, connection, and fetch failures are fatal and return an error
// with no report. Everything after that is contained per item: action
// failures become failed outcomes and the run continues. Cancellation stops
// remaining items and returns the partial report accumulated so far.
//
// runID keys the live log stream; pass "" to have one generated.
func (r *Runner) Run(ctx context.Context, runID string, cfg Config) (*models.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if runID == "" {
		runID = uuid.NewString()
	}

	logger, collector := newRunLogger(r.LogSink)
	logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"dry_run":      cfg.Options.DryRun,
		"max_messages": cfg.Options.MaxMessages,
		"mailbox":      cfg.IMAP.Mailbox,
	}).Info("starting triage run")

	// Retrieval session. Closed on every exit path; the deferred logout is
	// independent of the send session's fate.
	client, err := imap.ConnectToIMAP(cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Secure)
	if err != nil {
		return nil, &ConnectionError{Endpoint: "imap", Err: err}
	}
	defer func() {
		_ = client.Logout()
	}()

	if err := imap.Login(client, cfg.IMAP.User, cfg.IMAP.Password); err != nil {
		return nil, &ConnectionError{Endpoint: "imap", Err: err}
	}
	logger.Info("retrieval session open")

	// Send session, only when an enabled action could dispatch mail. In
	// dry-run the send endpoint is never contacted.
	var sender *smtp.Sender
	if cfg.needsSendSession() {
		sender, err = smtp.Dial(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Secure, cfg.SMTP.User, cfg.SMTP.Password)
		if err != nil {
			return nil, &ConnectionError{Endpoint: "smtp", Err: err}
		}
		defer func() {
			_ = sender.Close()
		}()
		logger.Info("send session open")
	}

	messages, err := imap.FetchRecent(client, cfg.IMAP.Mailbox, cfg.Options.MaxMessages)
	if err != nil {
		return nil, &FetchError{Mailbox: cfg.IMAP.Mailbox, Err: err}
	}
	logger.WithField("count", len(messages)).Info("fetched messages")

	report := &models.Report{
		RunID:        runID,
		DryRun:       cfg.Options.DryRun,
		Fetched:      len(messages),
		Unsubscribes: []models.Outcome{},
		Replies:      []models.Outcome{},
		Marketing:    []models.ClassifiedMessage{},
		Important:    []models.ClassifiedMessage{},
	}

	otherCount := 0
	for _, msg := range messages {
		if msg.ParseError != "" {
			logger.WithFields(logrus.Fields{
				"uid":   msg.UID,
				"error": msg.ParseError,
			}).Warn("message body could not be parsed, classifying on headers only")
		}

		category, evidence := Classify(msg)
		classified := models.ClassifiedMessage{
			Message:  *msg,
			Category: category,
			Evidence: evidence,
		}

		switch category {
		case models.CategoryMarketing:
			report.Marketing = append(report.Marketing, classified)
		case models.CategoryImportant:
			report.Important = append(report.Important, classified)
		default:
			otherCount++
		}
	}
	logger.WithFields(logrus.Fields{
		"marketing": len(report.Marketing),
		"important": len(report.Important),
		"other":     otherCount,
	}).Info("classified messages")

	r.runUnsubscribes(ctx, cfg, sender, logger, report)
	r.runReplies(ctx, cfg, sender, logger, report)

	logger.WithFields(logrus.Fields{
		"unsubscribes": len(report.Unsubscribes),
		"replies":      len(report.Replies),
	}).Info("run complete")

	report.Log = collector.Entries()
	return report, nil
}

// runUnsubscribes fans the unsubscribe action out over the marketing
// messages with bounded concurrency. Outcome order follows classification
// order regardless of completion order.
func (r *Runner) runUnsubscribes(ctx context.Context, cfg Config, sender *smtp.Sender, logger *logrus.Logger, report *models.Report) {
	if !cfg.Options.UnsubscribeHTTP && !cfg.Options.UnsubscribeMailto {
		return
	}
	if len(report.Marketing) == 0 {
		return
	}

	executor := &UnsubscribeExecutor{
		HTTPClient:    r.httpClient(),
		HTTPEnabled:   cfg.Options.UnsubscribeHTTP,
		MailtoEnabled: cfg.Options.UnsubscribeMailto,
		DryRun:        cfg.Options.DryRun,
		Log:           logger,
	}
	if sender != nil {
		executor.Sender = sender
	}

	outcomes := make([]models.Outcome, len(report.Marketing))
	attempted := make([]bool, len(report.Marketing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(actionConcurrency)

	for i := range report.Marketing {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcomes[i] = executor.Execute(gctx, &report.Marketing[i].Message)
			attempted[i] = true
			return nil
		})
	}
	_ = g.Wait()

	abandoned := 0
	for i := range outcomes {
		if attempted[i] {
			report.Unsubscribes = append(report.Unsubscribes, outcomes[i])
		} else {
			abandoned++
		}
	}
	if abandoned > 0 {
		logger.WithField("abandoned", abandoned).Warn("run canceled before all unsubscribe actions completed")
	}
}

// runReplies walks the important messages sequentially on the shared send
// session. The reply toggle is handled inside the sender so a disabled
// toggle still yields one skipped outcome per message.
func (r *Runner) runReplies(ctx context.Context, cfg Config, sender *smtp.Sender, logger *logrus.Logger, report *models.Report) {
	if len(report.Important) == 0 {
		return
	}

	replier := &ReplySender{
		From:    cfg.SMTP.User,
		Enabled: cfg.Options.ReplyToImportant,
		DryRun:  cfg.Options.DryRun,
		Log:     logger,
	}
	if sender != nil {
		replier.Sender = sender
	}

	for i := range report.Important {
		if ctx.Err() != nil {
			logger.WithField("abandoned", len(report.Important)-i).Warn("run canceled before all replies completed")
			return
		}
		report.Replies = append(report.Replies, replier.Execute(ctx, &report.Important[i].Message))
	}
}

func (r *Runner) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: httpTimeout}
}
