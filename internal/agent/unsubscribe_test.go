package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vdavid/inbox-agent/internal/models"
	"github.com/vdavid/inbox-agent/internal/smtp"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
	Opts    *smtp.Options
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(to, subject, body string, opts *smtp.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body, Opts: opts})
	return nil
}

func TestFindUnsubscribeTargets(t *testing.T) {
	t.Run("parses both header entries", func(t *testing.T) {
		msg := &models.Message{
			ListUnsubscribe: "<https://news.example/unsub?id=9>, <mailto:leave@news.example?subject=unsubscribe>",
		}

		targets := FindUnsubscribeTargets(msg)
		if targets.WebURL != "https://news.example/unsub?id=9" {
			t.Errorf("Unexpected web URL: %q", targets.WebURL)
		}
		// The mailto query string is dropped.
		if targets.MailtoAddress != "leave@news.example" {
			t.Errorf("Unexpected mailto address: %q", targets.MailtoAddress)
		}
	})

	t.Run("falls back to body scan per target kind", func(t *testing.T) {
		msg := &models.Message{
			ListUnsubscribe: "<mailto:leave@news.example>",
			UnsafeBodyHTML:  `<a href="https://news.example/unsubscribe/abc">unsubscribe</a>`,
		}

		targets := FindUnsubscribeTargets(msg)
		if targets.WebURL != "https://news.example/unsubscribe/abc" {
			t.Errorf("Unexpected web URL: %q", targets.WebURL)
		}
		if targets.MailtoAddress != "leave@news.example" {
			t.Errorf("Unexpected mailto address: %q", targets.MailtoAddress)
		}
	})

	t.Run("ignores unrelated mailto addresses in body", func(t *testing.T) {
		msg := &models.Message{
			BodyText: "Contact us at mailto:support@shop.example for help.",
		}

		targets := FindUnsubscribeTargets(msg)
		if targets.MailtoAddress != "" {
			t.Errorf("Expected no mailto target, got %q", targets.MailtoAddress)
		}
	})
}

func TestUnsubscribeExecutor(t *testing.T) {
	logger, _ := newRunLogger(nil)

	newExecutor := func() *UnsubscribeExecutor {
		return &UnsubscribeExecutor{
			HTTPClient:    http.DefaultClient,
			HTTPEnabled:   true,
			MailtoEnabled: true,
			Log:           logger,
		}
	}

	t.Run("dry run makes no network call", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer server.Close()

		executor := newExecutor()
		executor.DryRun = true

		msg := &models.Message{
			FromAddress:     "deals@shop.example",
			Subject:         "Sale",
			ListUnsubscribe: "<" + server.URL + "/unsub>",
		}

		outcome := executor.Execute(context.Background(), msg)
		if outcome.Status != models.StatusSkipped {
			t.Errorf("Expected skipped, got %s", outcome.Status)
		}
		if outcome.Detail != "dry run" {
			t.Errorf("Expected detail 'dry run', got %q", outcome.Detail)
		}
		if requests != 0 {
			t.Errorf("Expected no HTTP requests, got %d", requests)
		}
	})

	t.Run("no viable target is skipped", func(t *testing.T) {
		executor := newExecutor()

		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress: "deals@shop.example",
		})
		if outcome.Status != models.StatusSkipped {
			t.Errorf("Expected skipped, got %s", outcome.Status)
		}
		if outcome.Detail != "no target available" {
			t.Errorf("Expected detail 'no target available', got %q", outcome.Detail)
		}
	})

	t.Run("disabled toggle is skipped even with target", func(t *testing.T) {
		executor := newExecutor()
		executor.HTTPEnabled = false
		executor.MailtoEnabled = false

		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:     "deals@shop.example",
			ListUnsubscribe: "<https://shop.example/unsub>",
		})
		if outcome.Status != models.StatusSkipped {
			t.Errorf("Expected skipped, got %s", outcome.Status)
		}
	})

	t.Run("plain GET for messages without one-click header", func(t *testing.T) {
		var method string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
		}))
		defer server.Close()

		executor := newExecutor()
		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:     "deals@shop.example",
			ListUnsubscribe: "<" + server.URL + "/unsub>",
		})

		if outcome.Status != models.StatusSuccess {
			t.Fatalf("Expected success, got %s (%s)", outcome.Status, outcome.Detail)
		}
		if outcome.Kind != models.ActionUnsubscribeHTTP {
			t.Errorf("Expected kind unsubscribe_http, got %s", outcome.Kind)
		}
		if method != http.MethodGet {
			t.Errorf("Expected GET, got %s", method)
		}
	})

	t.Run("one-click POST when List-Unsubscribe-Post is present", func(t *testing.T) {
		var method, body string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			data, _ := io.ReadAll(r.Body)
			body = string(data)
		}))
		defer server.Close()

		executor := newExecutor()
		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:         "deals@shop.example",
			ListUnsubscribe:     "<" + server.URL + "/unsub>",
			ListUnsubscribePost: "List-Unsubscribe=One-Click",
		})

		if outcome.Status != models.StatusSuccess {
			t.Fatalf("Expected success, got %s (%s)", outcome.Status, outcome.Detail)
		}
		if method != http.MethodPost {
			t.Errorf("Expected POST, got %s", method)
		}
		if body != "List-Unsubscribe=One-Click" {
			t.Errorf("Unexpected POST body: %q", body)
		}
	})

	t.Run("web failure falls back to mailto", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		sender := &fakeSender{}
		executor := newExecutor()
		executor.Sender = sender

		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:     "deals@shop.example",
			ListUnsubscribe: "<" + server.URL + "/unsub>, <mailto:leave@shop.example>",
		})

		if outcome.Status != models.StatusSuccess {
			t.Fatalf("Expected success via fallback, got %s (%s)", outcome.Status, outcome.Detail)
		}
		if outcome.Kind != models.ActionUnsubscribeMailto {
			t.Errorf("Expected kind unsubscribe_mailto, got %s", outcome.Kind)
		}
		if !strings.Contains(outcome.Detail, "web unsubscribe failed") {
			t.Errorf("Detail should mention the web failure, got %q", outcome.Detail)
		}
		if len(sender.sent) != 1 {
			t.Fatalf("Expected 1 sent message, got %d", len(sender.sent))
		}
		if sender.sent[0].To != "leave@shop.example" || sender.sent[0].Subject != "unsubscribe" {
			t.Errorf("Unexpected unsubscribe mail: %+v", sender.sent[0])
		}
	})

	t.Run("web failure without fallback is failed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		executor := newExecutor()
		executor.MailtoEnabled = false

		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:     "deals@shop.example",
			ListUnsubscribe: "<" + server.URL + "/unsub>",
		})

		if outcome.Status != models.StatusFailed {
			t.Errorf("Expected failed, got %s", outcome.Status)
		}
		if !strings.Contains(outcome.Detail, "410") {
			t.Errorf("Detail should carry the status code, got %q", outcome.Detail)
		}
	})

	t.Run("mailto-only failure is failed", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("mailbox unavailable")}
		executor := newExecutor()
		executor.HTTPEnabled = false
		executor.Sender = sender

		outcome := executor.Execute(context.Background(), &models.Message{
			FromAddress:     "deals@shop.example",
			ListUnsubscribe: "<mailto:leave@shop.example>",
		})

		if outcome.Status != models.StatusFailed {
			t.Errorf("Expected failed, got %s", outcome.Status)
		}
		if !strings.Contains(outcome.Detail, "mailbox unavailable") {
			t.Errorf("Detail should carry the send error, got %q", outcome.Detail)
		}
	})
}
