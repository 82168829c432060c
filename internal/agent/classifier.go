package agent

import (
	"regexp"
	"strings"

	"github.com/vdavid/inbox-agent/internal/models"
)

// Classification is rule-based and evaluated in a fixed order; the first
// matching rule wins. There is no learned model, so identical input always
// yields the identical category regardless of run order.
//
//  1. Marketing: the message carries a machine-readable unsubscribe
//     indicator - a List-Unsubscribe header, an unsubscribe link in the
//     body, or an unsubscribe mailto address in the body.
//  2. Important: no bulk markers (Precedence bulk/list/junk, List-Id,
//     Auto-Submitted, no-reply sender) and at least one correspondence
//     signal: a reply/forward subject prefix, an important subject keyword,
//     or a single direct recipient.
//  3. Other: everything else.

var (
	noReplyPattern     = regexp.MustCompile(`(?i)\b(?:no[-._]?reply|do[-._]?not[-._]?reply)\b`)
	replyPrefixPattern = regexp.MustCompile(`(?i)^\s*(?:re|fw|fwd)\s*:`)

	importantKeywords = []string{
		"urgent",
		"invoice",
		"payment",
		"contract",
		"deadline",
		"action required",
		"meeting",
		"interview",
	}
)

// Classify assigns a message to exactly one category and returns the
// evidence that drove the decision. It is a pure function over the message.
func Classify(msg *models.Message) (models.Category, []string) {
	if evidence := marketingEvidence(msg); len(evidence) > 0 {
		return models.CategoryMarketing, evidence
	}

	if evidence := importantEvidence(msg); len(evidence) > 0 {
		return models.CategoryImportant, evidence
	}

	return models.CategoryOther, nil
}

// marketingEvidence collects the unsubscribe indicators present on the
// message. Non-empty means marketing.
func marketingEvidence(msg *models.Message) []string {
	var evidence []string

	if msg.ListUnsubscribe != "" {
		evidence = append(evidence, "List-Unsubscribe header present")
	}

	targets := FindUnsubscribeTargets(msg)
	if msg.ListUnsubscribe == "" {
		if targets.WebURL != "" {
			evidence = append(evidence, "unsubscribe link in body")
		}
		if targets.MailtoAddress != "" {
			evidence = append(evidence, "unsubscribe address in body")
		}
	}

	return evidence
}

// importantEvidence collects correspondence signals, or nothing when a bulk
// marker disqualifies the message.
func importantEvidence(msg *models.Message) []string {
	if hasBulkMarker(msg) {
		return nil
	}

	var evidence []string

	if replyPrefixPattern.MatchString(msg.Subject) {
		evidence = append(evidence, "reply/forward subject prefix")
	}

	subject := strings.ToLower(msg.Subject)
	for _, keyword := range importantKeywords {
		if strings.Contains(subject, keyword) {
			evidence = append(evidence, "subject keyword: "+keyword)
			break
		}
	}

	if len(msg.ToAddresses) == 1 {
		evidence = append(evidence, "single direct recipient")
	}

	return evidence
}

// hasBulkMarker reports whether the message carries any bulk-mail
// indicator. Any one of them disqualifies the message from "important".
func hasBulkMarker(msg *models.Message) bool {
	switch strings.ToLower(msg.Precedence) {
	case "bulk", "list", "junk":
		return true
	}

	if msg.ListID != "" {
		return true
	}

	autoSubmitted := strings.ToLower(strings.TrimSpace(msg.AutoSubmitted))
	if autoSubmitted != "" && autoSubmitted != "no" {
		return true
	}

	return noReplyPattern.MatchString(msg.FromAddress)
}
