package imap

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/vdavid/inbox-agent/internal/models"
)

// ParseMessage converts an IMAP message to our Message model.
// A broken MIME body degrades to a header-only message rather than failing,
// since envelope data is enough for classification of most messages.
func ParseMessage(imapMsg *imap.Message, section *imap.BodySectionName) (*models.Message, error) {
	if imapMsg == nil {
		return nil, fmt.Errorf("imap message is nil")
	}

	msg := &models.Message{
		UID: imapMsg.Uid,
	}

	if imapMsg.Envelope != nil {
		if len(imapMsg.Envelope.From) > 0 {
			msg.FromAddress = formatAddress(imapMsg.Envelope.From[0])
		}

		msg.ToAddresses = formatAddressList(imapMsg.Envelope.To)
		msg.Subject = imapMsg.Envelope.Subject
		if !imapMsg.Envelope.Date.IsZero() {
			date := imapMsg.Envelope.Date
			msg.SentAt = &date
		}
		if len(imapMsg.Envelope.MessageId) > 0 {
			msg.MessageIDHeader = imapMsg.Envelope.MessageId
		}
	}

	if section != nil {
		bodyReader := imapMsg.GetBody(section)
		if bodyReader != nil {
			if err := parseBody(bodyReader, msg); err != nil {
				// Keep the header-only message - classification can still
				// run on envelope data. The failure is recorded so the run
				// log can report the body-less message.
				msg.ParseError = err.Error()
			}
		}
	}

	return msg, nil
}

// parseBody parses the email body using enmime and lifts out the headers
// classification and unsubscribe discovery depend on.
func parseBody(bodyReader io.Reader, msg *models.Message) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse email body: %w", err)
	}

	msg.BodyText = envelope.Text
	msg.UnsafeBodyHTML = envelope.HTML

	msg.ListUnsubscribe = envelope.GetHeader("List-Unsubscribe")
	msg.ListUnsubscribePost = envelope.GetHeader("List-Unsubscribe-Post")
	msg.ListID = envelope.GetHeader("List-Id")
	msg.Precedence = envelope.GetHeader("Precedence")
	msg.AutoSubmitted = envelope.GetHeader("Auto-Submitted")

	return nil
}

// formatAddress formats an IMAP address to a string.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddressList formats a list of IMAP addresses.
func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		formatted := formatAddress(address)
		if formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
