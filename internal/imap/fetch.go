package imap

import (
	"fmt"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/vdavid/inbox-agent/internal/models"
)

// FetchRecent selects the mailbox read-only and returns up to max messages,
// most recent first, each parsed into a models.Message.
//
// The fetch is all-or-nothing: a mid-stream failure discards everything
// already retrieved, since downstream stages assume a complete batch. The
// mailbox is never mutated - the select is read-only and bodies are fetched
// with BODY.PEEK so the \Seen flag stays untouched.
func FetchRecent(c *client.Client, mailbox string, max int) ([]*models.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if max <= 0 {
		return nil, fmt.Errorf("max must be positive, got %d", max)
	}

	mbox, err := c.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %q: %w", mailbox, err)
	}

	if mbox.Messages == 0 {
		return []*models.Message{}, nil
	}

	// Highest sequence numbers are the most recent messages.
	from := uint32(1)
	if uint32(max) < mbox.Messages {
		from = mbox.Messages - uint32(max) + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, max)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].SeqNum > fetched[j].SeqNum
	})

	result := make([]*models.Message, 0, len(fetched))
	for _, imapMsg := range fetched {
		msg, err := ParseMessage(imapMsg, section)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message %d: %w", imapMsg.SeqNum, err)
		}
		result = append(result, msg)
	}

	return result, nil
}
