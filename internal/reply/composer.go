package reply

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dunbot/dunbot/internal/email"
	"github.com/dunbot/dunbot/internal/extract"
)

// Composer renders extraction results into threaded reply emails
type Composer struct {
	from email.Address
	tmpl *template.Template
}

// NewComposer creates a composer sending from the given address
func NewComposer(fromAddress, fromName string) (*Composer, error) {
	tmpl, err := template.New("reply").Parse(replyTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reply template: %w", err)
	}

	return &Composer{
		from: email.Address{Name: fromName, Address: fromAddress},
		tmpl: tmpl,
	}, nil
}

// Compose renders the extraction into an HTML reply addressed back into
// the originating thread. Subject and threading headers follow reply
// conventions so the recipient's mail client groups the message with the
// conversation it came from.
func (c *Composer) Compose(result *extract.Result, thread *email.Thread) (*email.OutboundEmail, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to render reply: %w", err)
	}

	return &email.OutboundEmail{
		From:       c.from,
		To:         []email.Address{thread.ReplyAddress()},
		Subject:    replySubject(thread.Subject),
		HTMLBody:   buf.String(),
		InReplyTo:  thread.MessageID,
		References: thread.ReplyReferences(),
	}, nil
}

// replySubject prefixes "Re: " unless the subject is already a reply
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
