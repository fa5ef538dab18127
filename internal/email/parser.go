package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/google/uuid"
)

// Parser parses raw email messages into Threads
type Parser struct{}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a raw RFC 5322 message
func (p *Parser) Parse(rawMessage []byte) (*Thread, error) {
	reader := bytes.NewReader(rawMessage)

	entity, err := message.Read(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	thread := &Thread{
		RawMessage: rawMessage,
		ReceivedAt: time.Now(),
	}

	header := entity.Header

	// Message-ID
	thread.MessageID = header.Get("Message-ID")
	if thread.MessageID == "" {
		thread.MessageID = generateMessageID()
	}

	// From
	if from := header.Get("From"); from != "" {
		addr, err := parseAddress(from)
		if err == nil {
			thread.From = addr
		}
	}

	// To
	if to := header.Get("To"); to != "" {
		addrs, err := parseAddressList(to)
		if err == nil {
			thread.To = addrs
		}
	}

	// Reply-To
	if replyTo := header.Get("Reply-To"); replyTo != "" {
		addr, err := parseAddress(replyTo)
		if err == nil {
			thread.ReplyTo = &addr
		}
	}

	// Subject
	thread.Subject = decodeHeader(header.Get("Subject"))

	// Threading metadata
	thread.InReplyTo = header.Get("In-Reply-To")
	if refs := header.Get("References"); refs != "" {
		thread.References = strings.Fields(refs)
	}

	// Date
	if dateStr := header.Get("Date"); dateStr != "" {
		if t, err := mail.ParseDate(dateStr); err == nil {
			thread.Date = t
		}
	}
	if thread.Date.IsZero() {
		thread.Date = time.Now()
	}

	// Parse body
	if err := p.parseBody(entity, thread); err != nil {
		return nil, fmt.Errorf("failed to parse body: %w", err)
	}

	return thread, nil
}

// parseBody recursively walks the message looking for text parts.
// Attachment parts are skipped: the extraction contract only covers the
// discussion text, and the outgoing reply never carries attachments.
func (p *Parser) parseBody(entity *message.Entity, thread *Thread) error {
	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := p.parseBody(part, thread); err != nil {
				return err
			}
		}
		return nil
	}

	disposition, _, _ := entity.Header.ContentDisposition()
	if disposition == "attachment" {
		return nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	switch {
	case strings.HasPrefix(mediaType, "text/plain"):
		if thread.TextBody == "" {
			thread.TextBody = string(body)
		}
	case strings.HasPrefix(mediaType, "text/html"):
		if thread.HTMLBody == "" {
			thread.HTMLBody = string(body)
		}
	}

	return nil
}

// parseAddress parses a single email address
func parseAddress(s string) (Address, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		// Try to extract just the email
		s = strings.TrimSpace(s)
		if strings.Contains(s, "@") {
			return Address{Address: s}, nil
		}
		return Address{}, err
	}
	return Address{
		Name:    addr.Name,
		Address: addr.Address,
	}, nil
}

// parseAddressList parses a comma-separated list of email addresses
func parseAddressList(s string) ([]Address, error) {
	addrs, err := mail.ParseAddressList(s)
	if err != nil {
		// Try splitting manually
		parts := strings.Split(s, ",")
		var result []Address
		for _, p := range parts {
			addr, err := parseAddress(strings.TrimSpace(p))
			if err == nil {
				result = append(result, addr)
			}
		}
		if len(result) > 0 {
			return result, nil
		}
		return nil, err
	}

	result := make([]Address, len(addrs))
	for i, addr := range addrs {
		result[i] = Address{
			Name:    addr.Name,
			Address: addr.Address,
		}
	}
	return result, nil
}

// decodeHeader decodes RFC 2047 encoded header values
func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// generateMessageID generates a unique message ID for messages without one
func generateMessageID() string {
	return fmt.Sprintf("<%s@dunbot.local>", uuid.NewString())
}
