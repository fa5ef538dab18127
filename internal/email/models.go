package email

import (
	"time"
)

// Address represents an email address with optional name
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// String returns the formatted address
func (a Address) String() string {
	if a.Name != "" {
		return a.Name + " <" + a.Address + ">"
	}
	return a.Address
}

// Thread is a parsed inbound collections email. It carries the conversation
// body plus the threading metadata needed to route a reply back into the
// same conversation in the recipient's mail client. Immutable once parsed;
// one Thread exists per pipeline run.
type Thread struct {
	MessageID  string    `json:"message_id"`
	From       Address   `json:"from"`
	To         []Address `json:"to"`
	ReplyTo    *Address  `json:"reply_to,omitempty"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	TextBody   string    `json:"text_body"`
	HTMLBody   string    `json:"html_body"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	References []string  `json:"references,omitempty"`
	RawMessage []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// GetToAddresses returns just the email addresses from To
func (t *Thread) GetToAddresses() []string {
	addrs := make([]string, len(t.To))
	for i, a := range t.To {
		addrs[i] = a.Address
	}
	return addrs
}

// Body returns the best available body (text preferred for the LLM)
func (t *Thread) Body() string {
	if t.TextBody != "" {
		return t.TextBody
	}
	return t.HTMLBody
}

// ReplyAddress returns the address a reply should be sent to: the
// Reply-To header when present, the envelope sender otherwise.
func (t *Thread) ReplyAddress() Address {
	if t.ReplyTo != nil {
		return *t.ReplyTo
	}
	return t.From
}

// ReplyReferences returns the References chain for an outgoing reply,
// extending the inbound chain with the inbound Message-ID.
func (t *Thread) ReplyReferences() []string {
	if t.MessageID == "" {
		return t.References
	}
	refs := make([]string, 0, len(t.References)+1)
	refs = append(refs, t.References...)
	return append(refs, t.MessageID)
}

// OutboundEmail represents a reply to be sent
type OutboundEmail struct {
	From       Address   `json:"from"`
	To         []Address `json:"to"`
	Subject    string    `json:"subject"`
	TextBody   string    `json:"text_body"`
	HTMLBody   string    `json:"html_body"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	References []string  `json:"references,omitempty"`
}
