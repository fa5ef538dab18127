package reply

import (
	"strings"
	"testing"

	"github.com/dunbot/dunbot/internal/email"
	"github.com/dunbot/dunbot/internal/extract"
)

func testResult() *extract.Result {
	return &extract.Result{
		Summary:        "Buyer commits to pay by Friday.",
		SuggestedReply: "Thank you, we will follow up Monday.",
		Invoices: []extract.Invoice{
			{
				InvoiceID:           "123",
				TotalValue:          "5000",
				Currency:            "USD",
				Status:              "payment_promised",
				PromisedPaymentDate: "2024-01-10",
				Summary:             "Payment promised.",
			},
		},
	}
}

func testThread() *email.Thread {
	return &email.Thread{
		MessageID:  "<orig-1@example.com>",
		From:       email.Address{Address: "buyer@example.com"},
		Subject:    "Invoice #123 overdue",
		TextBody:   "We will pay by Friday.",
		References: []string{"<root@example.com>"},
	}
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer("bot@collections.example.com", "Collections Bot")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	return c
}

func TestCompose_RendersAllSections(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(testResult(), testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Buyer commits to pay by Friday.",
		"Thank you, we will follow up Monday.",
		"123",
		"5000",
		"payment_promised",
		"2024-01-10",
		"SUMMARY",
		"SUGGESTED REPLY",
		"INVOICES",
	} {
		if !strings.Contains(out.HTMLBody, want) {
			t.Errorf("html body missing %q", want)
		}
	}
}

func TestCompose_OneRowPerInvoice(t *testing.T) {
	c := newTestComposer(t)

	result := testResult()
	result.Invoices = append(result.Invoices, extract.Invoice{
		InvoiceID: "456", TotalValue: "900", Currency: "EUR", Status: "dispute",
	}, extract.Invoice{
		InvoiceID: "789", TotalValue: "12.50", Currency: "USD", Status: "paid",
	})

	out, err := c.Compose(result, testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// header row plus one row per invoice
	if got := strings.Count(out.HTMLBody, "<tr>"); got != 4 {
		t.Errorf("row count = %d, want 4", got)
	}
}

func TestCompose_Threading(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(testResult(), testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.To) != 1 || out.To[0].Address != "buyer@example.com" {
		t.Errorf("to = %+v, want original sender", out.To)
	}
	if out.Subject != "Re: Invoice #123 overdue" {
		t.Errorf("subject = %q, want reply-prefixed original", out.Subject)
	}
	if out.InReplyTo != "<orig-1@example.com>" {
		t.Errorf("in-reply-to = %q, want inbound message id", out.InReplyTo)
	}
	if len(out.References) != 2 || out.References[1] != "<orig-1@example.com>" {
		t.Errorf("references = %v, want inbound chain plus message id", out.References)
	}
	if out.From.Address != "bot@collections.example.com" {
		t.Errorf("from = %q", out.From.Address)
	}
}

func TestCompose_ReplySubjectNotDoubled(t *testing.T) {
	c := newTestComposer(t)

	thread := testThread()
	thread.Subject = "Re: Invoice #123 overdue"

	out, err := c.Compose(testResult(), thread)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Subject != "Re: Invoice #123 overdue" {
		t.Errorf("subject = %q, want unchanged", out.Subject)
	}
}

func TestCompose_RespectsReplyTo(t *testing.T) {
	c := newTestComposer(t)

	thread := testThread()
	thread.ReplyTo = &email.Address{Address: "ar-team@example.com"}

	out, err := c.Compose(testResult(), thread)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.To[0].Address != "ar-team@example.com" {
		t.Errorf("to = %q, want reply-to address", out.To[0].Address)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c := newTestComposer(t)

	first, err := c.Compose(testResult(), testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Compose(testResult(), testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.HTMLBody != second.HTMLBody {
		t.Error("same extraction produced different HTML bodies")
	}
}

func TestCompose_EscapesModelOutput(t *testing.T) {
	c := newTestComposer(t)

	result := testResult()
	result.Summary = `<script>alert("x")</script>`

	out, err := c.Compose(result, testThread())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.HTMLBody, "<script>") {
		t.Error("model output rendered unescaped")
	}
}
