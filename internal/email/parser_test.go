package email

import (
	"strings"
	"testing"
)

const simpleMessage = "Message-ID: <orig-1@customer.example.com>\r\n" +
	"From: Buyer Person <buyer@example.com>\r\n" +
	"To: collections@vendor.example.com\r\n" +
	"Subject: Invoice #123 overdue\r\n" +
	"Date: Mon, 08 Jan 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"We will pay by Friday.\r\n"

func TestParse_SimpleMessage(t *testing.T) {
	thread, err := NewParser().Parse([]byte(simpleMessage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if thread.MessageID != "<orig-1@customer.example.com>" {
		t.Errorf("message id = %q, want %q", thread.MessageID, "<orig-1@customer.example.com>")
	}
	if thread.From.Address != "buyer@example.com" {
		t.Errorf("from = %q, want %q", thread.From.Address, "buyer@example.com")
	}
	if thread.From.Name != "Buyer Person" {
		t.Errorf("from name = %q, want %q", thread.From.Name, "Buyer Person")
	}
	if thread.Subject != "Invoice #123 overdue" {
		t.Errorf("subject = %q, want %q", thread.Subject, "Invoice #123 overdue")
	}
	if got := strings.TrimSpace(thread.TextBody); got != "We will pay by Friday." {
		t.Errorf("body = %q, want %q", got, "We will pay by Friday.")
	}
}

func TestParse_ThreadingHeaders(t *testing.T) {
	raw := "Message-ID: <msg-3@example.com>\r\n" +
		"In-Reply-To: <msg-2@example.com>\r\n" +
		"References: <msg-1@example.com> <msg-2@example.com>\r\n" +
		"From: buyer@example.com\r\n" +
		"Subject: Re: Invoice #123 overdue\r\n" +
		"\r\n" +
		"Checking in.\r\n"

	thread, err := NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if thread.InReplyTo != "<msg-2@example.com>" {
		t.Errorf("in-reply-to = %q, want %q", thread.InReplyTo, "<msg-2@example.com>")
	}
	if len(thread.References) != 2 {
		t.Fatalf("references len = %d, want 2", len(thread.References))
	}
	if thread.References[0] != "<msg-1@example.com>" {
		t.Errorf("references[0] = %q, want %q", thread.References[0], "<msg-1@example.com>")
	}

	refs := thread.ReplyReferences()
	if len(refs) != 3 {
		t.Fatalf("reply references len = %d, want 3", len(refs))
	}
	if refs[2] != "<msg-3@example.com>" {
		t.Errorf("reply references tail = %q, want inbound message id", refs[2])
	}
}

func TestParse_MultipartPrefersText(t *testing.T) {
	raw := "Message-ID: <mp-1@example.com>\r\n" +
		"From: buyer@example.com\r\n" +
		"Subject: Invoices\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html version</p>\r\n" +
		"--BOUNDARY--\r\n"

	thread, err := NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(thread.TextBody, "plain version") {
		t.Errorf("text body = %q, want plain part", thread.TextBody)
	}
	if !strings.Contains(thread.HTMLBody, "html version") {
		t.Errorf("html body = %q, want html part", thread.HTMLBody)
	}
	if got := strings.TrimSpace(thread.Body()); got != "plain version" {
		t.Errorf("Body() = %q, want text part preferred", got)
	}
}

func TestParse_MissingMessageIDGenerated(t *testing.T) {
	raw := "From: buyer@example.com\r\n" +
		"Subject: no id\r\n" +
		"\r\n" +
		"body\r\n"

	thread, err := NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thread.MessageID == "" {
		t.Fatal("expected generated message id, got empty")
	}
	if !strings.HasPrefix(thread.MessageID, "<") || !strings.HasSuffix(thread.MessageID, ">") {
		t.Errorf("generated message id = %q, want angle-bracketed", thread.MessageID)
	}
}

func TestParse_EncodedSubject(t *testing.T) {
	raw := "From: buyer@example.com\r\n" +
		"Subject: =?utf-8?q?Rechnung_=C3=BCberf=C3=A4llig?=\r\n" +
		"\r\n" +
		"body\r\n"

	thread, err := NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thread.Subject != "Rechnung überfällig" {
		t.Errorf("subject = %q, want decoded RFC 2047 value", thread.Subject)
	}
}

func TestReplyAddress(t *testing.T) {
	thread := &Thread{From: Address{Address: "buyer@example.com"}}
	if got := thread.ReplyAddress().Address; got != "buyer@example.com" {
		t.Errorf("reply address = %q, want sender", got)
	}

	thread.ReplyTo = &Address{Address: "ar@example.com"}
	if got := thread.ReplyAddress().Address; got != "ar@example.com" {
		t.Errorf("reply address = %q, want reply-to", got)
	}
}
