package trigger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/dunbot/dunbot/internal/config"
	"github.com/dunbot/dunbot/internal/email"
)

func thread(from, to, subject string) *email.Thread {
	return &email.Thread{
		From:    email.Address{Address: from},
		To:      []email.Address{{Address: to}},
		Subject: subject,
	}
}

func TestFilter_NoRulesAcceptsEverything(t *testing.T) {
	f, err := NewFilter(nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, ok := f.Accept(thread("anyone@example.com", "collections@vendor.example.com", "hello"))
	if !ok {
		t.Fatal("expected acceptance with no rules configured")
	}
	if name != "default" {
		t.Errorf("trigger name = %q, want %q", name, "default")
	}
}

func TestFilter_MatchesFirstRule(t *testing.T) {
	triggers := []config.TriggerConfig{
		{Name: "collections", Match: config.MatchConfig{To: "^collections@"}},
		{Name: "catchall", Match: config.MatchConfig{}},
	}

	f, err := NewFilter(triggers, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, ok := f.Accept(thread("buyer@example.com", "collections@vendor.example.com", "Invoice #123"))
	if !ok {
		t.Fatal("expected match")
	}
	if name != "collections" {
		t.Errorf("trigger name = %q, want %q", name, "collections")
	}

	name, ok = f.Accept(thread("buyer@example.com", "support@vendor.example.com", "Invoice #123"))
	if !ok {
		t.Fatal("expected catchall match")
	}
	if name != "catchall" {
		t.Errorf("trigger name = %q, want %q", name, "catchall")
	}
}

func TestFilter_RejectsUnmatched(t *testing.T) {
	triggers := []config.TriggerConfig{
		{Name: "collections", Match: config.MatchConfig{Subject: "(?i)invoice"}},
	}

	f, err := NewFilter(triggers, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.Accept(thread("buyer@example.com", "collections@vendor.example.com", "lunch?")); ok {
		t.Fatal("expected rejection for unmatched subject")
	}
	if _, ok := f.Accept(thread("buyer@example.com", "collections@vendor.example.com", "Invoice #9")); !ok {
		t.Fatal("expected match for invoice subject")
	}
}

func TestFilter_AllCriteriaMustMatch(t *testing.T) {
	triggers := []config.TriggerConfig{
		{Name: "strict", Match: config.MatchConfig{
			From:    "@example\\.com$",
			Subject: "(?i)invoice",
		}},
	}

	f, err := NewFilter(triggers, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.Accept(thread("buyer@example.com", "x@y", "Invoice #1")); !ok {
		t.Fatal("expected match when all criteria hold")
	}
	if _, ok := f.Accept(thread("buyer@other.org", "x@y", "Invoice #1")); ok {
		t.Fatal("expected rejection when from does not match")
	}
}
