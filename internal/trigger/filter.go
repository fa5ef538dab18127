package trigger

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dunbot/dunbot/internal/config"
	"github.com/dunbot/dunbot/internal/email"
)

// Rule is a compiled trigger rule. An inbound email must match one rule
// for the pipeline to run; everything else is dropped at the door, the
// same way a hosted trigger platform only fires on configured mailboxes.
type Rule struct {
	Name  string
	Match *config.CompiledMatch
}

// Matches checks if a thread matches this rule
func (r *Rule) Matches(t *email.Thread) bool {
	if r.Match.From != nil {
		if !r.Match.From.MatchString(t.From.Address) {
			return false
		}
	}

	// To pattern matches any recipient
	if r.Match.To != nil {
		matched := false
		for _, to := range t.To {
			if r.Match.To.MatchString(to.Address) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if r.Match.Subject != nil {
		if !r.Match.Subject.MatchString(t.Subject) {
			return false
		}
	}

	return true
}

// Filter decides which inbound emails trigger a pipeline run
type Filter struct {
	rules  []*Rule
	logger zerolog.Logger
}

// NewFilter compiles trigger rules from configuration. With no rules
// configured every inbound email triggers a run.
func NewFilter(triggers []config.TriggerConfig, logger zerolog.Logger) (*Filter, error) {
	f := &Filter{
		rules:  make([]*Rule, 0, len(triggers)),
		logger: logger.With().Str("component", "trigger").Logger(),
	}

	for i := range triggers {
		compiled, err := triggers[i].Match.Compile()
		if err != nil {
			return nil, fmt.Errorf("failed to compile trigger %q: %w", triggers[i].Name, err)
		}
		f.rules = append(f.rules, &Rule{
			Name:  triggers[i].Name,
			Match: compiled,
		})
	}

	return f, nil
}

// Accept returns the name of the first matching rule. With no rules
// configured it accepts everything under the name "default".
func (f *Filter) Accept(t *email.Thread) (string, bool) {
	if len(f.rules) == 0 {
		return "default", true
	}

	for _, rule := range f.rules {
		if rule.Matches(t) {
			f.logger.Debug().
				Str("trigger", rule.Name).
				Str("from", t.From.Address).
				Str("subject", t.Subject).
				Msg("Trigger matched")
			return rule.Name, true
		}
	}

	f.logger.Debug().
		Str("from", t.From.Address).
		Str("subject", t.Subject).
		Msg("No trigger matched, ignoring email")
	return "", false
}
