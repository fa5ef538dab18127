package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dunbot/dunbot/internal/email"
)

// ErrRemoteCall indicates the completion endpoint could not be reached or
// timed out. Terminal for the run; redelivery is the upstream's problem.
var ErrRemoteCall = errors.New("llm call failed")

// ErrUpstreamFormat indicates the model's output did not conform to the
// requested schema. Terminal: the parser never guesses missing fields.
var ErrUpstreamFormat = errors.New("llm response does not match schema")

// Invoice is one invoice-level extraction from the thread. Values are
// passed through exactly as the model produced them: no dedup on
// invoice_id, no numeric coercion of total_value.
type Invoice struct {
	InvoiceID           string `json:"invoice_id"`
	TotalValue          string `json:"total_value"`
	Currency            string `json:"currency"`
	Status              string `json:"status"`
	PromisedPaymentDate string `json:"promised_payment_date"`
	Summary             string `json:"summary"`
}

// Result is the validated extraction for one thread
type Result struct {
	Summary        string    `json:"summary"`
	AccountID      string    `json:"account_id"`
	SuggestedReply string    `json:"suggested_reply"`
	Invoices       []Invoice `json:"invoices"`
	Model          string    `json:"model"`
	TotalTokens    int       `json:"total_tokens"`
}

// ChatCompleter is the slice of the OpenAI client the extractor needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor turns an email thread into a validated extraction result
type Extractor struct {
	client      ChatCompleter
	model       string
	temperature float32
	maxTokens   int
	logger      zerolog.Logger
}

// NewExtractor creates a new extractor with a fixed model and temperature
func NewExtractor(client ChatCompleter, model string, temperature float32, maxTokens int, logger zerolog.Logger) *Extractor {
	return &Extractor{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.With().Str("component", "extract").Logger(),
	}
}

// Extract builds the prompt, calls the completion endpoint and validates
// the response. Blocks until the remote call returns or the context ends.
func (e *Extractor) Extract(ctx context.Context, thread *email.Thread) (*Result, error) {
	prompt := BuildPrompt(thread)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteCall, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contains no choices", ErrUpstreamFormat)
	}

	result, err := e.parseResult([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}

	result.Model = e.model
	result.TotalTokens = resp.Usage.TotalTokens

	e.logger.Info().
		Str("account_id", result.AccountID).
		Int("invoices", len(result.Invoices)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("Extraction completed")

	return result, nil
}

// parseResult decodes the raw model output against the extraction schema.
// The three required top-level fields must be present and well-typed or
// the whole result is rejected. Invoice entries are decoded individually;
// malformed entries are dropped with a warning, which is the only partial
// degradation the pipeline tolerates.
func (e *Extractor) parseResult(raw []byte) (*Result, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFormat, err)
	}

	result := &Result{}

	summaryRaw, ok := top["summary"]
	if !ok {
		return nil, fmt.Errorf("%w: missing summary", ErrUpstreamFormat)
	}
	if err := json.Unmarshal(summaryRaw, &result.Summary); err != nil || result.Summary == "" {
		return nil, fmt.Errorf("%w: invalid summary", ErrUpstreamFormat)
	}

	replyRaw, ok := top["suggested_reply"]
	if !ok {
		return nil, fmt.Errorf("%w: missing suggested_reply", ErrUpstreamFormat)
	}
	if err := json.Unmarshal(replyRaw, &result.SuggestedReply); err != nil || result.SuggestedReply == "" {
		return nil, fmt.Errorf("%w: invalid suggested_reply", ErrUpstreamFormat)
	}

	invoicesRaw, ok := top["invoices"]
	if !ok {
		return nil, fmt.Errorf("%w: missing invoices", ErrUpstreamFormat)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(invoicesRaw, &entries); err != nil {
		return nil, fmt.Errorf("%w: invoices is not a list", ErrUpstreamFormat)
	}

	// account_id is optional; absence does not fail the run
	if accountRaw, ok := top["account_id"]; ok {
		_ = json.Unmarshal(accountRaw, &result.AccountID)
	}

	result.Invoices = make([]Invoice, 0, len(entries))
	for i, entry := range entries {
		var inv Invoice
		if err := json.Unmarshal(entry, &inv); err != nil {
			e.logger.Warn().Int("index", i).Err(err).Msg("Dropping malformed invoice entry")
			continue
		}
		if inv.InvoiceID == "" || inv.TotalValue == "" || inv.Status == "" {
			e.logger.Warn().Int("index", i).Str("invoice_id", inv.InvoiceID).Msg("Dropping invoice entry with missing fields")
			continue
		}
		result.Invoices = append(result.Invoices, inv)
	}

	return result, nil
}
