package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dunbot/dunbot/internal/email"
	"github.com/dunbot/dunbot/internal/extract"
	"github.com/dunbot/dunbot/internal/reply"
	"github.com/dunbot/dunbot/internal/storage"
)

// ErrMissingInput indicates the triggering email carried no usable body.
// Terminal: malformed trigger input does not become valid on retry.
var ErrMissingInput = errors.New("triggering email has no body")

// Pipeline runs Ingest -> Extract -> Compose & Send for one email. Fully
// synchronous, one invocation per trigger, no internal retries: every
// failure is terminal for the run and any re-execution is the upstream
// forwarder's responsibility.
type Pipeline struct {
	store     *storage.Store
	extractor *extract.Extractor
	composer  *reply.Composer
	sender    reply.Sender
	logger    zerolog.Logger
}

// New creates a pipeline with explicit collaborators; nothing is read
// from process-wide state.
func New(
	store *storage.Store,
	extractor *extract.Extractor,
	composer *reply.Composer,
	sender reply.Sender,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		extractor: extractor,
		composer:  composer,
		sender:    sender,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one pipeline run for an accepted thread
func (p *Pipeline) Run(ctx context.Context, thread *email.Thread, triggerName string) error {
	start := time.Now()
	runID := uuid.NewString()

	logger := p.logger.With().Str("run_id", runID).Logger()

	receivedAt := thread.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	run := &storage.Run{
		RunID:       runID,
		TriggerName: triggerName,
		MessageID:   thread.MessageID,
		FromAddr:    thread.From.Address,
		Subject:     thread.Subject,
		Status:      storage.RunStatusRunning,
		ReceivedAt:  receivedAt,
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	err := p.run(ctx, runID, thread, logger)

	status := storage.RunStatusCompleted
	errorKind, errorMessage := "", ""
	if err != nil {
		status = storage.RunStatusFailed
		errorKind = Classify(err)
		errorMessage = err.Error()
		logger.Error().Err(err).Str("error_kind", errorKind).Msg("Run failed")
	}

	if storeErr := p.store.CompleteRun(ctx, runID, status, errorKind, errorMessage); storeErr != nil {
		logger.Error().Err(storeErr).Msg("Failed to record run completion")
	}

	logger.Info().
		Str("status", string(status)).
		Dur("duration", time.Since(start)).
		Msg("Run finished")

	return err
}

// run is the straight-line body of a run: error short-circuits only, no
// alternate paths.
func (p *Pipeline) run(ctx context.Context, runID string, thread *email.Thread, logger zerolog.Logger) error {
	// Ingest: the thread must carry a discussion to extract from
	if thread.Body() == "" {
		p.logStep(ctx, runID, "ingest", "", ErrMissingInput, 0)
		return ErrMissingInput
	}
	p.logStep(ctx, runID, "ingest", fmt.Sprintf("from=%s subject=%q", thread.From.Address, thread.Subject), nil, 0)

	// Extract
	extractStart := time.Now()
	result, err := p.extractor.Extract(ctx, thread)
	p.logStep(ctx, runID, "extract", "", err, time.Since(extractStart).Milliseconds())
	if err != nil {
		return err
	}

	invoicesJSON, _ := json.Marshal(result.Invoices)
	if err := p.store.SaveExtraction(ctx, &storage.Extraction{
		RunID:          runID,
		Summary:        result.Summary,
		AccountID:      result.AccountID,
		SuggestedReply: result.SuggestedReply,
		Invoices:       invoicesJSON,
		Model:          result.Model,
		TotalTokens:    result.TotalTokens,
		CreatedAt:      time.Now(),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to record extraction")
	}

	// Compose & send
	outbound, err := p.composer.Compose(result, thread)
	if err != nil {
		p.logStep(ctx, runID, "compose", "", err, 0)
		return err
	}

	sendStart := time.Now()
	err = p.sender.Send(ctx, outbound)
	p.logStep(ctx, runID, "send", fmt.Sprintf("to=%s subject=%q", outbound.To[0].Address, outbound.Subject), err, time.Since(sendStart).Milliseconds())
	if err != nil {
		return err
	}

	return nil
}

// logStep records a step in the run's audit trail. Audit failures are
// logged but never fail the run.
func (p *Pipeline) logStep(ctx context.Context, runID, step, detail string, stepErr error, durationMS int64) {
	entry := &storage.StepLog{
		RunID:     runID,
		Step:      step,
		Detail:    detail,
		Duration:  durationMS,
		CreatedAt: time.Now(),
	}
	if stepErr != nil {
		entry.Error = stepErr.Error()
	}
	if err := p.store.SaveStepLog(ctx, entry); err != nil {
		p.logger.Warn().Err(err).Str("run_id", runID).Str("step", step).Msg("Failed to save step log")
	}
}

// Classify maps a run error onto the failure taxonomy recorded with the run
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, extract.ErrUpstreamFormat):
		return "upstream_format"
	case errors.Is(err, extract.ErrRemoteCall):
		return "remote_call"
	case errors.Is(err, reply.ErrSend):
		return "send"
	default:
		return "internal"
	}
}
