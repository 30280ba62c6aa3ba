// Package alerts owns the shared alert path: content hashing, the alert log
// with its dedup guarantee, the per-user daily push budget with digest
// overflow, message formatting, and delivery.
package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/clients/llm"
	"github.com/peterbitar/wealthyrabbit/internal/clients/push"
)

// AlertTextWriter renders the calm push message. May be nil.
type AlertTextWriter interface {
	WriteAlertText(ctx context.Context, kind, symbol, facts string) (string, error)
}

// Dispatcher walks an alert candidate through
// Thresholded -> Deduped -> Budgeted -> Formatted -> Delivered.
// Any stage short-circuits to a recorded drop outcome.
type Dispatcher struct {
	repo     *Repository
	push     *push.Client
	writer   AlertTextWriter
	stream   *StreamHub
	maxDaily int
	clock    func() time.Time
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher. writer and stream may be nil.
func NewDispatcher(repo *Repository, pushClient *push.Client, writer AlertTextWriter, stream *StreamHub, maxDaily int, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		push:     pushClient,
		writer:   writer,
		stream:   stream,
		maxDaily: maxDaily,
		clock:    time.Now,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch processes one candidate that already passed its monitor's
// threshold. The returned outcome is the candidate's terminal state; the
// error is non-nil only for unexpected failures (dedup hits and budget
// overflow are normal outcomes, not errors).
func (d *Dispatcher) Dispatch(ctx context.Context, c Candidate) (Outcome, error) {
	now := d.clock()

	// Cheap pre-check; the transactional insert below is the authority.
	if exists, err := d.repo.HashExists(c.ContentHash); err == nil && exists {
		d.log.Debug().Str("hash", c.ContentHash).Msg("Dedup hit")
		return OutcomeDuplicate, nil
	}

	message := d.formatMessage(ctx, c)

	row := AlertLog{
		UserID:      c.UserID,
		AlertType:   c.Type,
		Symbol:      c.Symbol,
		ContentHash: c.ContentHash,
		Title:       c.Title,
		Message:     message,
		URL:         c.URL,
		Metadata:    c.Metadata,
		SentAt:      now,
	}

	err := d.repo.InsertWithBudget(row, d.maxDaily)
	switch {
	case errors.Is(err, ErrDuplicate):
		d.log.Debug().Str("hash", c.ContentHash).Msg("Dedup hit")
		return OutcomeDuplicate, nil

	case errors.Is(err, ErrBudgetExhausted):
		if qerr := d.repo.AddDigestItem(DigestItem{
			UserID:    c.UserID,
			AlertType: c.Type,
			Symbol:    c.Symbol,
			Title:     c.Title,
			Message:   message,
			CreatedAt: now,
		}); qerr != nil {
			d.log.Error().Err(qerr).Str("user_id", c.UserID).Msg("Failed to queue digest item")
			return OutcomeError, qerr
		}
		d.log.Info().Str("user_id", c.UserID).Str("symbol", c.Symbol).Msg("Daily budget hit, routed to digest")
		return OutcomeBudget, nil

	case err != nil:
		d.log.Error().Err(err).Str("user_id", c.UserID).Msg("Failed to log alert")
		return OutcomeError, err
	}

	// The alert is committed; delivery failures are logged but the log row
	// stands (the dedup hash must hold even when a push bounces).
	d.deliver(ctx, c, row)

	return OutcomeDelivered, nil
}

// formatMessage prefers the LLM's calm rendering, enforcing the
// no-invented-numbers rule against the fact message; any failure keeps the
// deterministic message.
func (d *Dispatcher) formatMessage(ctx context.Context, c Candidate) string {
	if d.writer == nil {
		return c.Message
	}

	rendered, err := d.writer.WriteAlertText(ctx, string(c.Type), c.Symbol, c.Message)
	if err != nil {
		d.log.Debug().Err(err).Msg("LLM alert text failed, using template")
		return c.Message
	}
	if !llm.NumbersGrounded(rendered, c.Title, c.Message) {
		d.log.Warn().Str("symbol", c.Symbol).Msg("LLM alert text invented numbers, using template")
		return c.Message
	}
	return rendered
}

func (d *Dispatcher) deliver(ctx context.Context, c Candidate, row AlertLog) {
	if d.stream != nil {
		d.stream.Publish(row)
	}

	if c.PushToken == "" {
		d.log.Debug().Str("user_id", c.UserID).Msg("No push token registered, alert logged only")
		return
	}

	data := map[string]interface{}{"alert_type": string(c.Type)}
	if c.Symbol != "" {
		data["symbol"] = c.Symbol
	}
	if c.URL != "" {
		data["url"] = c.URL
	}
	for k, v := range c.Metadata {
		data[k] = v
	}

	if err := d.push.Send(ctx, c.PushToken, push.Message{
		Title: c.Title,
		Body:  row.Message,
		Data:  data,
	}); err != nil {
		d.log.Error().Err(err).Str("user_id", c.UserID).Msg("Push delivery failed")
	}
}
