// Package services orchestrates the chat commands across the ledger store,
// the undo guard, the period lifecycle and the event stream.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/period"
	"tally/internal/render"
	"tally/internal/undo"
)

// Publisher is the event stream the assistant reports mutations to.
type Publisher interface {
	Publish(ctx context.Context, event *amqp.Event) error
}

// Assistant executes the chat commands. Store writes go through the
// lifecycle's exclusive section so they never interleave with a rollover; a
// command that lands mid-rollover is retried once after a short delay.
type Assistant struct {
	store      ledger.Store
	lifecycle  *period.Lifecycle
	guard      *undo.Guard
	clock      ledger.Clock
	parseCfg   core.ParseConfig
	renderer   *render.Renderer
	publisher  Publisher
	retryDelay time.Duration
}

func NewAssistant(
	store ledger.Store,
	lifecycle *period.Lifecycle,
	guard *undo.Guard,
	clock ledger.Clock,
	parseCfg core.ParseConfig,
	renderer *render.Renderer,
	publisher Publisher,
) *Assistant {
	return &Assistant{
		store:      store,
		lifecycle:  lifecycle,
		guard:      guard,
		clock:      clock,
		parseCfg:   parseCfg,
		renderer:   renderer,
		publisher:  publisher,
		retryDelay: 250 * time.Millisecond,
	}
}

// Recorded is the outcome of a successful insertion.
type Recorded struct {
	Record core.Record
	Ref    ledger.Ref
}

// Record parses a command message and appends the resulting record to the
// open period's table.
func (a *Assistant) Record(ctx context.Context, chatID, sender, text string) (*Recorded, error) {
	rec, err := core.Parse(text, sender, a.clock.Today(), a.parseCfg)
	if err != nil {
		return nil, err
	}

	var ref ledger.Ref
	err = a.exclusive(func(current string) error {
		var err error
		ref, err = a.store.Append(ctx, current, rec)
		if err != nil {
			return fmt.Errorf("append to %s: %w", current, err)
		}
		a.guard.Arm(chatID, ref, a.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Record appended",
		"chat_id", chatID,
		"period", ref.Period,
		"row", ref.Row,
		"payer", rec.Payer,
		"amount", rec.Amount.String())

	a.publish(ctx, amqp.NewRecordArchived(ref.Period, ref.Row, rec))
	return &Recorded{Record: rec, Ref: ref}, nil
}

// Undo removes the chat's most recent insertion if its undo window is still
// open.
func (a *Assistant) Undo(ctx context.Context, chatID string) (core.Record, error) {
	var removed core.Record
	var ref ledger.Ref
	err := a.exclusive(func(current string) error {
		var err error
		ref, err = a.guard.TryUndo(chatID, a.clock.Now())
		if err != nil {
			return err
		}
		removed, err = a.store.DeleteLast(ctx, ref.Period)
		if err != nil {
			return fmt.Errorf("delete last of %s: %w", ref.Period, err)
		}
		return nil
	})
	if err != nil {
		return core.Record{}, err
	}

	slog.InfoContext(ctx, "Record removed",
		"chat_id", chatID,
		"period", ref.Period,
		"row", ref.Row)

	a.publish(ctx, amqp.NewRecordRemoved(ref.Period, ref.Row))
	return removed, nil
}

// Summarized is a period's balance sheet plus its rendered document.
type Summarized struct {
	Period   string
	Summary  core.Summary
	Document []byte
}

// Summary computes the open period's balances and renders the document.
// Reads do not need the exclusive section: a concurrent rollover leaves the
// old table intact.
func (a *Assistant) Summary(ctx context.Context) (*Summarized, error) {
	current := a.lifecycle.Current()
	records, err := a.store.ReadAll(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", current, err)
	}
	summary := core.Summarize(records)
	doc, err := a.renderer.Summary(current, summary)
	if err != nil {
		return nil, err
	}
	return &Summarized{Period: current, Summary: summary, Document: doc}, nil
}

// NewPeriod closes the open period on user request.
func (a *Assistant) NewPeriod(ctx context.Context) (*period.Closed, error) {
	closed, err := a.lifecycle.ManualRollover(ctx)
	if errors.Is(err, period.ErrRolloverInProgress) {
		time.Sleep(a.retryDelay)
		closed, err = a.lifecycle.ManualRollover(ctx)
	}
	if err != nil {
		return nil, err
	}
	a.publish(ctx, amqp.NewPeriodClosed(closed.ClosedPeriod, closed.OpenedPeriod))
	return closed, nil
}

// Tick drives the automatic rollover. The returned Closed is nil when no
// boundary was crossed.
func (a *Assistant) Tick(ctx context.Context, now time.Time) (*period.Closed, error) {
	closed, err := a.lifecycle.Tick(ctx, now)
	if err != nil || closed == nil {
		return closed, err
	}
	a.publish(ctx, amqp.NewPeriodClosed(closed.ClosedPeriod, closed.OpenedPeriod))
	return closed, nil
}

// exclusive runs fn under the lifecycle lock, retrying once when a rollover
// holds it.
func (a *Assistant) exclusive(fn func(current string) error) error {
	err := a.lifecycle.Exclusive(fn)
	if errors.Is(err, period.ErrRolloverInProgress) {
		time.Sleep(a.retryDelay)
		err = a.lifecycle.Exclusive(fn)
	}
	return err
}

func (a *Assistant) publish(ctx context.Context, event *amqp.Event) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		// The spreadsheet write already succeeded; the archive catches up
		// on the next event.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", event.Type, "period", event.Period, "error", err)
	}
}

// IsUserError reports whether err should be shown to the chat user as a
// plain reply instead of being logged as a failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrEmptyPayer,
		core.ErrNoBeneficiaries,
		core.ErrMissingBeneficiaries,
		core.ErrNonPositiveAmount,
		core.ErrDescriptionTooLong,
		core.ErrAmbiguousSwap,
		undo.ErrNoPriorInsertion,
		undo.ErrWindowExpired,
		period.ErrNoNewPeriodYet,
		period.ErrRolloverInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
