// Package worker applies ledger events to the local SQLite archive.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
)

// Archive is the subset of the repository the worker writes to.
type Archive interface {
	Archive(ctx context.Context, period string, row int, rec core.Record) error
	MarkRemoved(ctx context.Context, period string, row int) error
	RecordClosure(ctx context.Context, closed, opened string) error
}

// ArchiveWorker consumes ledger events and mirrors them into the archive.
// Handlers are idempotent, so at-least-once delivery is fine.
type ArchiveWorker struct {
	archive Archive
}

func NewArchiveWorker(archive Archive) *ArchiveWorker {
	return &ArchiveWorker{archive: archive}
}

// HandleEvent dispatches one ledger event. Unknown event types are logged
// and acknowledged; requeueing them would loop forever.
func (w *ArchiveWorker) HandleEvent(ctx context.Context, event *amqp.Event) error {
	switch event.Type {
	case amqp.EventRecordArchived:
		return w.handleArchived(ctx, event)
	case amqp.EventRecordRemoved:
		return w.archive.MarkRemoved(ctx, event.Period, event.Row)
	case amqp.EventPeriodClosed:
		return w.archive.RecordClosure(ctx, event.Period, event.OpenedPeriod)
	default:
		slog.WarnContext(ctx, "Skipping unknown ledger event", "event", event.Type)
		return nil
	}
}

func (w *ArchiveWorker) handleArchived(ctx context.Context, event *amqp.Event) error {
	if event.Record == nil {
		slog.WarnContext(ctx, "Archived event without record payload",
			"period", event.Period, "row", event.Row)
		return nil
	}
	rec, err := decodePayload(event.Record)
	if err != nil {
		// A malformed payload will never parse; drop it instead of
		// requeueing.
		slog.ErrorContext(ctx, "Dropping malformed record payload",
			"error", err, "period", event.Period, "row", event.Row)
		return nil
	}
	return w.archive.Archive(ctx, event.Period, event.Row, rec)
}

func decodePayload(p *amqp.RecordPayload) (core.Record, error) {
	d, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse date %q: %w", p.Date, err)
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse amount %q: %w", p.Amount, err)
	}
	return core.Record{
		Date:          core.DateOf(d),
		Description:   p.Description,
		Payer:         p.Payer,
		Beneficiaries: p.Beneficiaries,
		Amount:        amount,
	}, nil
}
