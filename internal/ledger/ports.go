// Package ledger defines the collaborator ports of the accounting core and
// the row codec shared by its adapters.
package ledger

import (
	"context"
	"errors"
	"time"

	"tally/internal/core"
)

// Ref locates a stored record inside its period table.
type Ref struct {
	Period string
	Row    int // 1-based sheet row, header included
}

type (
	// Store is append-only ordered record storage, one table per
	// accounting period. Implementations own the retry policy; the core
	// treats every failure as a retryable collaborator error.
	Store interface {
		Append(ctx context.Context, period string, r core.Record) (Ref, error)
		// DeleteLast removes the most recently appended record and
		// returns it.
		DeleteLast(ctx context.Context, period string) (core.Record, error)
		ReadAll(ctx context.Context, period string) ([]core.Record, error)
		CreatePeriod(ctx context.Context, period string, columns []string) error
		PeriodExists(ctx context.Context, period string) (bool, error)
	}

	// Clock abstracts the wall clock so lifecycle timing is testable.
	Clock interface {
		Now() time.Time
		Today() core.Date
	}

	// Notifier delivers replies and summary documents to a chat. Failures
	// are non-fatal to the core: logged, never retried here.
	Notifier interface {
		Send(ctx context.Context, chatID, text string) error
		SendDocument(ctx context.Context, chatID, name string, data []byte, caption string) error
	}
)

var (
	ErrPeriodNotFound = errors.New("period table not found")
	ErrPeriodExists   = errors.New("period table already exists")
	ErrNoRecords      = errors.New("period has no records")
)

// Columns is the header row of every period table.
var Columns = []string{"Date", "Description", "Payer", "Beneficiaries", "Amount"}

// SystemClock reads the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time     { return time.Now() }
func (SystemClock) Today() core.Date   { return core.DateOf(time.Now()) }
