package period

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

var (
	ErrNoNewPeriodYet     = errors.New("the current date still belongs to the open accounting period")
	ErrRolloverInProgress = errors.New("a period rollover is in progress, retry shortly")
)

// TimeOfDay is the earliest wall-clock time at which the automatic rollover
// may fire on a period's last day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ReachedBy reports whether now is at or past the time of day.
func (t TimeOfDay) ReachedBy(now time.Time) bool {
	return now.Hour() > t.Hour || (now.Hour() == t.Hour && now.Minute() >= t.Minute)
}

// Closed is the outcome of a completed rollover.
type Closed struct {
	ClosedPeriod string
	OpenedPeriod string
	Summary      core.Summary
}

// Lifecycle owns the single mutable "current period" cell. All transitions
// and all command-side store writes go through its one-slot lock, so a
// rollover and a command can never interleave on the same period.
type Lifecycle struct {
	store      ledger.Store
	clock      ledger.Clock
	resolver   Resolver
	seeder     *Seeder
	rolloverAt TimeOfDay

	mu      sync.Mutex
	current string
}

func NewLifecycle(store ledger.Store, clock ledger.Clock, resolver Resolver, seeder *Seeder, rolloverAt TimeOfDay) *Lifecycle {
	return &Lifecycle{
		store:      store,
		clock:      clock,
		resolver:   resolver,
		seeder:     seeder,
		rolloverAt: rolloverAt,
	}
}

// Open establishes the current period at startup. If today's backing table
// does not exist yet it is created and seeded with the recurring templates
// (no carryover: there is no closed predecessor to summarize).
func (l *Lifecycle) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.clock.Today()
	name := l.resolver.Name(today)
	exists, err := l.store.PeriodExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check period %s: %w", name, err)
	}
	if !exists {
		slog.InfoContext(ctx, "Bootstrapping period table", "period", name)
		if err := l.store.CreatePeriod(ctx, name, ledger.Columns); err != nil {
			return fmt.Errorf("create period %s: %w", name, err)
		}
		for _, r := range l.seeder.Records(today) {
			if _, err := l.store.Append(ctx, name, r); err != nil {
				return fmt.Errorf("seed period %s: %w", name, err)
			}
		}
	}
	l.current = name
	return nil
}

// Current returns the open period's name.
func (l *Lifecycle) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Exclusive runs fn with the rollover lock held, handing it the open
// period's name. While a rollover is executing it fails fast with
// ErrRolloverInProgress instead of queueing commands against a period that
// is about to close.
func (l *Lifecycle) Exclusive(fn func(current string) error) error {
	if !l.mu.TryLock() {
		return ErrRolloverInProgress
	}
	defer l.mu.Unlock()
	return fn(l.current)
}

// Tick evaluates the boundary condition. On the period's last day, at or
// after the configured time of day, it closes the current period and opens
// the next one. Any other call is a no-op; so is a second call after a
// concurrent tick or manual trigger already rolled over.
func (l *Lifecycle) Tick(ctx context.Context, now time.Time) (*Closed, error) {
	today := core.DateOf(now)
	if !l.resolver.IsLastDay(today) || !l.rolloverAt.ReachedBy(now) {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.resolver.Name(today.Next())
	if l.current == next {
		// Already rolled over for this boundary.
		return nil, nil
	}
	return l.rollover(ctx, next, today.Next())
}

// ManualRollover closes the current period on request. It is valid only
// when today already resolves to a different period than the open one, e.g.
// after the process slept across a boundary.
func (l *Lifecycle) ManualRollover(ctx context.Context) (*Closed, error) {
	if !l.mu.TryLock() {
		return nil, ErrRolloverInProgress
	}
	defer l.mu.Unlock()

	today := l.clock.Today()
	name := l.resolver.Name(today)
	if name == l.current {
		return nil, ErrNoNewPeriodYet
	}
	return l.rollover(ctx, name, today)
}

// rollover closes l.current and opens next. Callers hold l.mu. The current
// cell is flipped only after every store write succeeded; on failure the
// rollover is abandoned wholesale and retried on a later trigger. A table
// left behind by a half-finished attempt is adopted instead of recreated.
func (l *Lifecycle) rollover(ctx context.Context, next string, openDate core.Date) (*Closed, error) {
	old := l.current

	records, err := l.store.ReadAll(ctx, old)
	if err != nil {
		return nil, fmt.Errorf("read period %s: %w", old, err)
	}
	summary := core.Summarize(records)

	exists, err := l.store.PeriodExists(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("check period %s: %w", next, err)
	}
	if exists {
		slog.WarnContext(ctx, "Adopting period table from an earlier rollover attempt",
			"closed", old, "opened", next)
		l.current = next
		return &Closed{ClosedPeriod: old, OpenedPeriod: next, Summary: summary}, nil
	}

	if err := l.store.CreatePeriod(ctx, next, ledger.Columns); err != nil {
		return nil, fmt.Errorf("create period %s: %w", next, err)
	}
	opening := core.CarryoverRecords(summary.Transfers, openDate, old)
	opening = append(opening, l.seeder.Records(openDate)...)
	for _, r := range opening {
		if _, err := l.store.Append(ctx, next, r); err != nil {
			return nil, fmt.Errorf("seed period %s: %w", next, err)
		}
	}

	l.current = next
	slog.InfoContext(ctx, "Accounting period rolled over",
		"closed", old,
		"opened", next,
		"carryover_records", len(summary.Transfers),
		"seeded_records", len(opening)-len(summary.Transfers))
	return &Closed{ClosedPeriod: old, OpenedPeriod: next, Summary: summary}, nil
}
