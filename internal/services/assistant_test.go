package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger/memory"
	"tally/internal/period"
	"tally/internal/render"
	"tally/internal/undo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Today() core.Date { return core.DateOf(c.Now()) }

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	assistant *Assistant
	store     *memory.Store
	clock     *fakeClock
	publisher *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	lifecycle := period.NewLifecycle(store, clock, period.Resolver{Format: "January 2006"},
		period.NewSeeder(nil), period.TimeOfDay{Hour: 18})
	if err := lifecycle.Open(context.Background()); err != nil {
		t.Fatalf("open lifecycle: %v", err)
	}
	renderer, err := render.New("02.01.2006")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	publisher := &capturingPublisher{}
	guard := undo.NewGuard(time.Minute)
	cfg := core.ParseConfig{
		Aliases:       map[string]string{"alice#123": "alice"},
		Defaults:      map[string]string{"alice#123": "alice + bob"},
		DateDelimiter: ".",
	}
	assistant := NewAssistant(store, lifecycle, guard, clock, cfg, renderer, publisher)
	return &fixture{assistant: assistant, store: store, clock: clock, publisher: publisher}
}

func TestRecordCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 12,50 pizza")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.Ref.Period != "March 2026" || got.Ref.Row != 2 {
		t.Errorf("ref = %+v", got.Ref)
	}
	if got.Record.Payer != "alice" {
		t.Errorf("payer = %q, want resolved alias", got.Record.Payer)
	}
	if !got.Record.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("amount = %v", got.Record.Amount)
	}

	records, err := f.store.ReadAll(ctx, "March 2026")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 || records[0].Description != "pizza" {
		t.Fatalf("records = %+v", records)
	}

	types := f.publisher.types()
	if len(types) != 1 || types[0] != amqp.EventRecordArchived {
		t.Errorf("events = %v", types)
	}
}

func TestRecordCommandDefaultBeneficiaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.assistant.Record(ctx, "chat-1", "alice#123", "10 groceries")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(got.Record.Beneficiaries) != 2 || got.Record.Beneficiaries[0] != "alice" || got.Record.Beneficiaries[1] != "bob" {
		t.Errorf("beneficiaries = %v", got.Record.Beneficiaries)
	}
}

func TestRecordCommandParseError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.assistant.Record(ctx, "chat-1", "unknown", "10 groceries")
	if err == nil {
		t.Fatalf("expected error: sender has no default beneficiaries")
	}
	if !IsUserError(err) {
		t.Errorf("err %v should be a user error", err)
	}

	records, _ := f.store.ReadAll(ctx, "March 2026")
	if len(records) != 0 {
		t.Errorf("parse failure must not write, got %+v", records)
	}
	if len(f.publisher.types()) != 0 {
		t.Errorf("parse failure must not publish")
	}
}

func TestUndoWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 10 coffee"); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := f.assistant.Undo(ctx, "chat-1")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if removed.Description != "coffee" {
		t.Errorf("removed = %+v", removed)
	}

	records, _ := f.store.ReadAll(ctx, "March 2026")
	if len(records) != 0 {
		t.Errorf("records = %+v, want empty", records)
	}
	types := f.publisher.types()
	if len(types) != 2 || types[1] != amqp.EventRecordRemoved {
		t.Errorf("events = %v", types)
	}

	// The undo consumed the guard state.
	if _, err := f.assistant.Undo(ctx, "chat-1"); !errors.Is(err, undo.ErrNoPriorInsertion) {
		t.Errorf("second undo err = %v", err)
	}
}

func TestUndoAfterWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 10 coffee"); err != nil {
		t.Fatalf("record: %v", err)
	}
	f.clock.set(f.clock.Now().Add(2 * time.Minute))

	_, err := f.assistant.Undo(ctx, "chat-1")
	if !errors.Is(err, undo.ErrWindowExpired) {
		t.Fatalf("err = %v, want ErrWindowExpired", err)
	}
	if !IsUserError(err) {
		t.Errorf("expired window should read as user error")
	}

	records, _ := f.store.ReadAll(ctx, "March 2026")
	if len(records) != 1 {
		t.Errorf("expired undo must not delete, got %+v", records)
	}
}

func TestUndoIsPerChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 10 coffee"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.assistant.Undo(ctx, "chat-2"); !errors.Is(err, undo.ErrNoPriorInsertion) {
		t.Errorf("foreign chat undo err = %v", err)
	}
}

func TestSummaryCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 10 coffee"); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := f.assistant.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.Period != "March 2026" {
		t.Errorf("period = %q", got.Period)
	}
	if len(got.Summary.Transfers) != 1 {
		t.Fatalf("transfers = %+v", got.Summary.Transfers)
	}
	tr := got.Summary.Transfers[0]
	if tr.From != "bob" || tr.To != "alice" || !tr.Amount.Equal(decimal.RequireFromString("10")) {
		t.Errorf("transfer = %+v", tr)
	}
	if !strings.Contains(string(got.Document), "March 2026") {
		t.Errorf("document missing period title")
	}
}

func TestNewPeriodCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.assistant.NewPeriod(ctx); !errors.Is(err, period.ErrNoNewPeriodYet) {
		t.Fatalf("err = %v, want ErrNoNewPeriodYet", err)
	}

	if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", "bob 10 coffee"); err != nil {
		t.Fatalf("record: %v", err)
	}
	f.clock.set(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))

	closed, err := f.assistant.NewPeriod(ctx)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	if closed.ClosedPeriod != "March 2026" || closed.OpenedPeriod != "April 2026" {
		t.Fatalf("closed = %+v", closed)
	}

	april, err := f.store.ReadAll(ctx, "April 2026")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(april) != 1 || !strings.HasPrefix(april[0].Description, "carryover") {
		t.Fatalf("april = %+v", april)
	}

	types := f.publisher.types()
	if types[len(types)-1] != amqp.EventPeriodClosed {
		t.Errorf("events = %v", types)
	}
}

func TestTickPublishesClosure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	now := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	f.clock.set(now)
	closed, err := f.assistant.Tick(ctx, now)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if closed == nil || closed.OpenedPeriod != "April 2026" {
		t.Fatalf("closed = %+v", closed)
	}
	types := f.publisher.types()
	if len(types) != 1 || types[0] != amqp.EventPeriodClosed {
		t.Errorf("events = %v", types)
	}

	// Quiet tick publishes nothing.
	closed, err = f.assistant.Tick(ctx, now)
	if err != nil || closed != nil {
		t.Fatalf("second tick: %+v, %v", closed, err)
	}
	if len(f.publisher.types()) != 1 {
		t.Errorf("events = %v", f.publisher.types())
	}
}

func TestRecordThenSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	commands := []string{
		"bob 30 rent",
		"bob 12.50 dinner 14.03.2026",
		"bob -5 refund",
	}
	for _, cmd := range commands {
		if _, err := f.assistant.Record(ctx, "chat-1", "alice#123", cmd); err != nil {
			t.Fatalf("record %q: %v", cmd, err)
		}
	}

	got, err := f.assistant.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	// alice paid 42.50 for bob, bob paid 5 for alice: bob owes 37.50.
	if len(got.Summary.Transfers) != 1 {
		t.Fatalf("transfers = %+v", got.Summary.Transfers)
	}
	tr := got.Summary.Transfers[0]
	if tr.From != "bob" || !tr.Amount.Equal(decimal.RequireFromString("37.50")) {
		t.Errorf("transfer = %+v", tr)
	}

	var sum decimal.Decimal
	for _, b := range got.Summary.Balances {
		sum = sum.Add(b.Net)
	}
	if !sum.IsZero() {
		t.Errorf("balances sum to %v, want zero", sum)
	}
}
