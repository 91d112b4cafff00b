package undo

import (
	"errors"
	"testing"
	"time"

	"tally/internal/ledger"
)

func TestUndoWithinWindow(t *testing.T) {
	g := NewGuard(60 * time.Second)
	t0 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ref := ledger.Ref{Period: "March 2026", Row: 7}

	g.Arm("chat", ref, t0)
	got, err := g.TryUndo("chat", t0.Add(60*time.Second-time.Millisecond))
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if got != ref {
		t.Fatalf("ref = %+v, want %+v", got, ref)
	}
}

func TestUndoWindowExpired(t *testing.T) {
	g := NewGuard(60 * time.Second)
	t0 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	g.Arm("chat", ledger.Ref{Period: "p", Row: 2}, t0)
	_, err := g.TryUndo("chat", t0.Add(60*time.Second+time.Millisecond))
	if !errors.Is(err, ErrWindowExpired) {
		t.Fatalf("err = %v, want ErrWindowExpired", err)
	}
}

func TestSecondUndoFails(t *testing.T) {
	g := NewGuard(time.Minute)
	t0 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	g.Arm("chat", ledger.Ref{Period: "p", Row: 2}, t0)
	if _, err := g.TryUndo("chat", t0.Add(time.Second)); err != nil {
		t.Fatalf("first undo failed: %v", err)
	}
	if _, err := g.TryUndo("chat", t0.Add(2*time.Second)); !errors.Is(err, ErrNoPriorInsertion) {
		t.Fatalf("err = %v, want ErrNoPriorInsertion", err)
	}
}

func TestUndoWithoutInsertion(t *testing.T) {
	g := NewGuard(time.Minute)
	if _, err := g.TryUndo("chat", time.Now()); !errors.Is(err, ErrNoPriorInsertion) {
		t.Fatalf("err = %v, want ErrNoPriorInsertion", err)
	}
}

func TestArmOverwrites(t *testing.T) {
	g := NewGuard(time.Minute)
	t0 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	g.Arm("chat", ledger.Ref{Period: "p", Row: 2}, t0)
	g.Arm("chat", ledger.Ref{Period: "p", Row: 3}, t0.Add(time.Second))

	got, err := g.TryUndo("chat", t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if got.Row != 3 {
		t.Fatalf("row = %d, want 3", got.Row)
	}
}

func TestChatsAreIndependent(t *testing.T) {
	g := NewGuard(time.Minute)
	t0 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	g.Arm("a", ledger.Ref{Period: "p", Row: 2}, t0)
	if _, err := g.TryUndo("b", t0); !errors.Is(err, ErrNoPriorInsertion) {
		t.Fatalf("err = %v, want ErrNoPriorInsertion", err)
	}
	if _, err := g.TryUndo("a", t0.Add(time.Second)); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
}
